package l3filters

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// rawSpec is the configuration-file form of one step:
//
//	{"filter": "scale_frames", "params": {"scale_factor": 2.0}}
type rawSpec struct {
	Filter string          `json:"filter"`
	Params json.RawMessage `json:"params,omitempty"`
}

type alignJSON struct {
	Mode           string `json:"mode,omitempty"`
	ReferenceIndex int    `json:"reference_index"`
	BaselineFrames int    `json:"baseline_frame_count"`
}

// ParseFilterSpecs decodes a JSON array of filter steps. Only malformed
// JSON is an error: unknown filter names decode to UnknownParams and bad
// parameters decode to a step that fails when run, so one bad step never
// discards the rest of the chain.
func ParseFilterSpecs(data []byte) ([]FilterSpec, error) {
	var raw []rawSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse filter chain: %w", err)
	}
	specs := make([]FilterSpec, len(raw))
	for i, r := range raw {
		specs[i] = DecodeFilterSpec(r.Filter, r.Params)
	}
	return specs, nil
}

// DecodeFilterSpec decodes a single named step. Missing parameters take
// the same defaults as the interactive tool: 30 baseline frames in
// statistical mode, scale 1.0, outlier threshold 2.0 and window 3.
func DecodeFilterSpec(name string, params json.RawMessage) FilterSpec {
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		params = json.RawMessage("{}")
	}
	switch name {
	case NameKabsch, NameKabschUmeyama:
		aj := alignJSON{BaselineFrames: l2align.DefaultBaselineFrames}
		if err := strictUnmarshal(params, &aj); err != nil {
			return invalid(KindAlign, name, err)
		}
		p := AlignParams{
			ReferenceIndex: aj.ReferenceIndex,
			BaselineFrames: aj.BaselineFrames,
			EnableScaling:  name == NameKabschUmeyama,
		}
		switch aj.Mode {
		case "", "statistical":
			p.Mode = l2align.Statistical
		case "single_frame", "single":
			p.Mode = l2align.SingleFrame
		default:
			return invalid(KindAlign, name, fmt.Errorf("unknown alignment mode %q", aj.Mode))
		}
		return Spec(p)
	case NameCenter:
		var p CenterParams
		if err := strictUnmarshal(params, &p); err != nil {
			return invalid(KindCenter, name, err)
		}
		return Spec(p)
	case NameScale:
		p := ScaleParams{Factor: 1.0}
		if err := strictUnmarshal(params, &p); err != nil {
			return invalid(KindScale, name, err)
		}
		return Spec(p)
	case NameOutliers:
		p := OutlierParams{StdThreshold: DefaultStdThreshold}
		if err := strictUnmarshal(params, &p); err != nil {
			return invalid(KindRemoveOutliers, name, err)
		}
		return Spec(p)
	case NameCustomMatrix:
		var p CustomTransformParams
		if err := strictUnmarshal(params, &p); err != nil {
			return invalid(KindCustomTransform, name, err)
		}
		return Spec(p)
	case NameRollingAvg:
		p := SmoothParams{Window: MinSmoothWindow}
		if err := strictUnmarshal(params, &p); err != nil {
			return invalid(KindSmooth, name, err)
		}
		return Spec(p)
	default:
		return Spec(UnknownParams{Name: name})
	}
}

// EncodeFilterSpecs renders specs in the configuration-file form. External
// baselines are not serialisable and are omitted.
func EncodeFilterSpecs(specs []FilterSpec) ([]byte, error) {
	raw := make([]rawSpec, 0, len(specs))
	for _, s := range specs {
		var params interface{}
		switch p := s.Params.(type) {
		case AlignParams:
			mode := "statistical"
			if p.Mode == l2align.SingleFrame {
				mode = "single_frame"
			}
			params = alignJSON{Mode: mode, ReferenceIndex: p.ReferenceIndex, BaselineFrames: p.BaselineFrames}
		case UnknownParams, invalidParams:
			params = struct{}{}
		default:
			params = p
		}
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", s.Name(), err)
		}
		raw = append(raw, rawSpec{Filter: s.Name(), Params: b})
	}
	return json.Marshal(raw)
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func invalid(kind Kind, name string, err error) FilterSpec {
	return Spec(invalidParams{
		kind: kind,
		name: name,
		err:  l1frames.Configf(name, "invalid params: %v", err),
	})
}
