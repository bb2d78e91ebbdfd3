package l3filters

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

func TestParseFilterSpecs_Defaults(t *testing.T) {
	specs, err := ParseFilterSpecs([]byte(`[
		{"filter": "kabsch_alignment"},
		{"filter": "kabsch_umeyama_alignment", "params": {"mode": "single_frame", "reference_index": 2}},
		{"filter": "center_frames", "params": null},
		{"filter": "scale_frames"},
		{"filter": "remove_outliers", "params": {}},
		{"filter": "custom_matrix", "params": {"matrix": [[1,0,0],[0,1,0],[0,0,1]]}},
		{"filter": "rolling_average"},
		{"filter": "unsharp_mask"}
	]`))
	require.NoError(t, err)

	want := []FilterSpec{
		{KindAlign, AlignParams{Mode: l2align.Statistical, BaselineFrames: 30}},
		{KindAlign, AlignParams{Mode: l2align.SingleFrame, ReferenceIndex: 2, BaselineFrames: 30, EnableScaling: true}},
		{KindCenter, CenterParams{}},
		{KindScale, ScaleParams{Factor: 1}},
		{KindRemoveOutliers, OutlierParams{StdThreshold: 2}},
		{KindCustomTransform, CustomTransformParams{Matrix: [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}},
		{KindSmooth, SmoothParams{Window: 3}},
		{KindUnknown, UnknownParams{Name: "unsharp_mask"}},
	}
	if diff := cmp.Diff(want, specs); diff != "" {
		t.Errorf("ParseFilterSpecs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, NameKabschUmeyama, specs[1].Name())
	assert.Equal(t, "unsharp_mask", specs[7].Name())
}

func TestParseFilterSpecs_MalformedJSON(t *testing.T) {
	_, err := ParseFilterSpecs([]byte(`{"filter": "center_frames"}`))
	assert.Error(t, err)
}

func TestDecodeFilterSpec_InvalidParamsKeepKind(t *testing.T) {
	s := DecodeFilterSpec(NameKabsch, []byte(`{"mode":"sideways"}`))
	assert.Equal(t, KindAlign, s.Kind)
	assert.Equal(t, NameKabsch, s.Name())
	_, ok := s.Params.(invalidParams)
	assert.True(t, ok)
}

func TestEncodeFilterSpecs(t *testing.T) {
	in := []FilterSpec{
		Spec(AlignParams{Mode: l2align.SingleFrame, ReferenceIndex: 1, EnableScaling: true}),
		Spec(SmoothParams{Window: 5}),
	}
	data, err := EncodeFilterSpecs(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"filter":"kabsch_umeyama_alignment","params":{"mode":"single_frame","reference_index":1,"baseline_frame_count":0}},
		{"filter":"rolling_average","params":{"window":5}}
	]`, string(data))
}

func TestAvailableFilters(t *testing.T) {
	names := map[string]bool{}
	for _, f := range AvailableFilters() {
		names[f.Name] = true
		assert.NotEmpty(t, f.Description)
	}
	for _, n := range []string{NameKabsch, NameKabschUmeyama, NameCenter, NameScale, NameOutliers, NameCustomMatrix, NameRollingAvg} {
		assert.True(t, names[n], n)
	}
}
