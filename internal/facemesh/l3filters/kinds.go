package l3filters

import (
	"fmt"

	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// Kind is the closed set of filter kinds.
type Kind int

const (
	// KindUnknown is produced when decoding a filter name that does not
	// exist. Running it skips the step with a warning.
	KindUnknown Kind = iota
	KindAlign
	KindCenter
	KindScale
	KindRemoveOutliers
	KindCustomTransform
	KindSmooth
)

// Canonical filter names used in configuration files and provenance.
const (
	NameKabsch        = "kabsch_alignment"
	NameKabschUmeyama = "kabsch_umeyama_alignment"
	NameCenter        = "center_frames"
	NameScale         = "scale_frames"
	NameOutliers      = "remove_outliers"
	NameCustomMatrix  = "custom_matrix"
	NameRollingAvg    = "rolling_average"
)

func (k Kind) String() string {
	switch k {
	case KindAlign:
		return NameKabsch
	case KindCenter:
		return NameCenter
	case KindScale:
		return NameScale
	case KindRemoveOutliers:
		return NameOutliers
	case KindCustomTransform:
		return NameCustomMatrix
	case KindSmooth:
		return NameRollingAvg
	default:
		return "unknown"
	}
}

// Smoothing window bounds and outlier default.
const (
	MinSmoothWindow     = 3
	MaxSmoothWindow     = 5
	DefaultStdThreshold = 2.0
)

// Params is implemented by exactly one typed parameter struct per Kind.
type Params interface {
	Kind() Kind
}

// AlignParams configures rigid alignment of the whole sequence.
type AlignParams struct {
	Mode           l2align.Mode `json:"-"`
	ReferenceIndex int          `json:"reference_index"`
	BaselineFrames int          `json:"baseline_frame_count"`
	EnableScaling  bool         `json:"enable_scaling"`
	// Baseline is an optional externally supplied baseline.
	Baseline *l2align.StatisticalBaseline `json:"-"`
}

// CenterParams configures centering; it has no parameters.
type CenterParams struct{}

// ScaleParams configures uniform scaling.
type ScaleParams struct {
	Factor float64 `json:"scale_factor"`
}

// OutlierParams configures per-frame outlier removal. Points farther from
// the frame centroid than mean + StdThreshold·std are dropped.
type OutlierParams struct {
	StdThreshold float64 `json:"std_threshold"`
}

// CustomTransformParams holds a 3x3 linear or 4x4 homogeneous matrix.
type CustomTransformParams struct {
	Matrix [][]float64 `json:"matrix"`
}

// SmoothParams configures the centred rolling average.
type SmoothParams struct {
	Window int `json:"window"`
}

// UnknownParams carries a filter name that is not part of the closed set.
type UnknownParams struct {
	Name string
}

// invalidParams carries a known filter whose parameters failed to decode;
// running it fails that step with a ConfigurationError.
type invalidParams struct {
	kind Kind
	name string
	err  error
}

func (AlignParams) Kind() Kind           { return KindAlign }
func (CenterParams) Kind() Kind          { return KindCenter }
func (ScaleParams) Kind() Kind           { return KindScale }
func (OutlierParams) Kind() Kind         { return KindRemoveOutliers }
func (CustomTransformParams) Kind() Kind { return KindCustomTransform }
func (SmoothParams) Kind() Kind          { return KindSmooth }
func (UnknownParams) Kind() Kind         { return KindUnknown }
func (p invalidParams) Kind() Kind       { return p.kind }

// FilterSpec is one step of a chain.
type FilterSpec struct {
	Kind   Kind
	Params Params
}

// Spec builds a FilterSpec whose Kind matches p.
func Spec(p Params) FilterSpec {
	return FilterSpec{Kind: p.Kind(), Params: p}
}

// Name returns the configuration-file name of the step.
func (s FilterSpec) Name() string {
	switch p := s.Params.(type) {
	case AlignParams:
		if p.EnableScaling {
			return NameKabschUmeyama
		}
		return NameKabsch
	case UnknownParams:
		return p.Name
	case invalidParams:
		return p.name
	}
	return s.Kind.String()
}

func (s FilterSpec) String() string {
	return fmt.Sprintf("%s%+v", s.Name(), s.Params)
}

// FilterInfo describes a filter for listings.
type FilterInfo struct {
	Name        string
	Title       string
	Description string
	Parameters  []string
	UseCase     string
}

// AvailableFilters lists every filter the chain understands.
func AvailableFilters() []FilterInfo {
	return []FilterInfo{
		{NameKabsch, "Kabsch Alignment", "Align all frames to a single reference frame or to the mean of the first N frames",
			[]string{"mode", "reference_index", "baseline_frame_count"}, "Remove rigid body motion, focus on shape changes"},
		{NameKabschUmeyama, "Kabsch-Umeyama Alignment", "Kabsch alignment with an optimal uniform scale",
			[]string{"mode", "reference_index", "baseline_frame_count"}, "Also remove distance-to-camera changes"},
		{NameCenter, "Center Frames", "Center all frames at origin (remove translation)",
			nil, "Remove translational motion"},
		{NameScale, "Scale Frames", "Scale all frames by constant factor",
			[]string{"scale_factor"}, "Normalize size or enhance/reduce scale"},
		{NameOutliers, "Remove Outliers", "Remove points far from centroid",
			[]string{"std_threshold"}, "Clean noisy data"},
		{NameCustomMatrix, "Custom Matrix Transform", "Apply a 3x3 linear or 4x4 homogeneous matrix",
			[]string{"matrix"}, "Advanced transformations"},
		{NameRollingAvg, "Rolling Average", "Average each landmark over a centred window of 3-5 frames",
			[]string{"window"}, "Reduce tracking jitter"},
	}
}
