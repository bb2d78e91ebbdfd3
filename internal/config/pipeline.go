package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// Colour settings accepted in colour_mode and colour_granularity.
const (
	ColourModeContinuous = "continuous"
	ColourModeSigma      = "sigma"
	GranularityPoint     = "point"
	GranularityCluster   = "cluster"
)

// PipelineConfig is the root configuration for a processing run. Every
// field is optional; the Get* methods supply defaults for omitted ones.
type PipelineConfig struct {
	DepthScale *float64 `json:"depth_scale,omitempty"`

	// Filters is the raw filter chain, decoded by l3filters.ParseFilterSpecs
	// so that unknown or malformed steps are reported per step.
	Filters json.RawMessage `json:"filters,omitempty"`

	ColourMode        *string  `json:"colour_mode,omitempty"`
	ColourGranularity *string  `json:"colour_granularity,omitempty"`
	SigmaCap          *float64 `json:"sigma_cap,omitempty"`

	Features *FeaturesConfig `json:"features,omitempty"`

	Workers *int `json:"workers,omitempty"`
}

// FeaturesConfig groups the feature families.
type FeaturesConfig struct {
	Displacement *DisplacementConfig `json:"displacement,omitempty"`
	Quaternion   *QuaternionConfig   `json:"quaternion,omitempty"`
}

// DisplacementConfig selects landmarks by text ("1-10,20") and/or by
// cluster or cluster-group name.
type DisplacementConfig struct {
	Enabled            *bool    `json:"enabled,omitempty"`
	Selection          *string  `json:"selection,omitempty"`
	Clusters           []string `json:"clusters,omitempty"`
	Type               *string  `json:"type,omitempty"` // "previous_frame" or "baseline"
	BaselineFrameCount *int     `json:"baseline_frame_count,omitempty"`
}

// QuaternionConfig configures head-pose quaternion features.
type QuaternionConfig struct {
	Enabled            *bool `json:"enabled,omitempty"`
	BaselineFrameCount *int  `json:"baseline_frame_count,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Fields omitted
// from the file fall back to the Get* defaults, so partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParsePipelineConfig(data)
}

// ParsePipelineConfig decodes and validates a configuration document.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/facemesh/pipeline/
		"../../../../" + DefaultConfigPath,    // deeper packages
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that can be checked without the frames. The
// filter chain and landmark indices are validated by the stages that use them.
func (c *PipelineConfig) Validate() error {
	if c.DepthScale != nil {
		if v := *c.DepthScale; !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("depth_scale must be finite and > 0, got %f", v)
		}
	}
	if c.ColourMode != nil {
		switch *c.ColourMode {
		case ColourModeContinuous, ColourModeSigma:
		default:
			return fmt.Errorf("colour_mode must be %q or %q, got %q", ColourModeContinuous, ColourModeSigma, *c.ColourMode)
		}
	}
	if c.ColourGranularity != nil {
		switch *c.ColourGranularity {
		case GranularityPoint, GranularityCluster:
		default:
			return fmt.Errorf("colour_granularity must be %q or %q, got %q", GranularityPoint, GranularityCluster, *c.ColourGranularity)
		}
	}
	if c.SigmaCap != nil && !(*c.SigmaCap > 3) {
		return fmt.Errorf("sigma_cap must be > 3, got %f", *c.SigmaCap)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if len(c.Filters) > 0 {
		var steps []json.RawMessage
		if err := json.Unmarshal(c.Filters, &steps); err != nil {
			return fmt.Errorf("filters must be a JSON array: %w", err)
		}
	}
	if d := c.displacement(); d != nil {
		if d.Type != nil && *d.Type != "previous_frame" && *d.Type != "baseline" {
			return fmt.Errorf("features.displacement.type must be previous_frame or baseline, got %q", *d.Type)
		}
		if d.BaselineFrameCount != nil && *d.BaselineFrameCount < 1 {
			return fmt.Errorf("features.displacement.baseline_frame_count must be positive, got %d", *d.BaselineFrameCount)
		}
	}
	if q := c.quaternion(); q != nil && q.BaselineFrameCount != nil && *q.BaselineFrameCount < 2 {
		return fmt.Errorf("features.quaternion.baseline_frame_count must be at least 2, got %d", *q.BaselineFrameCount)
	}
	return nil
}

func (c *PipelineConfig) displacement() *DisplacementConfig {
	if c.Features == nil {
		return nil
	}
	return c.Features.Displacement
}

func (c *PipelineConfig) quaternion() *QuaternionConfig {
	if c.Features == nil {
		return nil
	}
	return c.Features.Quaternion
}

// GetDepthScale returns the depth_scale value or the default.
func (c *PipelineConfig) GetDepthScale() float64 {
	if c.DepthScale == nil {
		return 25.0
	}
	return *c.DepthScale
}

// GetFilters returns the raw filter chain, or an empty array.
func (c *PipelineConfig) GetFilters() json.RawMessage {
	if len(c.Filters) == 0 {
		return json.RawMessage("[]")
	}
	return c.Filters
}

// GetColourMode returns the colour_mode value or the default.
func (c *PipelineConfig) GetColourMode() string {
	if c.ColourMode == nil {
		return ColourModeSigma
	}
	return *c.ColourMode
}

// GetColourGranularity returns the colour_granularity value or the default.
func (c *PipelineConfig) GetColourGranularity() string {
	if c.ColourGranularity == nil {
		return GranularityPoint
	}
	return *c.ColourGranularity
}

// GetSigmaCap returns the sigma_cap value or the default.
func (c *PipelineConfig) GetSigmaCap() float64 {
	if c.SigmaCap == nil {
		return 5.0
	}
	return *c.SigmaCap
}

// GetWorkers returns the workers value or the default (0, one per CPU).
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetDisplacementEnabled returns features.displacement.enabled or false.
func (c *PipelineConfig) GetDisplacementEnabled() bool {
	if d := c.displacement(); d != nil && d.Enabled != nil {
		return *d.Enabled
	}
	return false
}

// GetDisplacementSelection returns features.displacement.selection or "".
func (c *PipelineConfig) GetDisplacementSelection() string {
	if d := c.displacement(); d != nil && d.Selection != nil {
		return *d.Selection
	}
	return ""
}

// GetDisplacementClusters returns features.displacement.clusters.
func (c *PipelineConfig) GetDisplacementClusters() []string {
	if d := c.displacement(); d != nil {
		return d.Clusters
	}
	return nil
}

// GetDisplacementType returns features.displacement.type or previous_frame.
func (c *PipelineConfig) GetDisplacementType() string {
	if d := c.displacement(); d != nil && d.Type != nil {
		return *d.Type
	}
	return "previous_frame"
}

// GetDisplacementBaselineFrames returns features.displacement.baseline_frame_count or 5.
func (c *PipelineConfig) GetDisplacementBaselineFrames() int {
	if d := c.displacement(); d != nil && d.BaselineFrameCount != nil {
		return *d.BaselineFrameCount
	}
	return 5
}

// GetQuaternionEnabled returns features.quaternion.enabled or false.
func (c *PipelineConfig) GetQuaternionEnabled() bool {
	if q := c.quaternion(); q != nil && q.Enabled != nil {
		return *q.Enabled
	}
	return false
}

// GetQuaternionBaselineFrames returns features.quaternion.baseline_frame_count or 5.
func (c *PipelineConfig) GetQuaternionBaselineFrames() int {
	if q := c.quaternion(); q != nil && q.BaselineFrameCount != nil {
		return *q.BaselineFrameCount
	}
	return 5
}

// WithWorkers returns a copy of c with workers overridden, for CLI flags.
func (c *PipelineConfig) WithWorkers(n int) *PipelineConfig {
	out := *c
	out.Workers = ptrInt(n)
	return &out
}

// WithDepthScale returns a copy of c with depth_scale overridden.
func (c *PipelineConfig) WithDepthScale(v float64) *PipelineConfig {
	out := *c
	out.DepthScale = ptrFloat64(v)
	return &out
}
