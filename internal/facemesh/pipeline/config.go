package pipeline

import (
	"fmt"
	"math"

	"github.com/banshee-data/facemotion/internal/config"
	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l3filters"
	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
)

// Config describes one processing session. Run takes it by value and never
// modifies it; a nil Colour or Features skips that stage.
type Config struct {
	// DepthScale multiplies raw Z once before any other stage.
	DepthScale float64
	Filters    []l3filters.FilterSpec
	Colour     *l4colour.Colorizer
	// ColourBaselineFrames is K for the colouring baseline, built from the
	// filtered frames; 0 means the chain's alignment baseline size, or
	// l2align.DefaultBaselineFrames without one.
	ColourBaselineFrames int
	Features             *l5features.Config
	// Workers bounds parallel alignment; 0 means GOMAXPROCS.
	Workers int
}

// Validate checks everything that can be checked before touching frames.
// n is the landmark count of the session, used for feature indices.
func (c Config) Validate(n int) error {
	if !(c.DepthScale > 0) || math.IsInf(c.DepthScale, 0) {
		return l1frames.Configf("pipeline", "depth scale must be finite and > 0, got %g", c.DepthScale)
	}
	if c.Workers < 0 {
		return l1frames.Configf("pipeline", "workers must be >= 0, got %d", c.Workers)
	}
	if c.ColourBaselineFrames < 0 || c.ColourBaselineFrames == 1 {
		return l1frames.Configf("pipeline", "colour baseline frames must be 0 or >= 2, got %d", c.ColourBaselineFrames)
	}
	if c.Colour != nil {
		if err := c.Colour.Validate(); err != nil {
			return err
		}
	}
	if c.Features != nil {
		if err := c.Features.Validate(n); err != nil {
			return err
		}
	}
	return nil
}

// ConfigFromFile loads a pipeline configuration file and converts it.
func ConfigFromFile(path string) (Config, error) {
	pc, err := config.LoadPipelineConfig(path)
	if err != nil {
		return Config{}, err
	}
	return ConfigFromPipeline(pc)
}

// ConfigFromPipeline converts a loaded PipelineConfig into a Config. The
// filter list is decoded step by step, so unknown or malformed steps reach
// the chain and are reported there. Rejected selection tokens are logged.
func ConfigFromPipeline(pc *config.PipelineConfig) (Config, error) {
	specs, err := l3filters.ParseFilterSpecs(pc.GetFilters())
	if err != nil {
		return Config{}, err
	}

	col := &l4colour.Colorizer{SigmaCap: pc.GetSigmaCap()}
	switch pc.GetColourMode() {
	case config.ColourModeSigma:
		col.Scale = l4colour.Sigma
	case config.ColourModeContinuous:
		col.Scale = l4colour.Continuous
	}
	if pc.GetColourGranularity() == config.GranularityCluster {
		col.Granularity = l4colour.PerCluster
	}

	cfg := Config{
		DepthScale: pc.GetDepthScale(),
		Filters:    specs,
		Colour:     col,
		Workers:    pc.GetWorkers(),
	}

	if pc.GetDisplacementEnabled() || pc.GetQuaternionEnabled() {
		fc := &l5features.Config{Workers: cfg.Workers}
		if pc.GetDisplacementEnabled() {
			mode, err := l5features.ParseDisplacementMode(pc.GetDisplacementType())
			if err != nil {
				return Config{}, err
			}
			indices, rejected := l5features.ParseSelection(pc.GetDisplacementSelection(), pc.GetDisplacementClusters()...)
			if len(rejected) > 0 {
				opsf("displacement selection: ignoring %v", rejected)
			}
			fc.Displacement = l5features.DisplacementConfig{
				Enabled:        true,
				Indices:        indices,
				Mode:           mode,
				BaselineFrames: pc.GetDisplacementBaselineFrames(),
			}
		}
		if pc.GetQuaternionEnabled() {
			fc.Quaternion = l5features.QuaternionConfig{
				Enabled:        true,
				BaselineFrames: pc.GetQuaternionBaselineFrames(),
			}
		}
		cfg.Features = fc
	}
	return cfg, nil
}

// WithSource returns a copy of c whose feature rows are labelled source.
func (c Config) WithSource(source string) Config {
	if c.Features != nil {
		fc := *c.Features
		fc.Source = source
		c.Features = &fc
	}
	return c
}

func (c Config) String() string {
	return fmt.Sprintf("depth=%g filters=%d colour=%t features=%t workers=%d",
		c.DepthScale, len(c.Filters), c.Colour != nil, c.Features != nil, c.Workers)
}
