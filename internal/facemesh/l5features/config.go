package l5features

import (
	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// DefaultBaselineFrames is K for the displacement baseline and for the
// on-demand alignment behind quaternion features.
const DefaultBaselineFrames = 5

// DisplacementMode selects what a landmark's displacement is measured from.
type DisplacementMode int

const (
	// PreviousFrame measures from the same landmark in the previous frame.
	PreviousFrame DisplacementMode = iota
	// Baseline measures from the landmark's mean over the first K frames.
	Baseline
)

func (m DisplacementMode) String() string {
	switch m {
	case PreviousFrame:
		return "previous_frame"
	case Baseline:
		return "baseline"
	default:
		return "unknown"
	}
}

// ParseDisplacementMode accepts the names String returns.
func ParseDisplacementMode(s string) (DisplacementMode, error) {
	switch s {
	case "", "previous_frame":
		return PreviousFrame, nil
	case "baseline":
		return Baseline, nil
	}
	return 0, l1frames.Configf("features", "unknown displacement type %q", s)
}

// DisplacementConfig configures per-landmark displacement features.
type DisplacementConfig struct {
	Enabled bool
	// Indices are the landmarks to measure; columns follow ascending order.
	Indices []int
	Mode    DisplacementMode
	// BaselineFrames is K for Baseline mode; 0 means DefaultBaselineFrames.
	BaselineFrames int
}

// QuaternionConfig configures head-pose quaternion features.
type QuaternionConfig struct {
	Enabled bool
	// BaselineFrames is K for the statistical alignment run when frames
	// carry no transform; 0 means DefaultBaselineFrames.
	BaselineFrames int
}

// Config selects which feature families Derive computes.
type Config struct {
	Displacement DisplacementConfig
	Quaternion   QuaternionConfig
	// Source names the recording; it is copied into every row.
	Source string
	// Workers bounds the on-demand alignment; 0 means GOMAXPROCS.
	Workers int
}

// Validate checks the configuration against a sequence of n landmarks. It
// fails before any computation so a bad request never yields a partial table.
func (c Config) Validate(n int) error {
	if !c.Displacement.Enabled && !c.Quaternion.Enabled {
		return l1frames.Configf("features", "at least one feature type (displacement or quaternion) must be enabled")
	}
	if c.Displacement.Enabled {
		d := c.Displacement
		if len(d.Indices) == 0 {
			return l1frames.Configf("features", "displacement features require selected landmark indices")
		}
		var bad []int
		for _, idx := range d.Indices {
			if idx < 0 || idx >= n {
				bad = append(bad, idx)
			}
		}
		if len(bad) > 0 {
			return l1frames.Configf("features", "invalid landmark indices %v: must be 0-%d", bad, n-1)
		}
		if d.Mode != PreviousFrame && d.Mode != Baseline {
			return l1frames.Configf("features", "unknown displacement mode %d", int(d.Mode))
		}
		if d.BaselineFrames < 0 {
			return l1frames.Configf("features", "displacement baseline frames must be >= 0, got %d", d.BaselineFrames)
		}
	}
	if c.Quaternion.Enabled {
		k := c.Quaternion.BaselineFrames
		if k < 0 || k == 1 {
			return l1frames.Configf("features", "quaternion baseline frames must be 0 or >= %d, got %d", l2align.MinBaselineFrames, k)
		}
	}
	if c.Workers < 0 {
		return l1frames.Configf("features", "workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

func baselineCount(k int) int {
	if k == 0 {
		return DefaultBaselineFrames
	}
	return k
}
