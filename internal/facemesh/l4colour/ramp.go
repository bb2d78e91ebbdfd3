package l4colour

import "github.com/banshee-data/facemotion/internal/facemesh/l1frames"

// Tier is the σ band a deviation falls in.
type Tier int

const (
	// TierNone: continuous scale, or a landmark outside every cluster.
	TierNone Tier = iota
	// TierWithin1: deviation ≤ 1σ, drawn in blues.
	TierWithin1
	// TierBetween1And3: 1σ < deviation ≤ 3σ, blue to yellow.
	TierBetween1And3
	// TierBeyond3: deviation > 3σ, yellow to red.
	TierBeyond3
)

func (t Tier) String() string {
	switch t {
	case TierWithin1:
		return "within_1_sigma"
	case TierBetween1And3:
		return "1_to_3_sigma"
	case TierBeyond3:
		return "beyond_3_sigma"
	default:
		return "none"
	}
}

// Neutral is the colour of landmarks that belong to no cluster.
var Neutral = l1frames.RGB{R: 0.5, G: 0.5, B: 0.5}

// SigmaColour maps a deviation in σ units onto the three-tier ramp. limit is
// where the red end saturates and must be > 3.
func SigmaColour(sigma, limit float64) (l1frames.RGB, Tier) {
	switch {
	case sigma <= 1:
		t := clamp01(sigma)
		return l1frames.RGB{R: 0, G: 0, B: 0.5 + 0.5*t}, TierWithin1
	case sigma <= 3:
		t := (sigma - 1) / 2
		return l1frames.RGB{R: t, G: t, B: 1 - t}, TierBetween1And3
	default:
		t := clamp01((sigma - 3) / (limit - 3))
		return l1frames.RGB{R: 1, G: 1 - t, B: 0}, TierBeyond3
	}
}

// HeatColour maps an intensity in [0, 1] onto blue → cyan → green →
// yellow → red. Values outside [0, 1] are clamped.
func HeatColour(intensity float64) l1frames.RGB {
	i := clamp01(intensity)
	switch {
	case i < 0.25:
		return l1frames.RGB{R: 0, G: i * 4, B: 1}
	case i < 0.5:
		return l1frames.RGB{R: 0, G: 1, B: 1 - (i-0.25)*4}
	case i < 0.75:
		return l1frames.RGB{R: (i - 0.5) * 4, G: 1, B: 0}
	default:
		return l1frames.RGB{R: 1, G: 1 - (i-0.75)*4, B: 0}
	}
}

func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
