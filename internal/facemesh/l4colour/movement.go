package l4colour

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// MovementStats summarises frame-to-frame displacement over a sequence.
type MovementStats struct {
	Count int
	Mean  float64
	Std   float64
	P95   float64
	P99   float64
	Max   float64
}

// Movement holds per-landmark displacement magnitudes against the previous
// frame. Frame 0, and any frame whose landmark count differs from its
// predecessor, is all zeros and excluded from Stats.
type Movement struct {
	Magnitudes [][]float64
	Stats      MovementStats
	Warnings   []l1frames.Warning
}

// ComputeMovement measures how far each landmark moved since the previous
// frame. It is meant for filtered sequences, where rigid head motion has
// already been removed.
func ComputeMovement(frames []l1frames.Frame) Movement {
	m := Movement{Magnitudes: make([][]float64, len(frames))}
	var all []float64
	for i, f := range frames {
		mags := make([]float64, f.Len())
		m.Magnitudes[i] = mags
		if i == 0 {
			continue
		}
		prev := frames[i-1]
		if prev.Len() != f.Len() {
			w := l1frames.MismatchWarning("movement", f.Index, f.Len(), prev.Len())
			opsf("%s", w)
			m.Warnings = append(m.Warnings, w)
			continue
		}
		for j, p := range f.Points {
			mags[j] = r3.Norm(r3.Sub(p, prev.Points[j]))
		}
		all = append(all, mags...)
	}
	if len(all) == 0 {
		return m
	}

	mean, std := stat.PopMeanStdDev(all, nil)
	sorted := append([]float64(nil), all...)
	sort.Float64s(sorted)
	m.Stats = MovementStats{
		Count: len(all),
		Mean:  mean,
		Std:   std,
		P95:   stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P99:   stat.Quantile(0.99, stat.LinInterp, sorted, nil),
		Max:   floats.Max(all),
	}
	diagf("movement over %d displacements: mean=%.6f std=%.6f p95=%.6f p99=%.6f max=%.6f",
		m.Stats.Count, m.Stats.Mean, m.Stats.Std, m.Stats.P95, m.Stats.P99, m.Stats.Max)
	return m
}

// Normalisation selects the displacement mapped to full intensity.
type Normalisation int

const (
	NormP95 Normalisation = iota
	NormP99
	// NormStdDev uses mean + 2·std.
	NormStdDev
	NormMax
)

// ParseNormalisation accepts the names used by the interactive tool.
func ParseNormalisation(s string) (Normalisation, error) {
	switch s {
	case "", "percentile_95", "p95":
		return NormP95, nil
	case "percentile_99", "p99":
		return NormP99, nil
	case "std_dev":
		return NormStdDev, nil
	case "max":
		return NormMax, nil
	}
	return 0, l1frames.Configf("movement", "unknown normalisation %q", s)
}

// Value returns the normalising displacement; 0 is replaced by 1.
func (n Normalisation) Value(s MovementStats) float64 {
	var v float64
	switch n {
	case NormP99:
		v = s.P99
	case NormStdDev:
		v = s.Mean + 2*s.Std
	case NormMax:
		v = s.Max
	default:
		v = s.P95
	}
	if v == 0 {
		return 1
	}
	return v
}

// MovementColours colours frames by m's magnitudes on the heat map.
func MovementColours(frames []l1frames.Frame, m Movement, norm Normalisation) ([]l1frames.Frame, error) {
	if len(m.Magnitudes) != len(frames) {
		return nil, fmt.Errorf("movement covers %d frames, sequence has %d", len(m.Magnitudes), len(frames))
	}
	v := norm.Value(m.Stats)
	out := make([]l1frames.Frame, len(frames))
	for i, f := range frames {
		cols := make([]l1frames.RGB, len(m.Magnitudes[i]))
		for j, d := range m.Magnitudes[i] {
			cols[j] = HeatColour(d / v)
		}
		nf := f.Clone()
		nf.Colors = cols
		out[i] = nf
	}
	return out, nil
}
