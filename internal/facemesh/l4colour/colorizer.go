package l4colour

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// Granularity selects whether deviation is measured per landmark or per
// anatomical cluster.
type Granularity int

const (
	PerPoint Granularity = iota
	PerCluster
)

// Scale selects how a deviation is turned into a colour.
type Scale int

const (
	// Continuous maps raw distance from the baseline mean onto a heat map.
	Continuous Scale = iota
	// Sigma maps distance in units of baseline std onto the tier ramp.
	Sigma
)

const (
	// DefaultSigmaCap is where the σ ramp saturates at red.
	DefaultSigmaCap = 5.0
	// StdEpsilon replaces a zero baseline std.
	StdEpsilon = 1e-9
)

// Colorizer colours frames by their deviation from a statistical baseline.
// The zero value colours per point on the continuous scale, normalised by
// each frame's largest deviation.
type Colorizer struct {
	Granularity Granularity
	Scale       Scale
	// SigmaCap is where the σ ramp saturates; 0 means DefaultSigmaCap.
	SigmaCap float64
	// MaxDistance normalises the continuous scale; 0 means per-frame max.
	MaxDistance float64
	// Clusters is used by PerCluster; nil means FacialClusters.
	Clusters l1frames.ClusterTable
}

// ClusterDeviation is one cluster's aggregate deviation in one frame.
type ClusterDeviation struct {
	Name     string
	Distance float64
	// Sigma is Distance over the mean std magnitude of the cluster; 0 on
	// the continuous scale.
	Sigma float64
	Tier  Tier
}

// FrameDeviation holds per-landmark deviations for one frame. In cluster
// mode each landmark carries its cluster's values; unclustered landmarks
// are 0 with TierNone.
type FrameDeviation struct {
	FrameIndex int
	Distances  []float64
	Sigmas     []float64
	Tiers      []Tier
	Clusters   []ClusterDeviation
}

// Colouring is the output of Colour.
type Colouring struct {
	Frames     []l1frames.Frame
	Deviations []FrameDeviation
	Warnings   []l1frames.Warning
	// TierCounts counts coloured landmarks per tier over the whole sequence.
	TierCounts [4]int
}

// Validate checks the colourer's parameters.
func (c Colorizer) Validate() error {
	if c.Granularity != PerPoint && c.Granularity != PerCluster {
		return l1frames.Configf("colorizer", "unknown granularity %d", int(c.Granularity))
	}
	if c.Scale != Continuous && c.Scale != Sigma {
		return l1frames.Configf("colorizer", "unknown scale %d", int(c.Scale))
	}
	if c.SigmaCap != 0 && !(c.SigmaCap > 3) {
		return l1frames.Configf("colorizer", "sigma cap must be > 3, got %g", c.SigmaCap)
	}
	if c.MaxDistance < 0 || math.IsNaN(c.MaxDistance) {
		return l1frames.Configf("colorizer", "max distance must be >= 0, got %g", c.MaxDistance)
	}
	return nil
}

// Colour returns copies of frames with Colors set from their deviation
// against baseline. Frames whose landmark count differs from the baseline
// are returned uncoloured with a DataMismatch warning. Neither the frames
// nor the baseline are modified, so colouring the same input twice yields
// identical output.
func (c Colorizer) Colour(frames []l1frames.Frame, baseline *l2align.StatisticalBaseline) (*Colouring, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, l1frames.Configf("colorizer", "baseline is required")
	}
	limit := c.SigmaCap
	if limit == 0 {
		limit = DefaultSigmaCap
	}
	table := c.Clusters
	if table == nil {
		table = l1frames.FacialClusters()
	}
	n := baseline.LandmarkCount()
	var assign []int
	if c.Granularity == PerCluster {
		assign = table.Assignment(n)
	}

	out := &Colouring{
		Frames:     make([]l1frames.Frame, len(frames)),
		Deviations: make([]FrameDeviation, 0, len(frames)),
	}
	for i, f := range frames {
		if f.Len() != n {
			w := l1frames.MismatchWarning("colorizer", f.Index, f.Len(), n)
			opsf("%s", w)
			out.Warnings = append(out.Warnings, w)
			out.Frames[i] = f.Clone()
			continue
		}
		var dev FrameDeviation
		var colours []l1frames.RGB
		if c.Granularity == PerCluster {
			dev, colours = c.colourClusters(f, baseline, table, assign, limit)
		} else {
			dev, colours = c.colourPoints(f, baseline, limit)
		}
		for _, tier := range dev.Tiers {
			out.TierCounts[tier]++
		}
		nf := f.Clone()
		nf.Colors = colours
		out.Frames[i] = nf
		out.Deviations = append(out.Deviations, dev)
	}
	diagf("coloured %d/%d frames, tiers: none=%d within1=%d 1to3=%d beyond3=%d",
		len(out.Deviations), len(frames), out.TierCounts[TierNone], out.TierCounts[TierWithin1],
		out.TierCounts[TierBetween1And3], out.TierCounts[TierBeyond3])
	return out, nil
}

func (c Colorizer) colourPoints(f l1frames.Frame, b *l2align.StatisticalBaseline, limit float64) (FrameDeviation, []l1frames.RGB) {
	n := f.Len()
	dev := FrameDeviation{FrameIndex: f.Index, Distances: make([]float64, n), Tiers: make([]Tier, n)}
	for j, p := range f.Points {
		dev.Distances[j] = r3.Norm(r3.Sub(p, b.Mean(j)))
	}
	colours := make([]l1frames.RGB, n)
	if c.Scale == Sigma {
		dev.Sigmas = make([]float64, n)
		for j, d := range dev.Distances {
			dev.Sigmas[j] = d / guardStd(b.StdMagnitude(j))
			colours[j], dev.Tiers[j] = SigmaColour(dev.Sigmas[j], limit)
		}
		return dev, colours
	}
	norm := c.continuousNorm(dev.Distances)
	for j, d := range dev.Distances {
		colours[j] = HeatColour(d / norm)
	}
	return dev, colours
}

func (c Colorizer) colourClusters(f l1frames.Frame, b *l2align.StatisticalBaseline, table l1frames.ClusterTable, assign []int, limit float64) (FrameDeviation, []l1frames.RGB) {
	n := f.Len()
	dev := FrameDeviation{
		FrameIndex: f.Index,
		Distances:  make([]float64, n),
		Tiers:      make([]Tier, n),
		Clusters:   make([]ClusterDeviation, len(table)),
	}
	if c.Scale == Sigma {
		dev.Sigmas = make([]float64, n)
	}

	clusterColours := make([]l1frames.RGB, len(table))
	dists := make([]float64, len(table))
	for ci, cl := range table {
		var sumDist, sumStd float64
		count := 0
		for _, idx := range cl.Indices {
			if idx < 0 || idx >= n {
				continue
			}
			sumDist += r3.Norm(r3.Sub(f.Points[idx], b.Mean(idx)))
			sumStd += b.StdMagnitude(idx)
			count++
		}
		cd := ClusterDeviation{Name: cl.Name}
		if count > 0 {
			cd.Distance = sumDist / float64(count)
			if c.Scale == Sigma {
				cd.Sigma = cd.Distance / guardStd(sumStd/float64(count))
				clusterColours[ci], cd.Tier = SigmaColour(cd.Sigma, limit)
			}
		}
		dists[ci] = cd.Distance
		dev.Clusters[ci] = cd
	}
	if c.Scale == Continuous {
		norm := c.continuousNorm(dists)
		for ci := range table {
			clusterColours[ci] = HeatColour(dists[ci] / norm)
		}
	}

	colours := make([]l1frames.RGB, n)
	for j := range colours {
		ci := assign[j]
		if ci < 0 {
			colours[j] = Neutral
			continue
		}
		colours[j] = clusterColours[ci]
		dev.Distances[j] = dev.Clusters[ci].Distance
		dev.Tiers[j] = dev.Clusters[ci].Tier
		if dev.Sigmas != nil {
			dev.Sigmas[j] = dev.Clusters[ci].Sigma
		}
	}
	return dev, colours
}

func (c Colorizer) continuousNorm(distances []float64) float64 {
	norm := c.MaxDistance
	if norm == 0 && len(distances) > 0 {
		norm = floats.Max(distances)
	}
	if norm == 0 {
		norm = 1
	}
	return norm
}

func guardStd(s float64) float64 {
	if s < StdEpsilon {
		return StdEpsilon
	}
	return s
}
