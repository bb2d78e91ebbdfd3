package l2align

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// MinBaselineFrames is the fewest frames a statistical baseline accepts.
const MinBaselineFrames = 2

// StatisticalBaseline holds per-landmark mean and population standard
// deviation over the opening frames of a session. It is immutable: all
// accessors return copies or scalars.
type StatisticalBaseline struct {
	mean       []l1frames.Vec3
	std        []l1frames.Vec3
	stdMag     []float64
	frameCount int
	depthScale float64
	summary    BaselineSummary
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max l1frames.Vec3
}

// BaselineSummary holds scalar summaries of a baseline.
type BaselineSummary struct {
	MeanStd float64
	MinStd  float64
	MaxStd  float64
	// Bounds covers every point of every contributing frame.
	Bounds Bounds
}

// BuildBaseline computes statistics over the first k frames (k <= 0 means
// every frame). depthScale is the constant already applied to Z by the
// caller; it is recorded, not applied or checked.
func BuildBaseline(frames []l1frames.Frame, k int, depthScale float64) (*StatisticalBaseline, error) {
	if k <= 0 || k > len(frames) {
		k = len(frames)
	}
	if k < MinBaselineFrames {
		return nil, l1frames.Configf("baseline", "need at least %d frames, got %d", MinBaselineFrames, k)
	}
	used := frames[:k]
	n := used[0].Len()
	if n == 0 {
		return nil, l1frames.Configf("baseline", "frame %d has no landmarks", used[0].Index)
	}
	for _, f := range used[1:] {
		if f.Len() != n {
			return nil, l1frames.Configf("baseline", "inconsistent landmark counts: frame %d has %d, frame %d has %d",
				used[0].Index, n, f.Index, f.Len())
		}
	}

	b := &StatisticalBaseline{
		mean:       make([]l1frames.Vec3, n),
		std:        make([]l1frames.Vec3, n),
		stdMag:     make([]float64, n),
		frameCount: k,
		depthScale: depthScale,
	}

	xs := make([]float64, k)
	ys := make([]float64, k)
	zs := make([]float64, k)
	minX, minY, minZ := make([]float64, n), make([]float64, n), make([]float64, n)
	maxX, maxY, maxZ := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		for j, f := range used {
			p := f.Points[i]
			xs[j], ys[j], zs[j] = p.X, p.Y, p.Z
		}
		mx, sx := stat.PopMeanStdDev(xs, nil)
		my, sy := stat.PopMeanStdDev(ys, nil)
		mz, sz := stat.PopMeanStdDev(zs, nil)
		b.mean[i] = l1frames.Vec3{X: mx, Y: my, Z: mz}
		b.std[i] = l1frames.Vec3{X: sx, Y: sy, Z: sz}
		b.stdMag[i] = r3.Norm(b.std[i])

		minX[i], maxX[i] = floats.Min(xs), floats.Max(xs)
		minY[i], maxY[i] = floats.Min(ys), floats.Max(ys)
		minZ[i], maxZ[i] = floats.Min(zs), floats.Max(zs)
	}

	b.summary = BaselineSummary{
		MeanStd: stat.Mean(b.stdMag, nil),
		MinStd:  floats.Min(b.stdMag),
		MaxStd:  floats.Max(b.stdMag),
		Bounds: Bounds{
			Min: l1frames.Vec3{X: floats.Min(minX), Y: floats.Min(minY), Z: floats.Min(minZ)},
			Max: l1frames.Vec3{X: floats.Max(maxX), Y: floats.Max(maxY), Z: floats.Max(maxZ)},
		},
	}
	diagf("baseline built from %d frames, %d landmarks, mean std %.4g (min %.4g, max %.4g)",
		k, n, b.summary.MeanStd, b.summary.MinStd, b.summary.MaxStd)
	return b, nil
}

// NewBaseline builds a baseline from precomputed statistics, for example a
// baseline persisted from an earlier session. mean and std must have the
// same non-zero length and std must be non-negative.
func NewBaseline(mean, std []l1frames.Vec3, frameCount int, depthScale float64) (*StatisticalBaseline, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, l1frames.Configf("baseline", "mean (%d) and std (%d) must have the same non-zero length", len(mean), len(std))
	}
	b := &StatisticalBaseline{
		mean:       append([]l1frames.Vec3(nil), mean...),
		std:        append([]l1frames.Vec3(nil), std...),
		stdMag:     make([]float64, len(std)),
		frameCount: frameCount,
		depthScale: depthScale,
	}
	for i, s := range std {
		if s.X < 0 || s.Y < 0 || s.Z < 0 {
			return nil, l1frames.Configf("baseline", "landmark %d has negative std", i)
		}
		b.stdMag[i] = r3.Norm(s)
	}
	lo, hi := mean[0], mean[0]
	for _, m := range mean[1:] {
		lo = l1frames.Vec3{X: math.Min(lo.X, m.X), Y: math.Min(lo.Y, m.Y), Z: math.Min(lo.Z, m.Z)}
		hi = l1frames.Vec3{X: math.Max(hi.X, m.X), Y: math.Max(hi.Y, m.Y), Z: math.Max(hi.Z, m.Z)}
	}
	b.summary = BaselineSummary{
		MeanStd: stat.Mean(b.stdMag, nil),
		MinStd:  floats.Min(b.stdMag),
		MaxStd:  floats.Max(b.stdMag),
		Bounds:  Bounds{Min: lo, Max: hi},
	}
	return b, nil
}

// LandmarkCount returns N.
func (b *StatisticalBaseline) LandmarkCount() int { return len(b.mean) }

// SourceFrameCount returns the number of frames averaged.
func (b *StatisticalBaseline) SourceFrameCount() int { return b.frameCount }

// DepthScale returns the depth constant recorded at construction.
func (b *StatisticalBaseline) DepthScale() float64 { return b.depthScale }

// Mean returns the mean position of landmark i.
func (b *StatisticalBaseline) Mean(i int) l1frames.Vec3 { return b.mean[i] }

// StdDev returns the per-axis population standard deviation of landmark i.
func (b *StatisticalBaseline) StdDev(i int) l1frames.Vec3 { return b.std[i] }

// StdMagnitude returns the Euclidean norm of landmark i's per-axis std.
func (b *StatisticalBaseline) StdMagnitude(i int) float64 { return b.stdMag[i] }

// MeanShape returns a copy of the mean landmark positions.
func (b *StatisticalBaseline) MeanShape() []l1frames.Vec3 {
	return append([]l1frames.Vec3(nil), b.mean...)
}

// Summary returns the scalar summaries.
func (b *StatisticalBaseline) Summary() BaselineSummary { return b.summary }
