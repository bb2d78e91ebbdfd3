package l2align

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// Mode selects the reference a FrameAligner aligns against.
type Mode int

const (
	// SingleFrame aligns every frame to one designated frame.
	SingleFrame Mode = iota
	// Statistical aligns every frame to the mean shape of a baseline.
	Statistical
)

func (m Mode) String() string {
	switch m {
	case SingleFrame:
		return "single_frame"
	case Statistical:
		return "statistical"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultBaselineFrames is the number of opening frames averaged into a
// statistical baseline when none is configured.
const DefaultBaselineFrames = 30

// FrameAligner aligns a whole sequence against one reference.
type FrameAligner struct {
	Mode Mode
	// ReferenceIndex is the position of the reference frame in SingleFrame mode.
	ReferenceIndex int
	// BaselineFrames is K for Statistical mode; 0 means DefaultBaselineFrames.
	BaselineFrames int
	// Baseline, when set, is used instead of building one from the sequence.
	Baseline *StatisticalBaseline
	// DepthScale is recorded on baselines built here.
	DepthScale    float64
	EnableScaling bool
	// Workers bounds parallel alignment; 0 means GOMAXPROCS, 1 is serial.
	Workers int
}

// RMSDStats summarises alignment residuals across aligned frames.
type RMSDStats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// AlignmentResult is the output of AlignSequence. Frames has the same
// length and order as the input.
type AlignmentResult struct {
	Frames []l1frames.Frame
	// Aligned reports, per position, whether a transform was attached.
	Aligned  []bool
	Stats    RMSDStats
	Warnings []l1frames.Warning
	// Baseline is the statistical baseline used, nil in SingleFrame mode.
	Baseline *StatisticalBaseline
}

// Validate checks the aligner's parameters.
func (a FrameAligner) Validate() error {
	switch a.Mode {
	case SingleFrame:
		if a.ReferenceIndex < 0 {
			return l1frames.Configf("frame_aligner", "reference index must be >= 0, got %d", a.ReferenceIndex)
		}
	case Statistical:
		if a.BaselineFrames < 0 {
			return l1frames.Configf("frame_aligner", "baseline frames must be >= 0, got %d", a.BaselineFrames)
		}
		if a.BaselineFrames == 1 {
			return l1frames.Configf("frame_aligner", "baseline frames must be at least %d, got 1", MinBaselineFrames)
		}
	default:
		return l1frames.Configf("frame_aligner", "unknown mode %d", int(a.Mode))
	}
	if a.Workers < 0 {
		return l1frames.Configf("frame_aligner", "workers must be >= 0, got %d", a.Workers)
	}
	return nil
}

// AlignSequence aligns every frame and attaches a TransformRecord to each
// aligned frame. Frames whose landmark count differs from the reference are
// returned unchanged with a DataMismatch warning. The input is not modified.
func (a FrameAligner) AlignSequence(ctx context.Context, frames []l1frames.Frame) (*AlignmentResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	res := &AlignmentResult{Frames: make([]l1frames.Frame, len(frames))}
	if len(frames) == 0 {
		return res, nil
	}

	var (
		refPoints []l1frames.Vec3
		refIndex  = -1
		desc      l1frames.ReferenceDescriptor
	)
	switch a.Mode {
	case SingleFrame:
		if a.ReferenceIndex >= len(frames) {
			return nil, l1frames.Configf("frame_aligner", "reference index %d out of range for %d frames", a.ReferenceIndex, len(frames))
		}
		refIndex = a.ReferenceIndex
		refPoints = frames[refIndex].Points
		desc = l1frames.ReferenceDescriptor{Kind: l1frames.ReferenceSingleFrame, FrameIndex: frames[refIndex].Index}
	case Statistical:
		baseline := a.Baseline
		if baseline == nil {
			k := a.BaselineFrames
			if k == 0 {
				k = DefaultBaselineFrames
			}
			var err error
			baseline, err = BuildBaseline(frames, k, a.DepthScale)
			if err != nil {
				return nil, err
			}
		}
		res.Baseline = baseline
		refPoints = baseline.MeanShape()
		desc = l1frames.ReferenceDescriptor{Kind: l1frames.ReferenceStatistical, BaselineFrameCount: baseline.SourceFrameCount()}
	}

	contributors := 0
	if a.Mode == Statistical && a.Baseline == nil {
		contributors = res.Baseline.SourceFrameCount()
	}

	warnings := make([][]l1frames.Warning, len(frames))
	res.Aligned = make([]bool, len(frames))

	workers := a.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range frames {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := frames[i]
			d := desc
			d.IsBaselineContributor = i < contributors

			if i == refIndex {
				out := f.Clone()
				rec := l1frames.IdentityRecord(d)
				out.Transform = &rec
				res.Frames[i] = out
				res.Aligned[i] = true
				return nil
			}
			if f.Len() != len(refPoints) {
				w := l1frames.MismatchWarning("frame_aligner", f.Index, f.Len(), len(refPoints))
				opsf("%s", w)
				warnings[i] = append(warnings[i], w)
				res.Frames[i] = f.Clone()
				return nil
			}
			r, err := Align(refPoints, f.Points, a.EnableScaling)
			if err != nil {
				w := l1frames.Warning{Kind: l1frames.NumericalDegeneracy, Step: "frame_aligner", FrameIndex: f.Index,
					Message: fmt.Sprintf("alignment failed: %v; frame passed through", err)}
				opsf("%s", w)
				warnings[i] = append(warnings[i], w)
				res.Frames[i] = f.Clone()
				return nil
			}
			if r.Degenerate {
				warnings[i] = append(warnings[i], l1frames.Warning{Kind: l1frames.NumericalDegeneracy, Step: "frame_aligner",
					FrameIndex: f.Index, Message: "near-zero variance under scaling; scale clamped to 1"})
			}
			out := f.Clone()
			out.Points = Apply(f.Points, r)
			rec := r.Record(d)
			out.Transform = &rec
			res.Frames[i] = out
			res.Aligned[i] = true
			tracef("frame %d aligned: rmsd=%.6f scale=%.6f", f.Index, r.RMSD, r.Scale)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rmsds := make([]float64, 0, len(frames))
	for i, ok := range res.Aligned {
		res.Warnings = append(res.Warnings, warnings[i]...)
		if ok && i != refIndex {
			rmsds = append(rmsds, res.Frames[i].Transform.RMSD)
		}
	}
	res.Stats = computeRMSDStats(rmsds)
	diagf("aligned %d/%d frames (%s): rmsd mean=%.6f std=%.6f min=%.6f max=%.6f, %d warnings",
		res.Stats.Count, len(frames), a.Mode, res.Stats.Mean, res.Stats.Std, res.Stats.Min, res.Stats.Max, len(res.Warnings))
	return res, nil
}

func computeRMSDStats(rmsds []float64) RMSDStats {
	if len(rmsds) == 0 {
		return RMSDStats{}
	}
	mean, std := stat.PopMeanStdDev(rmsds, nil)
	return RMSDStats{
		Count: len(rmsds),
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(rmsds),
		Max:   floats.Max(rmsds),
	}
}
