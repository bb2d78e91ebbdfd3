package l3filters

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// stepOutput is what one filter step produces. applied[i] is false for
// frames the step passed through untouched; those get no provenance entry.
type stepOutput struct {
	frames    []l1frames.Frame
	applied   []bool
	warnings  []l1frames.Warning
	alignment *l2align.AlignmentResult
	outliers  []OutlierReport
}

func allApplied(frames []l1frames.Frame) stepOutput {
	applied := make([]bool, len(frames))
	for i := range applied {
		applied[i] = true
	}
	return stepOutput{frames: frames, applied: applied}
}

// Align runs a FrameAligner configured from p.
func Align(ctx context.Context, frames []l1frames.Frame, p AlignParams, workers int, depthScale float64) (*l2align.AlignmentResult, error) {
	a := l2align.FrameAligner{
		Mode:           p.Mode,
		ReferenceIndex: p.ReferenceIndex,
		BaselineFrames: p.BaselineFrames,
		Baseline:       p.Baseline,
		DepthScale:     depthScale,
		EnableScaling:  p.EnableScaling,
		Workers:        workers,
	}
	return a.AlignSequence(ctx, frames)
}

// Center subtracts each frame's centroid from its points.
func Center(frames []l1frames.Frame) []l1frames.Frame {
	out := make([]l1frames.Frame, len(frames))
	for i, f := range frames {
		c := l1frames.Centroid(f.Points)
		pts := make([]l1frames.Vec3, len(f.Points))
		for j, p := range f.Points {
			pts[j] = r3.Sub(p, c)
		}
		out[i] = f.WithPoints(pts)
	}
	return out
}

// Scale multiplies every point by p.Factor, which must be finite and > 0.
func Scale(frames []l1frames.Frame, p ScaleParams) ([]l1frames.Frame, error) {
	if !(p.Factor > 0) || math.IsInf(p.Factor, 0) {
		return nil, l1frames.Configf(NameScale, "scale_factor must be finite and > 0, got %g", p.Factor)
	}
	out := make([]l1frames.Frame, len(frames))
	for i, f := range frames {
		pts := make([]l1frames.Vec3, len(f.Points))
		for j, v := range f.Points {
			pts[j] = r3.Scale(p.Factor, v)
		}
		out[i] = f.WithPoints(pts)
	}
	return out, nil
}

// OutlierReport records what RemoveOutliers dropped from one frame.
type OutlierReport struct {
	FrameIndex        int
	OriginalCount     int
	RemovedCount      int
	DistanceThreshold float64
}

// RemoveOutliers drops, independently per frame, the points whose distance
// from the frame centroid exceeds mean + k·std of those distances. Colour
// entries are dropped with their points. Frames shrink, so later stages see
// them as landmark-count mismatches.
func RemoveOutliers(frames []l1frames.Frame, p OutlierParams) ([]l1frames.Frame, []OutlierReport, error) {
	if !(p.StdThreshold >= 0) || math.IsInf(p.StdThreshold, 0) {
		return nil, nil, l1frames.Configf(NameOutliers, "std_threshold must be finite and >= 0, got %g", p.StdThreshold)
	}
	out := make([]l1frames.Frame, len(frames))
	reports := make([]OutlierReport, len(frames))
	for i, f := range frames {
		reports[i] = OutlierReport{FrameIndex: f.Index, OriginalCount: f.Len()}
		if f.Len() == 0 {
			out[i] = f
			continue
		}
		c := l1frames.Centroid(f.Points)
		dist := make([]float64, f.Len())
		for j, v := range f.Points {
			dist[j] = r3.Norm(r3.Sub(v, c))
		}
		mean, std := stat.PopMeanStdDev(dist, nil)
		threshold := mean + p.StdThreshold*std
		reports[i].DistanceThreshold = threshold

		keepColors := len(f.Colors) == f.Len()
		pts := make([]l1frames.Vec3, 0, f.Len())
		var cols []l1frames.RGB
		if keepColors {
			cols = make([]l1frames.RGB, 0, f.Len())
		}
		for j, d := range dist {
			if d > threshold {
				continue
			}
			pts = append(pts, f.Points[j])
			if keepColors {
				cols = append(cols, f.Colors[j])
			}
		}
		nf := f.WithPoints(pts)
		if keepColors {
			nf.Colors = cols
		}
		out[i] = nf
		reports[i].RemovedCount = f.Len() - len(pts)
		if reports[i].RemovedCount > 0 {
			tracef("frame %d: removed %d/%d points beyond %.6f", f.Index, reports[i].RemovedCount, f.Len(), threshold)
		}
	}
	return out, reports, nil
}

// CustomTransform applies a 3x3 matrix as p' = M·p, or a 4x4 matrix to the
// homogeneous point [p 1]. A 4x4 result with w ∉ {0, 1} is divided by w.
func CustomTransform(frames []l1frames.Frame, p CustomTransformParams) ([]l1frames.Frame, error) {
	m, err := matrixFromRows(p.Matrix)
	if err != nil {
		return nil, err
	}
	rows, _ := m.Dims()

	out := make([]l1frames.Frame, len(frames))
	for i, f := range frames {
		pts := make([]l1frames.Vec3, len(f.Points))
		if rows == 3 {
			lin := mat.NewVecDense(3, nil)
			for j, v := range f.Points {
				lin.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
				pts[j] = l1frames.Vec3{X: lin.AtVec(0), Y: lin.AtVec(1), Z: lin.AtVec(2)}
			}
		} else {
			h := mat.NewVecDense(4, nil)
			for j, v := range f.Points {
				h.MulVec(m, mat.NewVecDense(4, []float64{v.X, v.Y, v.Z, 1}))
				w := h.AtVec(3)
				if w == 0 || w == 1 {
					w = 1
				}
				pts[j] = l1frames.Vec3{X: h.AtVec(0) / w, Y: h.AtVec(1) / w, Z: h.AtVec(2) / w}
			}
		}
		out[i] = f.WithPoints(pts)
	}
	return out, nil
}

func matrixFromRows(rows [][]float64) (*mat.Dense, error) {
	n := len(rows)
	if n != 3 && n != 4 {
		return nil, l1frames.Configf(NameCustomMatrix, "matrix must be 3x3 or 4x4, got %d rows", n)
	}
	data := make([]float64, 0, n*n)
	for i, r := range rows {
		if len(r) != n {
			return nil, l1frames.Configf(NameCustomMatrix, "matrix must be %dx%d, row %d has %d columns", n, n, i, len(r))
		}
		for _, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, l1frames.Configf(NameCustomMatrix, "matrix row %d contains a non-finite value", i)
			}
		}
		data = append(data, r...)
	}
	return mat.NewDense(n, n, data), nil
}

// Smooth replaces each landmark by its mean over a centred window of
// p.Window frames, truncated at the ends of the sequence. The window covers
// positions [i-(w-1)/2, i+w/2]. Frames whose landmark count differs from
// the first frame's are passed through and excluded from their neighbours'
// windows.
func Smooth(frames []l1frames.Frame, p SmoothParams) ([]l1frames.Frame, []bool, []l1frames.Warning, error) {
	if p.Window < MinSmoothWindow || p.Window > MaxSmoothWindow {
		return nil, nil, nil, l1frames.Configf(NameRollingAvg, "window must be in [%d, %d], got %d",
			MinSmoothWindow, MaxSmoothWindow, p.Window)
	}
	out := make([]l1frames.Frame, len(frames))
	applied := make([]bool, len(frames))
	var warnings []l1frames.Warning
	if len(frames) == 0 {
		return out, applied, nil, nil
	}

	n := frames[0].Len()
	before, after := (p.Window-1)/2, p.Window/2
	for i, f := range frames {
		if f.Len() != n {
			w := l1frames.MismatchWarning(NameRollingAvg, f.Index, f.Len(), n)
			opsf("%s", w)
			warnings = append(warnings, w)
			out[i] = f
			continue
		}
		lo, hi := max(0, i-before), min(len(frames)-1, i+after)
		pts := make([]l1frames.Vec3, n)
		count := 0
		for j := lo; j <= hi; j++ {
			if frames[j].Len() != n {
				continue
			}
			count++
			for k, v := range frames[j].Points {
				pts[k] = r3.Add(pts[k], v)
			}
		}
		inv := 1 / float64(count)
		for k := range pts {
			pts[k] = r3.Scale(inv, pts[k])
		}
		out[i] = f.WithPoints(pts)
		applied[i] = true
	}
	return out, applied, warnings, nil
}
