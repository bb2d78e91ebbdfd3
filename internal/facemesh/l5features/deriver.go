package l5features

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// Deriver computes a feature table from a landmark sequence.
type Deriver struct {
	Config Config
}

// Derive returns one row per frame. Columns are the displacement features in
// ascending landmark order, then the quaternion (x, y, z, w), then rmsd and
// rotation_deg when any frame carries a transform.
//
// Frames whose landmark count differs from the first frame's get zero
// displacement and a DataMismatch warning. Frames without a TransformRecord
// are aligned once against a statistical baseline of the first K frames;
// a frame that still has no transform gets the identity quaternion.
func (d Deriver) Derive(ctx context.Context, frames []l1frames.Frame) (*Table, error) {
	cfg := d.Config
	n := l1frames.FaceMeshLandmarks
	if len(frames) > 0 {
		n = frames[0].Len()
	}
	if err := cfg.Validate(n); err != nil {
		return nil, err
	}

	t := &Table{Rows: make([]Row, len(frames))}
	for i, f := range frames {
		t.Rows[i] = Row{FrameIndex: f.Index, Source: cfg.Source}
		if f.HasTimestamp {
			ts := f.Timestamp
			t.Rows[i].TimeSeconds = &ts
		}
	}
	if len(frames) == 0 {
		t.Columns = columnsFor(cfg, false)
		return t, nil
	}

	var disp [][]float64
	var indices []int
	if cfg.Displacement.Enabled {
		indices = sortedUnique(cfg.Displacement.Indices)
		disp, t.Warnings = displacements(frames, indices, cfg.Displacement)
	}

	var transforms []*l1frames.TransformRecord
	hasTransform := false
	if cfg.Quaternion.Enabled {
		var warnings []l1frames.Warning
		var err error
		transforms, warnings, err = resolveTransforms(ctx, frames, cfg)
		if err != nil {
			return nil, err
		}
		t.Warnings = append(t.Warnings, warnings...)
		for _, rec := range transforms {
			if rec != nil {
				hasTransform = true
				break
			}
		}
	}

	t.Columns = columnsFor(cfg, hasTransform)
	for i := range frames {
		vals := make([]float64, 0, len(t.Columns))
		if disp != nil {
			vals = append(vals, disp[i]...)
		}
		if cfg.Quaternion.Enabled {
			q := IdentityQuaternion
			rec := transforms[i]
			if rec != nil {
				q = FromRotation(rec.Rotation)
			}
			vals = append(vals, q.X, q.Y, q.Z, q.W)
			if hasTransform {
				var rmsd, deg float64
				if rec != nil {
					rmsd = rec.RMSD
					deg = l2align.RotationAngleDeg(l1frames.Identity3(), rec.Rotation)
				}
				vals = append(vals, rmsd, deg)
			}
		}
		t.Rows[i].Values = vals
		tracef("frame %d: %v", frames[i].Index, vals)
	}
	diagf("derived %d rows x %d columns from %q, %d warnings", len(t.Rows), len(t.Columns), cfg.Source, len(t.Warnings))
	return t, nil
}

func columnsFor(cfg Config, hasTransform bool) []string {
	var cols []string
	if cfg.Displacement.Enabled {
		for _, idx := range sortedUnique(cfg.Displacement.Indices) {
			cols = append(cols, DisplacementColumn(idx))
		}
	}
	if cfg.Quaternion.Enabled {
		cols = append(cols, ColQuatX, ColQuatY, ColQuatZ, ColQuatW)
		if hasTransform {
			cols = append(cols, ColRMSD, ColRotationDeg)
		}
	}
	return cols
}

func sortedUnique(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	j := 0
	for i, v := range out {
		if i > 0 && v == out[j-1] {
			continue
		}
		out[j] = v
		j++
	}
	return out[:j]
}

func displacements(frames []l1frames.Frame, indices []int, cfg DisplacementConfig) ([][]float64, []l1frames.Warning) {
	n := frames[0].Len()
	out := make([][]float64, len(frames))
	var warnings []l1frames.Warning

	var ref []l1frames.Vec3
	if cfg.Mode == Baseline {
		ref = baselineMean(frames, indices, baselineCount(cfg.BaselineFrames))
	}
	for i, f := range frames {
		row := make([]float64, len(indices))
		out[i] = row
		if f.Len() != n {
			w := l1frames.MismatchWarning("displacement", f.Index, f.Len(), n)
			opsf("%s", w)
			warnings = append(warnings, w)
			continue
		}
		switch cfg.Mode {
		case PreviousFrame:
			if i == 0 || frames[i-1].Len() != n {
				continue
			}
			prev := frames[i-1].Points
			for k, idx := range indices {
				row[k] = r3.Norm(r3.Sub(f.Points[idx], prev[idx]))
			}
		case Baseline:
			for k, idx := range indices {
				row[k] = r3.Norm(r3.Sub(f.Points[idx], ref[k]))
			}
		}
	}
	return out, warnings
}

// baselineMean averages the selected landmarks over the first k frames that
// have the sequence's landmark count.
func baselineMean(frames []l1frames.Frame, indices []int, k int) []l1frames.Vec3 {
	n := frames[0].Len()
	k = min(k, len(frames))
	sum := make([]l1frames.Vec3, len(indices))
	count := 0
	for _, f := range frames[:k] {
		if f.Len() != n {
			continue
		}
		for j, idx := range indices {
			sum[j] = r3.Add(sum[j], f.Points[idx])
		}
		count++
	}
	inv := 1 / float64(count)
	for j := range sum {
		sum[j] = r3.Scale(inv, sum[j])
	}
	return sum
}

// resolveTransforms returns each frame's transform. Frames without one are
// aligned together against a statistical baseline built from those frames
// alone, so the baseline never mixes aligned and raw coordinates. When only
// some frames lacked a transform the table holds quaternions against two
// references and a DataMismatch warning says so.
func resolveTransforms(ctx context.Context, frames []l1frames.Frame, cfg Config) ([]*l1frames.TransformRecord, []l1frames.Warning, error) {
	out := make([]*l1frames.TransformRecord, len(frames))
	var missing []int
	for i, f := range frames {
		out[i] = f.Transform
		if f.Transform == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return out, nil, nil
	}

	var warnings []l1frames.Warning
	raw := frames
	if len(missing) < len(frames) {
		raw = make([]l1frames.Frame, len(missing))
		for j, i := range missing {
			raw[j] = frames[i]
		}
		w := l1frames.Warning{Kind: l1frames.DataMismatch, Step: "quaternion", FrameIndex: -1,
			Message: fmt.Sprintf("%d of %d frames have no transform; they are aligned to their own baseline, not the chain's reference",
				len(missing), len(frames))}
		opsf("%s", w)
		warnings = append(warnings, w)
	}

	k := baselineCount(cfg.Quaternion.BaselineFrames)
	opsf("%d/%d frames have no transform, aligning to a %d-frame statistical baseline", len(missing), len(frames), k)
	a := l2align.FrameAligner{Mode: l2align.Statistical, BaselineFrames: k, Workers: cfg.Workers}
	res, err := a.AlignSequence(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		w := l1frames.Warning{Kind: l1frames.StepFailed, Step: "quaternion", FrameIndex: -1,
			Message: fmt.Sprintf("on-demand alignment failed: %v; using identity rotation", err)}
		opsf("%s", w)
		return out, append(warnings, w), nil
	}
	for j, i := range missing {
		if res.Aligned[j] {
			out[i] = res.Frames[j].Transform
		}
	}
	return out, append(warnings, res.Warnings...), nil
}
