package l3filters

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
)

// Chain is an ordered list of filter steps. A Chain holds no state between
// runs: running it twice on identical input gives identical output.
type Chain struct {
	Steps []FilterSpec
	// Workers bounds parallel alignment inside alignment steps.
	Workers int
	// DepthScale is recorded on baselines built by alignment steps.
	DepthScale float64
}

// ChainResult is the output of Chain.Run.
type ChainResult struct {
	Frames []l1frames.Frame
	// Applied lists the steps that ran, in order.
	Applied  []l1frames.AppliedFilter
	Warnings []l1frames.Warning
	// StepErrors holds one ConfigurationError per rejected step. A rejected
	// step leaves the frames as they were before it.
	StepErrors []error
	// Alignment is the result of the last alignment step, if any.
	Alignment *l2align.AlignmentResult
	// Outliers holds the reports of the last outlier-removal step, if any.
	Outliers []OutlierReport
}

// NewChain returns a chain over specs.
func NewChain(specs ...FilterSpec) Chain {
	return Chain{Steps: specs}
}

// Run applies every step in order to a copy of frames. The only error
// returned is context cancellation; configuration problems are reported
// per step in StepErrors.
func (c Chain) Run(ctx context.Context, frames []l1frames.Frame) (*ChainResult, error) {
	res := &ChainResult{Frames: l1frames.CloneFrames(frames)}

	for i, step := range c.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := step.Name()

		if _, unknown := step.Params.(UnknownParams); unknown || step.Params == nil {
			w := l1frames.Warning{Kind: l1frames.UnknownFilter, Step: name, FrameIndex: -1,
				Message: fmt.Sprintf("step %d: unknown filter %q skipped", i, name)}
			opsf("%s", w)
			res.Warnings = append(res.Warnings, w)
			continue
		}

		out, err := c.apply(ctx, step, res.Frames)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, err
			}
			res.StepErrors = append(res.StepErrors, fmt.Errorf("step %d (%s): %w", i, name, err))
			w := l1frames.Warning{Kind: l1frames.StepFailed, Step: name, FrameIndex: -1,
				Message: fmt.Sprintf("step %d rejected: %v", i, err)}
			opsf("%s", w)
			res.Warnings = append(res.Warnings, w)
			continue
		}

		entry := l1frames.AppliedFilter{Kind: name, Params: step.Params}
		for j := range out.frames {
			if out.applied[j] {
				out.frames[j] = out.frames[j].WithProvenance(entry)
			}
		}
		res.Frames = out.frames
		res.Applied = append(res.Applied, entry)
		res.Warnings = append(res.Warnings, out.warnings...)
		if out.alignment != nil {
			res.Alignment = out.alignment
		}
		if out.outliers != nil {
			res.Outliers = out.outliers
		}
		diagf("step %d (%s) applied to %d frames, %d warnings", i, name, len(out.frames), len(out.warnings))
	}
	return res, nil
}

func (c Chain) apply(ctx context.Context, step FilterSpec, frames []l1frames.Frame) (stepOutput, error) {
	if step.Kind != step.Params.Kind() {
		return stepOutput{}, l1frames.Configf(step.Name(), "spec kind %s does not match params kind %s", step.Kind, step.Params.Kind())
	}

	switch p := step.Params.(type) {
	case AlignParams:
		ar, err := Align(ctx, frames, p, c.Workers, c.DepthScale)
		if err != nil {
			return stepOutput{}, err
		}
		return stepOutput{frames: ar.Frames, applied: ar.Aligned, warnings: ar.Warnings, alignment: ar}, nil
	case CenterParams:
		return allApplied(Center(frames)), nil
	case ScaleParams:
		out, err := Scale(frames, p)
		if err != nil {
			return stepOutput{}, err
		}
		return allApplied(out), nil
	case OutlierParams:
		out, reports, err := RemoveOutliers(frames, p)
		if err != nil {
			return stepOutput{}, err
		}
		removed := 0
		for _, r := range reports {
			removed += r.RemovedCount
		}
		if removed > 0 {
			opsf("%s removed %d points across %d frames", NameOutliers, removed, len(frames))
		}
		so := allApplied(out)
		so.outliers = reports
		return so, nil
	case CustomTransformParams:
		out, err := CustomTransform(frames, p)
		if err != nil {
			return stepOutput{}, err
		}
		return allApplied(out), nil
	case SmoothParams:
		out, applied, warnings, err := Smooth(frames, p)
		if err != nil {
			return stepOutput{}, err
		}
		return stepOutput{frames: out, applied: applied, warnings: warnings}, nil
	case invalidParams:
		return stepOutput{}, p.err
	default:
		return stepOutput{}, l1frames.Configf(step.Name(), "unsupported params type %T", p)
	}
}
