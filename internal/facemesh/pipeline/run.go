package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
	"github.com/banshee-data/facemotion/internal/facemesh/l3filters"
	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
)

// Result is the output of Run.
type Result struct {
	// Frames are the filtered frames, coloured when colouring ran.
	Frames []l1frames.Frame
	Chain  *l3filters.ChainResult
	// Baseline is the statistical baseline used for colouring, nil when
	// colouring was skipped.
	Baseline  *l2align.StatisticalBaseline
	Colouring *l4colour.Colouring
	Features  *l5features.Table
	// Warnings collects every stage's warnings in stage order.
	Warnings []l1frames.Warning
}

// Run processes one session. Raw Z is multiplied by cfg.DepthScale once,
// then the filter chain runs, then colouring against a baseline and
// feature derivation on the filtered frames. The input frames are not
// modified.
//
// Configuration problems are returned before any stage runs. A failing
// filter step or an unbuildable colouring baseline is recorded as a
// warning and the session continues.
func Run(ctx context.Context, frames []l1frames.Frame, cfg Config) (*Result, error) {
	n := l1frames.FaceMeshLandmarks
	if len(frames) > 0 {
		n = frames[0].Len()
	}
	if err := cfg.Validate(n); err != nil {
		return nil, err
	}
	diagf("run: %d frames of %d landmarks, %s", len(frames), n, cfg)

	scaled := l1frames.ScaleDepth(frames, cfg.DepthScale)
	chain := l3filters.Chain{Steps: cfg.Filters, Workers: cfg.Workers, DepthScale: cfg.DepthScale}
	cr, err := chain.Run(ctx, scaled)
	if err != nil {
		return nil, fmt.Errorf("filter chain: %w", err)
	}
	res := &Result{Frames: cr.Frames, Chain: cr}
	res.Warnings = append(res.Warnings, cr.Warnings...)

	if cfg.Colour != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Baseline = colourBaseline(cr, cfg)
		if res.Baseline == nil {
			w := l1frames.Warning{Kind: l1frames.StepFailed, Step: "colour", FrameIndex: -1,
				Message: "no baseline could be built; colouring skipped"}
			opsf("%s", w)
			res.Warnings = append(res.Warnings, w)
		} else {
			col, err := cfg.Colour.Colour(cr.Frames, res.Baseline)
			if err != nil {
				return nil, fmt.Errorf("colour: %w", err)
			}
			res.Colouring = col
			res.Frames = col.Frames
			res.Warnings = append(res.Warnings, col.Warnings...)
		}
	}

	if cfg.Features != nil {
		fc := *cfg.Features
		if fc.Workers == 0 {
			fc.Workers = cfg.Workers
		}
		tbl, err := l5features.Deriver{Config: fc}.Derive(ctx, cr.Frames)
		if err != nil {
			return nil, fmt.Errorf("features: %w", err)
		}
		res.Features = tbl
		res.Warnings = append(res.Warnings, tbl.Warnings...)
	}

	diagf("run complete: %d steps applied, %d step errors, %d warnings",
		len(cr.Applied), len(cr.StepErrors), len(res.Warnings))
	return res, nil
}

// colourBaseline builds the colouring baseline from the opening filtered
// frames, so it shares their coordinates whatever steps the chain ran. K
// defaults to the chain's statistical alignment baseline size, then to
// l2align.DefaultBaselineFrames.
func colourBaseline(cr *l3filters.ChainResult, cfg Config) *l2align.StatisticalBaseline {
	k := cfg.ColourBaselineFrames
	if k == 0 && cr.Alignment != nil && cr.Alignment.Baseline != nil {
		k = cr.Alignment.Baseline.SourceFrameCount()
	}
	if k == 0 {
		k = l2align.DefaultBaselineFrames
	}
	b, err := l2align.BuildBaseline(cr.Frames, k, cfg.DepthScale)
	if err != nil {
		opsf("colour baseline: %v", err)
		return nil
	}
	return b
}
