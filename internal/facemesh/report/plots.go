// Package report renders a processed session as PNG plots (gonum/plot)
// and an HTML deviation chart (go-echarts).
package report

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/fsutil"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// frameX is a frame's position on the x axis: its timestamp when every
// frame has one, otherwise its index.
func frameX(frames []l1frames.Frame) (func(l1frames.Frame) float64, string) {
	for _, f := range frames {
		if !f.HasTimestamp {
			return func(f l1frames.Frame) float64 { return float64(f.Index) }, "Frame"
		}
	}
	return func(f l1frames.Frame) float64 { return f.Timestamp }, "Time (s)"
}

// RMSDPlot plots per-frame alignment RMSD. Frames without a transform are
// skipped.
func RMSDPlot(frames []l1frames.Frame) (*plot.Plot, error) {
	x, xLabel := frameX(frames)
	pts := make(plotter.XYs, 0, len(frames))
	for _, f := range frames {
		if f.Transform != nil {
			pts = append(pts, plotter.XY{X: x(f), Y: f.Transform.RMSD})
		}
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("rmsd: %w", ErrNoData)
	}

	p := plot.New()
	p.Title.Text = "Alignment RMSD"
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "RMSD"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	return p, nil
}

// DisplacementPlot draws one line per displacement column of t.
func DisplacementPlot(t *l5features.Table) (*plot.Plot, error) {
	var cols []string
	for _, c := range t.Columns {
		if strings.HasPrefix(c, l5features.DisplacementPrefix) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 || len(t.Rows) == 0 {
		return nil, fmt.Errorf("displacement: %w", ErrNoData)
	}

	p := plot.New()
	p.Title.Text = "Landmark Displacement"
	p.Y.Label.Text = "Displacement"
	withTime := t.HasTime()
	if withTime {
		p.X.Label.Text = "Time (s)"
	} else {
		p.X.Label.Text = "Frame"
	}

	for i, c := range cols {
		values, _ := t.Column(c)
		pts := make(plotter.XYs, len(values))
		for k, r := range t.Rows {
			x := float64(r.FrameIndex)
			if withTime {
				x = *r.TimeSeconds
			}
			pts[k] = plotter.XY{X: x, Y: values[k]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("landmark "+strings.TrimPrefix(c, l5features.DisplacementPrefix), line)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SavePNG writes p as a PNG to path on fsys, creating parent directories.
func SavePNG(fsys fsutil.FileSystem, p *plot.Plot, path string) (err error) {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
