package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
)

// colouredTiers are the tiers shown in the deviation chart, in ramp order.
var colouredTiers = []l4colour.Tier{l4colour.TierWithin1, l4colour.TierBetween1And3, l4colour.TierBeyond3}

// tierColours follow the ramp: blue, yellow, red.
var tierColours = []string{"#2b59c3", "#f2c14e", "#d1495b"}

// DeviationPage renders an HTML page with the landmark count per σ tier
// and the mean deviation of each frame. title names the session.
func DeviationPage(w io.Writer, title string, c *l4colour.Colouring) error {
	if c == nil || len(c.Deviations) == 0 {
		return fmt.Errorf("deviation: %w", ErrNoData)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(tierBar(title, c), deviationLine(c))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render deviation page: %w", err)
	}
	return nil
}

func tierBar(title string, c *l4colour.Colouring) *charts.Bar {
	x := make([]string, len(colouredTiers))
	y := make([]opts.BarData, len(colouredTiers))
	for i, tier := range colouredTiers {
		x[i] = tier.String()
		y[i] = opts.BarData{
			Value:     c.TierCounts[tier],
			ItemStyle: &opts.ItemStyle{Color: tierColours[i]},
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Deviation tiers", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Landmarks"}),
	)
	bar.SetXAxis(x).
		AddSeries("landmarks", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func deviationLine(c *l4colour.Colouring) *charts.Line {
	x := make([]string, len(c.Deviations))
	dist := make([]opts.LineData, len(c.Deviations))
	sigma := make([]opts.LineData, len(c.Deviations))
	withSigma := false
	for i, d := range c.Deviations {
		x[i] = strconv.Itoa(d.FrameIndex)
		dist[i] = opts.LineData{Value: meanOrZero(d.Distances)}
		s := meanOrZero(d.Sigmas)
		sigma[i] = opts.LineData{Value: s}
		withSigma = withSigma || s != 0
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean deviation per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).AddSeries("distance", dist)
	if withSigma {
		line.AddSeries("sigma", sigma)
	}
	return line
}

func meanOrZero(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}
