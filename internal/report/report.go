// Package report renders classification results as standalone HTML pages
// for eyeballing legends before they reach the dashboard.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/afrimetrics/atlas-cli/internal/classify"
)

// BreaksReport describes one classification result to render.
type BreaksReport struct {
	Dataset string
	ISO3    string
	Method  string
	Breaks  classify.Breaks
	// Counts holds cells per class. Optional; computed from Sample when nil.
	Counts []int
}

// viridis-like ramp, one stop per class for up to nine classes.
var legendColors = []string{
	"#440154", "#46327e", "#365c8d", "#277f8e", "#1fa187",
	"#4ac16d", "#a0da39", "#fde725", "#f0f921",
}

// BinCounts tallies sample values into the report's classes.
func BinCounts(s *classify.Sample, breaks classify.Breaks) []int {
	counts := make([]int, breaks.Classes())
	for _, v := range s.Values() {
		counts[breaks.Bin(v)]++
	}
	return counts
}

// LegendRanges formats one "lo – hi" label per class.
func LegendRanges(breaks classify.Breaks) []string {
	labels := make([]string, breaks.Classes())
	for i := range labels {
		labels[i] = fmt.Sprintf("%s – %s", formatValue(breaks[i]), formatValue(breaks[i+1]))
	}
	return labels
}

// Render writes the report as a standalone HTML page.
func Render(w io.Writer, rep BreaksReport) error {
	if rep.Breaks.Classes() < 1 {
		return eris.New("report: breaks have no classes")
	}
	if len(rep.Counts) != rep.Breaks.Classes() {
		return eris.Errorf("report: %d counts for %d classes", len(rep.Counts), rep.Breaks.Classes())
	}

	labels := LegendRanges(rep.Breaks)
	data := make([]opts.BarData, len(rep.Counts))
	for i, n := range rep.Counts {
		data[i] = opts.BarData{
			Value:     n,
			ItemStyle: &opts.ItemStyle{Color: legendColors[i%len(legendColors)]},
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s %s class breaks", rep.ISO3, rep.Dataset),
			Width:     "900px",
			Height:    "520px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s: %s", rep.ISO3, rep.Dataset),
			Subtitle: fmt.Sprintf("method=%s classes=%d", rep.Method, rep.Breaks.Classes()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "class range"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cells"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("cells", data)

	if err := bar.Render(w); err != nil {
		return eris.Wrap(err, "report: render chart")
	}
	return nil
}

// WriteHTML renders the report to a file.
func WriteHTML(path string, rep BreaksReport) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := Render(f, rep); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

// formatValue keeps legend labels short: integers below 10k stay plain,
// larger magnitudes switch to compact notation.
func formatValue(v float64) string {
	av := v
	if av < 0 {
		av = -av
	}
	switch {
	case av >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case av >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case av >= 1e4:
		return fmt.Sprintf("%.1fk", v/1e3)
	case av >= 10 || av == 0:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
