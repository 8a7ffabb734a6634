package viz

import (
	"errors"
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/qhalab/internal/qha"
)

var ErrNothingToPlot = errors.New("viz: fewer than two finite points")

const (
	DefaultPlotWidth  = 70
	DefaultPlotHeight = 15
	DefaultMaxCurves  = 6
)

type PlotOptions struct {
	Width     int
	Height    int
	MaxCurves int // helmholtz-volume only
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Width <= 0 {
		o.Width = DefaultPlotWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultPlotHeight
	}
	if o.MaxCurves <= 0 {
		o.MaxCurves = DefaultMaxCurves
	}
	return o
}

var curveColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green,
	asciigraph.Yellow, asciigraph.Cyan, asciigraph.Magenta,
}

// Plot draws column 1 of t against column 0. Tables with several blocks are
// drawn as one curve per block, thinned to MaxCurves evenly spaced blocks.
func Plot(t qha.Table, opts PlotOptions) (string, error) {
	opts = opts.withDefaults()
	if len(t.Blocks) > 1 {
		return plotBlocks(t, opts)
	}

	xs, ys := finite(t.Series(0), t.Series(1))
	if len(ys) < 2 {
		return "", fmt.Errorf("%w: %s", ErrNothingToPlot, t.Name)
	}
	caption := fmt.Sprintf("%s vs %s [%g, %g]", column(t, 1), column(t, 0), xs[0], xs[len(xs)-1])
	return asciigraph.Plot(ys,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(caption),
	), nil
}

func plotBlocks(t qha.Table, opts PlotOptions) (string, error) {
	picks := spread(len(t.Blocks), opts.MaxCurves)
	var (
		series [][]float64
		colors []asciigraph.AnsiColor
		labels []string
	)
	for _, b := range picks {
		block := t.Blocks[b]
		xs := make([]float64, len(block.Rows))
		ys := make([]float64, len(block.Rows))
		for i, row := range block.Rows {
			xs[i], ys[i] = row[0], row[1]
		}
		if _, ys = finite(xs, ys); len(ys) < 2 {
			continue
		}
		series = append(series, ys)
		colors = append(colors, curveColors[len(colors)%len(curveColors)])
		labels = append(labels, block.Label)
	}
	if len(series) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNothingToPlot, t.Name)
	}
	caption := fmt.Sprintf("%s vs %s, %s .. %s", column(t, 1), column(t, 0), labels[0], labels[len(labels)-1])
	return asciigraph.PlotMany(series,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	), nil
}

// spread picks at most k indices out of n, evenly spaced and including both
// ends.
func spread(n, k int) []int {
	if n <= k {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if k == 1 {
		return []int{0}
	}
	out := make([]int, k)
	for i := range out {
		out[i] = int(math.Round(float64(i) * float64(n-1) / float64(k-1)))
	}
	return out
}

func finite(xs, ys []float64) ([]float64, []float64) {
	var fx, fy []float64
	for i := range ys {
		if i < len(xs) && !math.IsNaN(ys[i]) && !math.IsInf(ys[i], 0) {
			fx = append(fx, xs[i])
			fy = append(fy, ys[i])
		}
	}
	return fx, fy
}

func column(t qha.Table, i int) string {
	if i < len(t.Columns) {
		return t.Columns[i]
	}
	return fmt.Sprintf("col%d", i)
}
