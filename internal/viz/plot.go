package viz

import (
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/physics"
)

// Downsample picks at most n evenly spaced samples from v, always keeping
// the last one.
func Downsample(v []float64, n int) []float64 {
	if n <= 0 || len(v) <= n {
		return v
	}
	if n == 1 {
		return v[len(v)-1:]
	}
	out := make([]float64, n)
	last := len(v) - 1
	for i := range out {
		out[i] = v[i*last/(n-1)]
	}
	return out
}

// PlotCompartments draws S, I and R for records [0, upto] of tr. upto < 0
// plots the whole trajectory.
func PlotCompartments(tr *dynamo.Trajectory, upto, width, height int, caption string) string {
	if tr == nil || tr.Len() == 0 {
		return ""
	}
	if upto < 0 || upto >= tr.Len() {
		upto = tr.Len() - 1
	}

	series := make([][]float64, len(physics.Labels))
	for c := range series {
		col := tr.Column(c)[:upto+1]
		if len(col) == 1 {
			col = []float64{col[0], col[0]}
		}
		series[c] = Downsample(col, width)
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(tr.States[0].Sum()),
		asciigraph.SeriesColors(seriesColors...),
		asciigraph.Caption(caption),
	)
}

// PlotSeries draws a single compartment, as the per-variable plots of the
// plot command do.
func PlotSeries(tr *dynamo.Trajectory, idx, width, height int, caption string) string {
	if tr == nil || tr.Len() == 0 {
		return ""
	}
	return asciigraph.Plot(Downsample(tr.Column(idx), width),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(seriesColors[idx%len(seriesColors)]),
		asciigraph.Caption(caption),
	)
}
