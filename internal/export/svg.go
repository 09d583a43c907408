// Package export renders stored SIR trajectories as standalone SVG charts.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/physics"
)

// Stroke colours for S, I and R, matching the terminal palette.
var compartmentStrokes = []string{"#00ccff", "#ff4444", "#00ff88"}

type point struct{ X, Y float64 }

type bounds struct {
	minX, maxX, minY, maxY float64
}

func boundsOf(series ...[]point) bounds {
	b := bounds{minX: series[0][0].X, maxX: series[0][0].X, minY: series[0][0].Y, maxY: series[0][0].Y}
	for _, pts := range series {
		for _, p := range pts {
			b.minX = min(b.minX, p.X)
			b.maxX = max(b.maxX, p.X)
			b.minY = min(b.minY, p.Y)
			b.maxY = max(b.maxY, p.Y)
		}
	}

	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.05
	b.maxX += rangeX * 0.05
	b.minY -= rangeY * 0.05
	b.maxY += rangeY * 0.05
	return b
}

func (b bounds) project(p point, width, height int) (float64, float64) {
	x := (p.X - b.minX) / (b.maxX - b.minX) * float64(width)
	y := float64(height) - (p.Y-b.minY)/(b.maxY-b.minY)*float64(height)
	return x, y
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

func path(sb *strings.Builder, pts []point, b bounds, width, height int, stroke string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke)
	for i, p := range pts {
		x, y := b.project(p, width, height)
		if i == 0 {
			fmt.Fprintf(sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// TimeSeries writes S, I and R against time as three paths on one chart.
func TimeSeries(w io.Writer, tr *dynamo.Trajectory, width, height int) error {
	if tr == nil || tr.Len() < 2 {
		return fmt.Errorf("export: need at least 2 samples")
	}

	series := make([][]point, len(physics.Labels))
	for idx := range series {
		pts := make([]point, tr.Len())
		for i, y := range tr.States {
			pts[i] = point{X: tr.Times[i], Y: y[idx]}
		}
		series[idx] = pts
	}
	b := boundsOf(series...)

	var sb strings.Builder
	header(&sb, width, height)
	for idx, pts := range series {
		path(&sb, pts, b, width, height, compartmentStrokes[idx])
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// PhasePlane writes the trajectory's path through the (S, I) plane.
func PhasePlane(w io.Writer, tr *dynamo.Trajectory, width, height int) error {
	if tr == nil || tr.Len() < 2 {
		return fmt.Errorf("export: need at least 2 samples")
	}

	pts := make([]point, tr.Len())
	for i, y := range tr.States {
		pts[i] = point{X: y[physics.Susceptible], Y: y[physics.Infected]}
	}
	b := boundsOf(pts)

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, pts, b, width, height, compartmentStrokes[physics.Infected])
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
