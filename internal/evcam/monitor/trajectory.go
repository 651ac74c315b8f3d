// Package monitor renders diagnostics for rotation-tracking runs.
package monitor

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/golang/geo/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// TrajectoryPlotter accumulates rotation estimates over a run and renders
// them as a component-per-line PNG.
type TrajectoryPlotter struct {
	mu      sync.Mutex
	samples []trajectorySample
}

type trajectorySample struct {
	timeSec float64
	rot     r3.Vector
}

// NewTrajectoryPlotter creates an empty plotter.
func NewTrajectoryPlotter() *TrajectoryPlotter {
	return &TrajectoryPlotter{}
}

// Add records one rotation estimate at the given time (seconds from start).
func (tp *TrajectoryPlotter) Add(timeSec float64, rot r3.Vector) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.samples = append(tp.samples, trajectorySample{timeSec: timeSec, rot: rot})
}

// Len returns the number of recorded samples.
func (tp *TrajectoryPlotter) Len() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.samples)
}

// SavePNG renders the three rotation-vector components against time.
func (tp *TrajectoryPlotter) SavePNG(path string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if len(tp.samples) == 0 {
		return fmt.Errorf("no trajectory samples recorded")
	}

	p := plot.New()
	p.Title.Text = "Estimated rotation trajectory"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "rotation vector component (rad)"

	xPts := make(plotter.XYs, 0, len(tp.samples))
	yPts := make(plotter.XYs, 0, len(tp.samples))
	zPts := make(plotter.XYs, 0, len(tp.samples))
	for _, s := range tp.samples {
		xPts = append(xPts, plotter.XY{X: s.timeSec, Y: s.rot.X})
		yPts = append(yPts, plotter.XY{X: s.timeSec, Y: s.rot.Y})
		zPts = append(zPts, plotter.XY{X: s.timeSec, Y: s.rot.Z})
	}

	series := []struct {
		name   string
		points plotter.XYs
		colour color.RGBA
	}{
		{"rx", xPts, color.RGBA{R: 220, A: 255}},
		{"ry", yPts, color.RGBA{G: 160, A: 255}},
		{"rz", zPts, color.RGBA{B: 220, A: 255}},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.points)
		if err != nil {
			return fmt.Errorf("build %s line: %w", s.name, err)
		}
		line.Width = vg.Points(1)
		line.Color = s.colour
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}
