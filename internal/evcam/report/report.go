// Package report renders an HTML summary of a tracking session.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rotation.report/internal/evcamdb"
)

// RenderSession writes an HTML line chart of a session's estimated
// rotation-vector components over time.
func RenderSession(w io.Writer, sessionName string, poses []evcamdb.Pose) error {
	if len(poses) == 0 {
		return fmt.Errorf("no poses to report")
	}

	times := make([]string, 0, len(poses))
	rx := make([]opts.LineData, 0, len(poses))
	ry := make([]opts.LineData, 0, len(poses))
	rz := make([]opts.LineData, 0, len(poses))

	t0 := poses[0].UnixNanos
	for _, p := range poses {
		times = append(times, fmt.Sprintf("%.3f", float64(p.UnixNanos-t0)/1e9))
		rx = append(rx, opts.LineData{Value: p.RotX})
		ry = append(ry, opts.LineData{Value: p.RotY})
		rz = append(rz, opts.LineData{Value: p.RotZ})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Rotation Tracking Session", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Estimated rotation trajectory", Subtitle: fmt.Sprintf("session=%s samples=%d", sessionName, len(poses))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rotation (rad)"}),
	)

	line.SetXAxis(times).
		AddSeries("rx", rx).
		AddSeries("ry", ry).
		AddSeries("rz", rz)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render session chart: %w", err)
	}
	return nil
}

// WriteSessionFile renders the session report to an HTML file.
func WriteSessionFile(path, sessionName string, poses []evcamdb.Pose) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return RenderSession(f, sessionName, poses)
}
