package inspect

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrNoSamples is returned when a preview is requested for a recording with
// no loaded data records.
var ErrNoSamples = errors.New("inspect: no samples loaded")

// Preview image size.
const (
	previewWidth  = 14 * vg.Inch
	previewHeight = 6 * vg.Inch
)

// RenderPNG draws one line per streamed channel against time and writes the
// plot to w as a PNG image.
func RenderPNG(w io.Writer, rec *Recording) error {
	if rec.Records == 0 {
		return ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%d records)", rec.Path, rec.Records)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Physical value"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	ts := rec.Times()
	for slot, ch := range rec.Streamed() {
		pts := make(plotter.XYs, len(ts))
		for i, t := range ts {
			pts[i] = plotter.XY{X: t, Y: rec.Signals[ch][i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		line.Color = plotutil.Color(slot)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(rec.Label(ch), line)
	}

	wt, err := p.WriterTo(previewWidth, previewHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
