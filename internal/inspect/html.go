package inspect

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/edfreplay/internal/httputil"
)

// RenderHTML writes an interactive line chart of the streamed channels to w.
func RenderHTML(w io.Writer, rec *Recording) error {
	if rec.Records == 0 {
		return ErrNoSamples
	}

	ts := rec.Times()
	x := make([]string, len(ts))
	for i, t := range ts {
		x[i] = strconv.FormatFloat(t, 'f', 4, 64)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Recording preview", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    rec.Path,
			Subtitle: fmt.Sprintf("%d records, %.2f Hz", rec.Records, 1e6/rec.PeriodUS),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x)
	for _, ch := range rec.Streamed() {
		data := make([]opts.LineData, len(rec.Signals[ch]))
		for i, v := range rec.Signals[ch] {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(rec.Label(ch), data)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// AttachAdminRoutes serves the loaded excerpt on the debug mux: a chart at
// /debug/preview and the channel summary at /debug/summary.
func (r *Recording) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("preview", "waveform preview of the streamed channels", func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := RenderHTML(&buf, r); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	debug.HandleFunc("summary", "per-channel statistics of the loaded records", func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteJSONOK(w, Summarize(r))
	})
}
