package inspect

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChannelSummary describes one channel of a loaded recording. Statistics are
// in physical units and are only computed for accepted channels.
type ChannelSummary struct {
	Index            int     `json:"index"`
	Label            string  `json:"label"`
	Dimension        string  `json:"physical_dimension"`
	SamplesPerRecord int     `json:"samples_per_record"`
	Accepted         bool    `json:"accepted"`
	Slot             int     `json:"slot"` // -1 when the channel is not streamed
	CalMultiplier    float64 `json:"cal_multiplier"`
	CalOffset        float64 `json:"cal_offset"`
	Count            int     `json:"count"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"stddev"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
}

// Summarize returns one summary per channel in header order.
func Summarize(rec *Recording) []ChannelSummary {
	slots := make(map[int]int)
	for slot, ch := range rec.Streamed() {
		slots[ch] = slot
	}

	out := make([]ChannelSummary, len(rec.Attrs))
	for ch, a := range rec.Attrs {
		s := ChannelSummary{
			Index:            ch,
			Label:            rec.Label(ch),
			Dimension:        rec.Header.Channels[ch].PhysicalDimension,
			SamplesPerRecord: a.SamplesPerRecord,
			Accepted:         a.Accepted,
			Slot:             -1,
			// Only rejected channels can carry non-finite coefficients.
			CalMultiplier: finite(a.CalMultiplier),
			CalOffset:     finite(a.CalOffset),
		}
		if slot, ok := slots[ch]; ok {
			s.Slot = slot
		}

		x := rec.Signals[ch]
		s.Count = len(x)
		if s.Count > 0 {
			s.Min = floats.Min(x)
			s.Max = floats.Max(x)
			if s.Count > 1 {
				s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
			} else {
				s.Mean = x[0]
			}
		}
		out[ch] = s
	}
	return out
}

// WriteReport prints a header block followed by a channel table.
func WriteReport(w io.Writer, rec *Recording, sums []ChannelSummary) error {
	m := rec.Header.Main
	start := fmt.Sprintf("%s %s", m.StartDate, m.StartTime)
	if ts, err := m.StartTimestamp(); err == nil {
		start = ts.Format("2006-01-02 15:04:05")
	}
	records := fmt.Sprint(m.NumDataRecords)
	if m.NumDataRecords < 0 {
		records = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "recording:   %s\n", rec.Path)
	fmt.Fprintf(&b, "patient:     %s\n", m.PatientID)
	fmt.Fprintf(&b, "started:     %s\n", start)
	fmt.Fprintf(&b, "records:     %s x %gs (%d loaded)\n", records, m.RecordDuration, rec.Records)
	fmt.Fprintf(&b, "signals:     %d (%d streamed)\n", m.NumSignals, len(rec.Streamed()))
	fmt.Fprintf(&b, "period:      %.3fus (%.2f Hz)\n\n", rec.PeriodUS, 1e6/rec.PeriodUS)

	fmt.Fprintf(&b, "%3s  %-16s %4s %5s %-8s %10s %10s %12s %12s %12s %12s\n",
		"ch", "label", "slot", "spr", "unit", "mult", "offset", "mean", "stddev", "min", "max")
	for _, s := range sums {
		slot := "-"
		if s.Slot >= 0 {
			slot = fmt.Sprint(s.Slot)
		}
		if !s.Accepted || s.Count == 0 {
			fmt.Fprintf(&b, "%3d  %-16s %4s %5d %-8s %10.6g %10.6g %12s\n",
				s.Index, s.Label, slot, s.SamplesPerRecord, s.Dimension, s.CalMultiplier, s.CalOffset, "skipped")
			continue
		}
		fmt.Fprintf(&b, "%3d  %-16s %4s %5d %-8s %10.6g %10.6g %12.3f %12.3f %12.3f %12.3f\n",
			s.Index, s.Label, slot, s.SamplesPerRecord, s.Dimension, s.CalMultiplier, s.CalOffset,
			s.Mean, finite(s.StdDev), s.Min, s.Max)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
