// Package inspect loads the leading records of a recording in physical units
// and renders summaries and waveform previews of the channels the replay
// loop would stream.
package inspect

import (
	"errors"
	"fmt"

	"github.com/banshee-data/edfreplay/internal/edf"
	"github.com/banshee-data/edfreplay/internal/fsutil"
	"github.com/banshee-data/edfreplay/internal/replay"
)

// DefaultRecords is the number of data records loaded when no limit is given.
const DefaultRecords = 10

// Recording is a calibrated excerpt of a recording. Only accepted channels
// carry samples; rejected channels have a nil entry in Signals.
type Recording struct {
	Path     string
	Header   *edf.Header
	Attrs    []edf.ChannelAttributes
	PeriodUS float64
	Records  int
	Signals  [][]float64
}

// Load reads the header of path and up to maxRecords data records. Reading
// stops quietly at the end of the data; a recording without any data records
// loads with Records equal to zero.
func Load(fsys fsutil.FileSystem, path string, maxRecords int) (*Recording, error) {
	if maxRecords <= 0 {
		maxRecords = DefaultRecords
	}
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening recording: %w", err)
	}
	defer f.Close()

	hdr, err := edf.ReadHeader(f)
	if err != nil {
		return nil, err
	}
	attrs, err := edf.Classify(hdr)
	if err != nil {
		return nil, err
	}
	period, err := edf.SamplingPeriod(hdr.Main, attrs)
	if err != nil {
		return nil, err
	}

	rec := &Recording{
		Path:     path,
		Header:   hdr,
		Attrs:    attrs,
		PeriodUS: period,
		Signals:  make([][]float64, len(attrs)),
	}
	rows := attrs[0].SamplesPerRecord
	buf := replay.NewRecordBuffer(attrs, rows)
	for rec.Records < maxRecords {
		if err := buf.Refill(f); err != nil {
			if errors.Is(err, replay.ErrDataExhausted) {
				break
			}
			return nil, err
		}
		for ch, a := range attrs {
			if !a.Accepted {
				continue
			}
			for _, raw := range buf.Column(ch) {
				rec.Signals[ch] = append(rec.Signals[ch], a.Calibrate(raw))
			}
		}
		rec.Records++
	}
	return rec, nil
}

// Streamed returns the channels that occupy packet slots, in slot order.
func (r *Recording) Streamed() []int {
	return replay.SlotChannels(r.Attrs)
}

// Times returns the offset in seconds of every loaded sample of the accepted
// channels.
func (r *Recording) Times() []float64 {
	n := len(r.Signals[0])
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * r.PeriodUS / 1e6
	}
	return ts
}

// Label returns channel ch's label, or a positional name when it is blank.
func (r *Recording) Label(ch int) string {
	if l := r.Header.Channels[ch].Label; l != "" {
		return l
	}
	return fmt.Sprintf("channel %d", ch)
}
