package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/edfreplay/internal/edf"
)

// ErrDataExhausted is returned when a refill reaches the end of the
// recording. It is terminal; the session never loops back to the start.
var ErrDataExhausted = errors.New("replay: recording data exhausted")

// RecordBuffer holds one data record of the accepted channels, laid out as
// [channel][row] with rows equal to channel 0's samples per record. Columns
// of rejected channels are never written and keep their placeholder value,
// the channel index.
type RecordBuffer struct {
	attrs   []edf.ChannelAttributes
	rows    int
	data    [][]int16
	scratch []byte

	row     int
	refills int
}

// NewRecordBuffer allocates a buffer for attrs with the given number of rows.
func NewRecordBuffer(attrs []edf.ChannelAttributes, rows int) *RecordBuffer {
	b := &RecordBuffer{
		attrs:   attrs,
		rows:    rows,
		data:    make([][]int16, len(attrs)),
		scratch: make([]byte, rows*edf.SampleSize),
	}
	for ch := range b.data {
		col := make([]int16, rows)
		for r := range col {
			col[r] = int16(ch)
		}
		b.data[ch] = col
	}
	return b
}

// Refill reads the next data record from r. Accepted channels are decoded
// into their columns; rejected channels are skipped by seeking past their own
// samples so the cursor stays on record boundaries. A short read at any
// point is reported as ErrDataExhausted.
func (b *RecordBuffer) Refill(r io.ReadSeeker) error {
	for ch, a := range b.attrs {
		if !a.Accepted {
			skip := int64(a.SamplesPerRecord) * edf.SampleSize
			if skip < 0 {
				return fmt.Errorf("error skipping channel %d: %w", ch, edf.ErrInvalidSamplesPerRecord)
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return fmt.Errorf("error skipping channel %d: %w", ch, err)
			}
			continue
		}

		if _, err := io.ReadFull(r, b.scratch); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: after %d records", ErrDataExhausted, b.refills)
			}
			return fmt.Errorf("error reading channel %d: %w", ch, err)
		}
		col := b.data[ch]
		for i := range col {
			col[i] = int16(binary.LittleEndian.Uint16(b.scratch[i*edf.SampleSize:]))
		}
	}
	b.refills++
	return nil
}

// Sample returns the buffered raw sample for channel ch at the current row.
func (b *RecordBuffer) Sample(ch int) int16 {
	return b.data[ch][b.row]
}

// Column returns channel ch's buffered samples. The slice is owned by the
// buffer and overwritten by the next Refill.
func (b *RecordBuffer) Column(ch int) []int16 {
	return b.data[ch]
}

// Advance moves to the next row and reports whether the row index wrapped to
// zero, meaning every buffered row has been consumed and a Refill is due.
func (b *RecordBuffer) Advance() bool {
	b.row++
	if b.row == b.rows {
		b.row = 0
		return true
	}
	return false
}

// Row returns the current row index.
func (b *RecordBuffer) Row() int { return b.row }

// Rows returns the number of rows per record.
func (b *RecordBuffer) Rows() int { return b.rows }

// Refills returns the number of successful Refill calls, including the
// initial load.
func (b *RecordBuffer) Refills() int { return b.refills }
