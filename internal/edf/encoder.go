package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// SignalSpec describes a channel to be written by an Encoder.
type SignalSpec struct {
	Label             string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	PreFiltering      string
	SamplesPerRecord  int
}

// ChannelHeader renders the signal as header text fields.
func (s SignalSpec) ChannelHeader() ChannelHeader {
	return ChannelHeader{
		Label:             s.Label,
		TransducerType:    s.TransducerType,
		PhysicalDimension: s.PhysicalDimension,
		PhysicalMin:       formatPhysicalValue(s.PhysicalMin),
		PhysicalMax:       formatPhysicalValue(s.PhysicalMax),
		DigitalMin:        strconv.Itoa(s.DigitalMin),
		DigitalMax:        strconv.Itoa(s.DigitalMax),
		PreFiltering:      s.PreFiltering,
		SamplesPerRecord:  strconv.Itoa(s.SamplesPerRecord),
	}
}

// NewHeader builds a header for the given signals. HeaderBytes and
// NumSignals are filled in from the signal list.
func NewHeader(main MainHeader, signals []SignalSpec) *Header {
	h := &Header{Main: main, Channels: make([]ChannelHeader, len(signals))}
	for i, s := range signals {
		h.Channels[i] = s.ChannelHeader()
	}
	h.Main.NumSignals = len(signals)
	h.Main.HeaderBytes = h.Size()
	if h.Main.Version == "" {
		h.Main.Version = "0"
	}
	return h
}

// Encoder writes a header followed by data records.
type Encoder struct {
	w       *bufio.Writer
	hdr     *Header
	spr     []int
	dmin    []int
	dmax    []int
	records int
}

// NewEncoder writes hdr to w and returns an Encoder for its data records.
func NewEncoder(w io.Writer, hdr *Header) (*Encoder, error) {
	if len(hdr.Channels) == 0 {
		return nil, ErrInvalidSignalCount
	}
	n := len(hdr.Channels)
	e := &Encoder{
		w:    bufio.NewWriter(w),
		hdr:  hdr,
		spr:  make([]int, n),
		dmin: make([]int, n),
		dmax: make([]int, n),
	}
	for i, ch := range hdr.Channels {
		e.spr[i] = parseInt(ch.SamplesPerRecord)
		e.dmin[i] = parseInt(ch.DigitalMin)
		e.dmax[i] = parseInt(ch.DigitalMax)
	}
	if _, err := e.w.Write(EncodeHeader(hdr)); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}
	return e, nil
}

// WriteRecord writes one data record. samples holds one slice of digital
// values per channel, each exactly that channel's samples-per-record long.
// Values outside a channel's digital range are clamped to it.
func (e *Encoder) WriteRecord(samples [][]int16) error {
	if len(samples) != len(e.spr) {
		return fmt.Errorf("expected %d signals, got %d", len(e.spr), len(samples))
	}
	for i, s := range samples {
		if len(s) != e.spr[i] {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, e.spr[i], len(s))
		}
	}

	var b [SampleSize]byte
	for i, s := range samples {
		for _, v := range s {
			binary.LittleEndian.PutUint16(b[:], uint16(e.clamp(i, v)))
			if _, err := e.w.Write(b[:]); err != nil {
				return err
			}
		}
	}
	e.records++
	return nil
}

func (e *Encoder) clamp(ch int, v int16) int16 {
	lo, hi := e.dmin[ch], e.dmax[ch]
	if lo >= hi {
		return v
	}
	switch {
	case int(v) < lo:
		return int16(lo)
	case int(v) > hi:
		return int16(hi)
	}
	return v
}

// Records returns the number of data records written so far.
func (e *Encoder) Records() int {
	return e.records
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// EncodeHeader renders hdr in its on-disk layout: the main header followed by
// the column-major channel header block.
func EncodeHeader(hdr *Header) []byte {
	n := len(hdr.Channels)
	buf := make([]byte, MainHeaderSize+n*ChannelHeaderSize)
	for i := range buf {
		buf[i] = ' '
	}

	m := hdr.Main
	putField(buf, FieldVersion.Offset, FieldVersion.Length, m.Version)
	putField(buf, FieldPatientID.Offset, FieldPatientID.Length, m.PatientID)
	putField(buf, FieldRecordingID.Offset, FieldRecordingID.Length, m.RecordingID)
	putField(buf, FieldStartDate.Offset, FieldStartDate.Length, m.StartDate)
	putField(buf, FieldStartTime.Offset, FieldStartTime.Length, m.StartTime)
	putField(buf, FieldHeaderBytes.Offset, FieldHeaderBytes.Length, strconv.Itoa(m.HeaderBytes))
	putField(buf, FieldReserved.Offset, FieldReserved.Length, m.Reserved)
	putField(buf, FieldNumDataRecords.Offset, FieldNumDataRecords.Length, strconv.Itoa(m.NumDataRecords))
	putField(buf, FieldRecordDuration.Offset, FieldRecordDuration.Length, strconv.FormatFloat(m.RecordDuration, 'g', -1, 64))
	putField(buf, FieldNumSignals.Offset, FieldNumSignals.Length, strconv.Itoa(n))

	block := buf[MainHeaderSize:]
	for _, f := range channelFieldOrder {
		for i, ch := range hdr.Channels {
			putField(block, f.Offset*n+i*f.Length, f.Length, ch.field(f))
		}
	}
	return buf
}

func (c ChannelHeader) field(f Field) string {
	switch f {
	case FieldLabel:
		return c.Label
	case FieldTransducerType:
		return c.TransducerType
	case FieldPhysicalDimension:
		return c.PhysicalDimension
	case FieldPhysicalMin:
		return c.PhysicalMin
	case FieldPhysicalMax:
		return c.PhysicalMax
	case FieldDigitalMin:
		return c.DigitalMin
	case FieldDigitalMax:
		return c.DigitalMax
	case FieldPreFiltering:
		return c.PreFiltering
	case FieldSamplesPerRecord:
		return c.SamplesPerRecord
	case FieldChannelReserved:
		return c.Reserved
	}
	return ""
}

// putField left-aligns v in buf[off:off+n], truncating it when too long.
func putField(buf []byte, off, n int, v string) {
	if len(v) > n {
		v = v[:n]
	}
	copy(buf[off:off+n], v)
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := strconv.FormatFloat(val, 'f', 2, 64)
	if len(s) > 8 {
		// Fall back to no decimal
		s = strconv.FormatFloat(val, 'f', 0, 64)
	}
	return s
}
