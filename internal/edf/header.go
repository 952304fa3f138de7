package edf

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidSignalCount is returned when the signal count field does not
	// parse to a positive integer.
	ErrInvalidSignalCount = errors.New("edf: signal count must be positive")

	// ErrShortHeader is returned when the header cannot be read in full.
	ErrShortHeader = errors.New("edf: short header")
)

// MainHeader holds the ten main header fields. Text fields are stored with
// their padding removed; numeric fields are parsed once at load.
type MainHeader struct {
	Version        string
	PatientID      string
	RecordingID    string
	StartDate      string // dd.mm.yy
	StartTime      string // hh.mm.ss
	HeaderBytes    int
	Reserved       string
	NumDataRecords int     // -1 if unknown
	RecordDuration float64 // seconds
	NumSignals     int
}

// ChannelHeader holds one signal's header fields as text, exactly as stored.
// Numeric interpretation is left to Classify.
type ChannelHeader struct {
	Label             string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       string
	PhysicalMax       string
	DigitalMin        string
	DigitalMax        string
	PreFiltering      string
	SamplesPerRecord  string
	Reserved          string
}

// Header is a fully decoded recording header.
type Header struct {
	Main     MainHeader
	Channels []ChannelHeader
}

// NumChans returns the number of channel headers, which always equals
// Main.NumSignals for a header built by ReadHeader.
func (h *Header) NumChans() int {
	return len(h.Channels)
}

// Size returns the number of header bytes preceding the first data record.
func (h *Header) Size() int {
	return MainHeaderSize + len(h.Channels)*ChannelHeaderSize
}

func (c *ChannelHeader) setField(f Field, v string) {
	switch f {
	case FieldLabel:
		c.Label = v
	case FieldTransducerType:
		c.TransducerType = v
	case FieldPhysicalDimension:
		c.PhysicalDimension = v
	case FieldPhysicalMin:
		c.PhysicalMin = v
	case FieldPhysicalMax:
		c.PhysicalMax = v
	case FieldDigitalMin:
		c.DigitalMin = v
	case FieldDigitalMax:
		c.DigitalMax = v
	case FieldPreFiltering:
		c.PreFiltering = v
	case FieldSamplesPerRecord:
		c.SamplesPerRecord = v
	case FieldChannelReserved:
		c.Reserved = v
	}
}

// ParseMainHeader decodes a 256-byte main header block.
func ParseMainHeader(raw []byte) (MainHeader, error) {
	if len(raw) < MainHeaderSize {
		return MainHeader{}, fmt.Errorf("%w: main header is %d bytes, want %d", ErrShortHeader, len(raw), MainHeaderSize)
	}

	var m MainHeader
	for _, f := range mainHeaderFieldOrder {
		v := extractMainField(raw, f)
		switch f {
		case FieldVersion:
			m.Version = v
		case FieldPatientID:
			m.PatientID = v
		case FieldRecordingID:
			m.RecordingID = v
		case FieldStartDate:
			m.StartDate = v
		case FieldStartTime:
			m.StartTime = v
		case FieldHeaderBytes:
			m.HeaderBytes = parseInt(v)
		case FieldReserved:
			m.Reserved = v
		case FieldNumDataRecords:
			m.NumDataRecords = parseInt(v)
		case FieldRecordDuration:
			m.RecordDuration = parseFloat(v)
		case FieldNumSignals:
			m.NumSignals = parseInt(v)
		}
	}

	if m.NumSignals <= 0 {
		return m, fmt.Errorf("%w: got %q", ErrInvalidSignalCount, extractMainField(raw, FieldNumSignals))
	}
	return m, nil
}

// ParseChannelHeaders decodes a column-major channel header block holding
// numChans channels, field by field in file order.
func ParseChannelHeaders(raw []byte, numChans int) ([]ChannelHeader, error) {
	if numChans <= 0 {
		return nil, ErrInvalidSignalCount
	}
	if want := numChans * ChannelHeaderSize; len(raw) < want {
		return nil, fmt.Errorf("%w: channel headers are %d bytes, want %d", ErrShortHeader, len(raw), want)
	}

	chans := make([]ChannelHeader, numChans)
	for _, f := range channelFieldOrder {
		ExtractField(raw, f, chans)
	}
	return chans, nil
}

// ReadHeader reads and decodes the main and channel headers from r, leaving r
// positioned at the first data record.
func ReadHeader(r io.Reader) (*Header, error) {
	raw := make([]byte, MainHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading main header: %v", ErrShortHeader, err)
	}
	mh, err := ParseMainHeader(raw)
	if err != nil {
		return nil, err
	}

	raw = make([]byte, mh.NumSignals*ChannelHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading %d channel headers: %v", ErrShortHeader, mh.NumSignals, err)
	}
	chans, err := ParseChannelHeaders(raw, mh.NumSignals)
	if err != nil {
		return nil, err
	}

	return &Header{Main: mh, Channels: chans}, nil
}

// StartTimestamp combines the start date and time fields. Two-digit years
// from 85 to 99 are taken as 19xx, everything else as 20xx.
func (m MainHeader) StartTimestamp() (time.Time, error) {
	date, err := time.Parse("02.01.06", m.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing start date: %w", err)
	}
	clock, err := time.Parse("15.04.05", m.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing start time: %w", err)
	}

	year := date.Year() % 100
	if year >= 85 {
		year += 1900
	} else {
		year += 2000
	}
	return time.Date(year, date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC), nil
}

// parseInt reads a base-10 integer field, returning 0 when the field is empty
// or malformed.
func parseInt(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// parseFloat reads a decimal field independent of locale, returning 0 when
// the field is empty or malformed.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
