package edf

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerateCalibration is returned when an accepted channel has equal
	// digital minimum and maximum, which leaves the calibration undefined.
	ErrDegenerateCalibration = errors.New("edf: digital minimum equals digital maximum")

	// ErrInvalidRecordDuration is returned when the record duration is not
	// positive, so no sampling period can be derived.
	ErrInvalidRecordDuration = errors.New("edf: record duration must be positive")

	// ErrInvalidSamplesPerRecord is returned when a channel declares a
	// negative number of samples per record.
	ErrInvalidSamplesPerRecord = errors.New("edf: samples per record must not be negative")
)

// ChannelAttributes are derived once from a channel header and read-only
// thereafter.
type ChannelAttributes struct {
	// Accepted is true iff the channel's samples-per-record equals channel 0's.
	Accepted         bool
	SamplesPerRecord int
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
	// CalMultiplier and CalOffset map a raw sample d to d*CalMultiplier+CalOffset.
	CalMultiplier float64
	CalOffset     float64
}

// Calibrate maps a raw digital sample to physical units.
func (a ChannelAttributes) Calibrate(raw int16) float64 {
	return float64(raw)*a.CalMultiplier + a.CalOffset
}

// Classify parses each channel's numeric fields, flags the channels sharing
// channel 0's sampling rate and computes the calibration coefficients. The
// result has exactly one entry per channel header, in header order.
//
// Channel 0 is always accepted. An accepted channel with digitalMax equal to
// digitalMin is rejected with ErrDegenerateCalibration, and any channel with
// negative samples per record with ErrInvalidSamplesPerRecord. Rejected channels are
// never calibrated so their coefficients are left as computed.
func Classify(h *Header) ([]ChannelAttributes, error) {
	if len(h.Channels) == 0 {
		return nil, ErrInvalidSignalCount
	}

	attrs := make([]ChannelAttributes, len(h.Channels))
	reference := parseInt(h.Channels[0].SamplesPerRecord)
	for i, ch := range h.Channels {
		a := ChannelAttributes{
			SamplesPerRecord: parseInt(ch.SamplesPerRecord),
			PhysicalMin:      parseFloat(ch.PhysicalMin),
			PhysicalMax:      parseFloat(ch.PhysicalMax),
			DigitalMin:       parseInt(ch.DigitalMin),
			DigitalMax:       parseInt(ch.DigitalMax),
		}
		if a.SamplesPerRecord < 0 {
			return nil, fmt.Errorf("%w: channel %d (%q) has %d", ErrInvalidSamplesPerRecord, i, ch.Label, a.SamplesPerRecord)
		}
		a.Accepted = i == 0 || a.SamplesPerRecord == reference
		a.CalMultiplier, a.CalOffset = calibration(a.PhysicalMin, a.PhysicalMax, a.DigitalMin, a.DigitalMax)

		if a.Accepted && a.DigitalMax == a.DigitalMin {
			return nil, fmt.Errorf("%w: channel %d (%q)", ErrDegenerateCalibration, i, ch.Label)
		}
		attrs[i] = a
	}
	return attrs, nil
}

// calibration returns the affine coefficients mapping [dmin, dmax] onto
// [pmin, pmax]. Equal digital bounds yield an infinite or NaN multiplier.
func calibration(pmin, pmax float64, dmin, dmax int) (multiplier, offset float64) {
	multiplier = (pmax - pmin) / float64(dmax-dmin)
	offset = pmin - multiplier*float64(dmin)
	return multiplier, offset
}

// AcceptedIndices returns the indices of accepted channels in header order.
func AcceptedIndices(attrs []ChannelAttributes) []int {
	var idx []int
	for i, a := range attrs {
		if a.Accepted {
			idx = append(idx, i)
		}
	}
	return idx
}

// SamplingPeriod returns the interval between consecutive samples of the
// accepted channels in microseconds:
//
//	1e6 / (samplesPerRecord_ch0 × recordsPerSecond)
//
// where recordsPerSecond is 1 / RecordDuration.
func SamplingPeriod(m MainHeader, attrs []ChannelAttributes) (float64, error) {
	if m.RecordDuration <= 0 || math.IsNaN(m.RecordDuration) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRecordDuration, m.RecordDuration)
	}
	if len(attrs) == 0 || attrs[0].SamplesPerRecord <= 0 {
		return 0, errors.New("edf: channel 0 has no samples per record")
	}
	recordsPerSecond := 1 / m.RecordDuration
	return 1e6 / (float64(attrs[0].SamplesPerRecord) * recordsPerSecond), nil
}
