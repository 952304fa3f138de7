package edf_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/edfreplay/internal/edf"
)

func TestClassify_SamplingRateSelection(t *testing.T) {
	hdr := testHeader(4, 4, 2)

	attrs, err := edf.Classify(hdr)
	require.NoError(t, err)
	require.Len(t, attrs, 3)

	assert.True(t, attrs[0].Accepted)
	assert.True(t, attrs[1].Accepted)
	assert.False(t, attrs[2].Accepted)
	assert.Equal(t, 2, attrs[2].SamplesPerRecord)
	assert.Equal(t, []int{0, 1}, edf.AcceptedIndices(attrs))
}

func TestClassify_ChannelZeroAlwaysAccepted(t *testing.T) {
	for _, spr := range [][]int{{1}, {7, 3, 3}, {100, 200}} {
		attrs, err := edf.Classify(testHeader(spr...))
		require.NoError(t, err)
		assert.Len(t, attrs, len(spr))
		assert.True(t, attrs[0].Accepted)
	}
}

func TestClassify_Calibration(t *testing.T) {
	attrs, err := edf.Classify(testHeader(256))
	require.NoError(t, err)
	a := attrs[0]

	assert.InDelta(t, 400.0/4095.0, a.CalMultiplier, 1e-9)
	assert.InDelta(t, 0.048840, a.CalOffset, 1e-5)
	assert.InDelta(t, 0.0488, a.Calibrate(0), 1e-3)

	// digitalMin maps to physicalMin and digitalMax to physicalMax.
	assert.InDelta(t, -200.0, a.Calibrate(-2048), 1e-9)
	assert.InDelta(t, 200.0, a.Calibrate(2047), 1e-9)
}

func TestClassify_CalibrationRoundTrip(t *testing.T) {
	cases := []edf.SignalSpec{
		{PhysicalMin: -500, PhysicalMax: 500, DigitalMin: -32768, DigitalMax: 32767},
		{PhysicalMin: 34, PhysicalMax: 40, DigitalMin: 0, DigitalMax: 1000},
		{PhysicalMin: 3.5, PhysicalMax: -3.5, DigitalMin: -100, DigitalMax: 100},
	}
	for _, c := range cases {
		c.Label = "x"
		c.SamplesPerRecord = 10
		hdr := edf.NewHeader(edf.MainHeader{RecordDuration: 1}, []edf.SignalSpec{c})
		attrs, err := edf.Classify(hdr)
		require.NoError(t, err)
		assert.InDelta(t, c.PhysicalMin, attrs[0].Calibrate(int16(c.DigitalMin)), 1e-6)
		assert.InDelta(t, c.PhysicalMax, attrs[0].Calibrate(int16(c.DigitalMax)), 1e-6)
	}
}

func TestClassify_LocaleIndependentParsing(t *testing.T) {
	hdr := testHeader(8)
	hdr.Channels[0].PhysicalMin = "-1.5"
	hdr.Channels[0].PhysicalMax = "1.5"

	// Round-trip through the on-disk layout so padding is exercised.
	parsed, err := edf.ReadHeader(bytes.NewReader(edf.EncodeHeader(hdr)))
	require.NoError(t, err)
	attrs, err := edf.Classify(parsed)
	require.NoError(t, err)
	assert.Equal(t, -1.5, attrs[0].PhysicalMin)
	assert.Equal(t, 1.5, attrs[0].PhysicalMax)
}

func TestClassify_DegenerateCalibration(t *testing.T) {
	hdr := testHeader(8, 8)
	hdr.Channels[1].DigitalMax = hdr.Channels[1].DigitalMin

	_, err := edf.Classify(hdr)
	assert.ErrorIs(t, err, edf.ErrDegenerateCalibration)

	// A rejected channel is never calibrated, so it does not block setup.
	hdr = testHeader(8, 4)
	hdr.Channels[1].DigitalMax = hdr.Channels[1].DigitalMin
	attrs, err := edf.Classify(hdr)
	require.NoError(t, err)
	assert.False(t, attrs[1].Accepted)
}

func TestClassify_NegativeSamplesPerRecord(t *testing.T) {
	for _, spr := range [][]int{{-4}, {4, -2}, {4, 4, -1}} {
		_, err := edf.Classify(testHeader(spr...))
		assert.ErrorIs(t, err, edf.ErrInvalidSamplesPerRecord, "spr %v", spr)
	}
}

func TestSamplingPeriod(t *testing.T) {
	hdr := testHeader(256)
	attrs, err := edf.Classify(hdr)
	require.NoError(t, err)

	period, err := edf.SamplingPeriod(hdr.Main, attrs)
	require.NoError(t, err)
	assert.Equal(t, 3906.25, period)

	// 500 samples over a 2 second record is 250 Hz.
	hdr = testHeader(500)
	hdr.Main.RecordDuration = 2
	attrs, err = edf.Classify(hdr)
	require.NoError(t, err)
	period, err = edf.SamplingPeriod(hdr.Main, attrs)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, period)

	hdr.Main.RecordDuration = 0
	_, err = edf.SamplingPeriod(hdr.Main, attrs)
	assert.ErrorIs(t, err, edf.ErrInvalidRecordDuration)
}
