package replay_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/edfreplay/internal/edf"
	"github.com/banshee-data/edfreplay/internal/fsutil"
	"github.com/banshee-data/edfreplay/internal/replay"
)

// identitySignal calibrates raw samples onto themselves (multiplier 1,
// offset 0) so packet values equal the stored samples.
func identitySignal(label string, spr int) edf.SignalSpec {
	return edf.SignalSpec{
		Label:             label,
		PhysicalDimension: "uV",
		PhysicalMin:       -2048,
		PhysicalMax:       2047,
		DigitalMin:        -2048,
		DigitalMax:        2047,
		SamplesPerRecord:  spr,
	}
}

func identitySignals(spr ...int) []edf.SignalSpec {
	signals := make([]edf.SignalSpec, len(spr))
	for i, n := range spr {
		signals[i] = identitySignal(fmt.Sprintf("CH%d", i), n)
	}
	return signals
}

// sampleAt is the deterministic sample stored for record rec, channel ch,
// sample i. It stays within the identity digital range.
func sampleAt(rec, ch, i int) int16 {
	return int16((rec*100+ch*10+i)%2000 - 1000)
}

func writeRecording(t *testing.T, mfs *fsutil.MemoryFileSystem, path string, signals []edf.SignalSpec, records int) {
	t.Helper()
	hdr := edf.NewHeader(edf.MainHeader{
		PatientID:      "X X X X",
		RecordingID:    "Startdate 01-MAR-2022 X X X",
		StartDate:      "01.03.22",
		StartTime:      "13.45.10",
		NumDataRecords: records,
		RecordDuration: 1,
	}, signals)

	var buf bytes.Buffer
	enc, err := edf.NewEncoder(&buf, hdr)
	require.NoError(t, err)
	for rec := 0; rec < records; rec++ {
		samples := make([][]int16, len(signals))
		for ch, s := range signals {
			samples[ch] = make([]int16, s.SamplesPerRecord)
			for i := range samples[ch] {
				samples[ch][i] = sampleAt(rec, ch, i)
			}
		}
		require.NoError(t, enc.WriteRecord(samples))
	}
	require.NoError(t, enc.Flush())
	require.NoError(t, mfs.WriteFile(path, buf.Bytes(), 0644))
}

// captureSink records bytes and flushes. When failAfter is positive, the
// write of that many bytes plus one fails.
type captureSink struct {
	bytes.Buffer
	flushes   int
	failAfter int
}

var errSinkFull = errors.New("sink full")

func (c *captureSink) WriteByte(b byte) error {
	if c.failAfter > 0 && c.Len() >= c.failAfter {
		return errSinkFull
	}
	return c.Buffer.WriteByte(b)
}

func (c *captureSink) Flush() error {
	c.flushes++
	return nil
}

// decodePackets splits the default 18-byte wire format.
func decodePackets(t *testing.T, b []byte) []replay.OutPacket {
	t.Helper()
	const size = 2 + replay.PacketSlots*2
	require.Zero(t, len(b)%size, "stream length %d is not a whole number of packets", len(b))

	packets := make([]replay.OutPacket, 0, len(b)/size)
	for off := 0; off < len(b); off += size {
		var p replay.OutPacket
		p.Counter = binary.LittleEndian.Uint16(b[off:])
		for s := range p.Values {
			p.Values[s] = int32(int16(binary.LittleEndian.Uint16(b[off+2+2*s:])))
		}
		packets = append(packets, p)
	}
	return packets
}

// stepCounter is a synthetic wrapping counter. The n-th reading (from zero)
// is (offset + floor(n × step)) mod modulus, so a fractional step such as
// 3906.25 advances without accumulating rounding.
type stepCounter struct {
	modulus uint64
	step    float64
	reads   uint64
	offset  uint64
}

func newStepCounter(modulus uint64, step float64, offset uint64) *stepCounter {
	if modulus == 0 {
		panic("stepCounter: zero modulus")
	}
	return &stepCounter{modulus: modulus, step: step, offset: offset}
}

func (c *stepCounter) Micros() uint64 {
	v := (c.offset + uint64(float64(c.reads)*c.step)) % c.modulus
	c.reads++
	return v
}

func (c *stepCounter) Modulus() uint64 { return c.modulus }

// manualCounter is a wrapping counter whose reading is set directly.
type manualCounter struct {
	raw     uint64
	modulus uint64
}

func (c *manualCounter) Micros() uint64  { return c.raw % c.modulus }
func (c *manualCounter) Modulus() uint64 { return c.modulus }
func (c *manualCounter) Advance(us uint64) {
	c.raw += us
}

// toggleInput is an InputSignal raised by the test.
type toggleInput struct {
	pending bool
	taken   int
}

func (in *toggleInput) TakeInput() bool {
	if !in.pending {
		return false
	}
	in.pending = false
	in.taken++
	return true
}
