package replay

import (
	"io"
	"math"

	"github.com/banshee-data/edfreplay/internal/edf"
)

const (
	// PacketSlots is the fixed number of value slots per packet.
	PacketSlots = 8

	// CounterModulus bounds the packet counter to 15 bits.
	CounterModulus = 32768

	// SyncMarker optionally precedes the counter on the wire.
	SyncMarker uint16 = 0xA55A
)

// OutPacket is one emission: a counter and eight calibrated values. Sync is
// always SyncMarker but only reaches the wire when the serializer asks for it.
type OutPacket struct {
	Sync    uint16
	Counter uint16
	Values  [PacketSlots]int32
}

// SlotChannels returns the channels feeding the packet slots: the first
// PacketSlots accepted channels in header order.
func SlotChannels(attrs []edf.ChannelAttributes) []int {
	idx := edf.AcceptedIndices(attrs)
	if len(idx) > PacketSlots {
		idx = idx[:PacketSlots]
	}
	return idx
}

// BuildPacket assembles the packet for the buffer's current row. Slots
// beyond len(slots) carry their own slot index as a placeholder.
func BuildPacket(emitted uint64, buf *RecordBuffer, slots []int, attrs []edf.ChannelAttributes) OutPacket {
	p := OutPacket{Sync: SyncMarker, Counter: uint16(emitted % CounterModulus)}
	for s := range p.Values {
		if s >= len(slots) {
			p.Values[s] = int32(s)
			continue
		}
		ch := slots[s]
		p.Values[s] = roundToInt32(attrs[ch].Calibrate(buf.Sample(ch)))
	}
	return p
}

func roundToInt32(v float64) int32 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// Serializer writes packets one byte at a time, least significant byte
// first. There is no framing or checksum.
type Serializer struct {
	w io.ByteWriter

	// EmitSync writes SyncMarker ahead of each counter.
	EmitSync bool
	// WideValues writes each value as 24 bits instead of 16.
	WideValues bool
}

// NewSerializer returns a Serializer writing to w.
func NewSerializer(w io.ByteWriter) *Serializer {
	return &Serializer{w: w}
}

// Write16 writes v as two bytes, low then high.
func (s *Serializer) Write16(v uint16) error {
	if err := s.w.WriteByte(byte(v)); err != nil {
		return err
	}
	return s.w.WriteByte(byte(v >> 8))
}

// Write24 writes the low 24 bits of v as three bytes, low to high.
func (s *Serializer) Write24(v uint32) error {
	for shift := 0; shift < 24; shift += 8 {
		if err := s.w.WriteByte(byte(v >> shift)); err != nil {
			return err
		}
	}
	return nil
}

// WritePacket writes p. Values are truncated to the configured width.
func (s *Serializer) WritePacket(p OutPacket) error {
	if s.EmitSync {
		if err := s.Write16(p.Sync); err != nil {
			return err
		}
	}
	if err := s.Write16(p.Counter); err != nil {
		return err
	}
	for _, v := range p.Values {
		var err error
		if s.WideValues {
			err = s.Write24(uint32(v))
		} else {
			err = s.Write16(uint16(v))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PacketSize returns the number of bytes WritePacket emits per packet.
func (s *Serializer) PacketSize() int {
	n := 2 + PacketSlots*2
	if s.WideValues {
		n = 2 + PacketSlots*3
	}
	if s.EmitSync {
		n += 2
	}
	return n
}
