package timeutil

import (
	"fmt"
	"math"
	"time"
)

// Counter is a free-running elapsed-microsecond counter that wraps to zero
// at Modulus, like a microcontroller's micros() register.
type Counter interface {
	// Micros returns the current raw reading in [0, Modulus).
	Micros() uint64

	// Modulus returns the value at which the counter wraps.
	Modulus() uint64
}

// MinCounterBits and MaxCounterBits bound the width of a ClockCounter. A
// 26-bit counter wraps roughly every 67s, long enough that no plausible
// stall between readings hides a whole wrap.
const (
	MinCounterBits = 26
	MaxCounterBits = 63

	// pollHeadroom is how many polls must fit inside one wrap period.
	pollHeadroom = 16
)

// WrapPeriod returns how long a counter of the given width runs before it
// wraps to zero.
func WrapPeriod(bits uint) time.Duration {
	// Beyond 53 bits the period no longer fits in a Duration.
	if bits > 53 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(uint64(1)<<bits) * time.Microsecond
}

// MaxPollInterval returns the longest poll interval that still reads a
// counter of the given width many times per wrap. Readings further apart
// than one modulus lose whole wraps without any error.
func MaxPollInterval(bits uint) time.Duration {
	return WrapPeriod(bits) / pollHeadroom
}

// ClockCounter derives a wrapping counter of a given bit width from a Clock.
type ClockCounter struct {
	clock   Clock
	start   time.Time
	modulus uint64
}

// NewClockCounter returns a counter that reads zero now and wraps at 2^bits.
func NewClockCounter(clock Clock, bits uint) (*ClockCounter, error) {
	if bits < MinCounterBits || bits > MaxCounterBits {
		return nil, fmt.Errorf("counter width %d out of range [%d, %d]", bits, MinCounterBits, MaxCounterBits)
	}
	return &ClockCounter{
		clock:   clock,
		start:   clock.Now(),
		modulus: uint64(1) << bits,
	}, nil
}

// Micros returns the elapsed microseconds since construction, wrapped.
func (c *ClockCounter) Micros() uint64 {
	elapsed := c.clock.Since(c.start)
	if elapsed < 0 {
		elapsed = 0
	}
	return uint64(elapsed/time.Microsecond) & (c.modulus - 1)
}

// Modulus returns 2^bits.
func (c *ClockCounter) Modulus() uint64 {
	return c.modulus
}
