package replay

// VirtualClock turns readings of a wrapping microsecond counter into a
// non-decreasing elapsed time. It must be fed at least once per counter
// period; a gap longer than the modulus loses whole wraps.
type VirtualClock struct {
	modulus     uint64
	previousRaw uint64
	accumulated uint64
}

// NewVirtualClock returns a clock reading zero at initialRaw. A modulus of
// zero stands for a full 64-bit counter.
func NewVirtualClock(modulus, initialRaw uint64) *VirtualClock {
	c := &VirtualClock{modulus: modulus}
	c.previousRaw = c.reduce(initialRaw)
	return c
}

func (c *VirtualClock) reduce(raw uint64) uint64 {
	if c.modulus == 0 {
		return raw
	}
	return raw % c.modulus
}

// Correct folds the raw reading into the accumulated time and returns it.
// A reading below the previous one is taken as exactly one wrap.
func (c *VirtualClock) Correct(raw uint64) uint64 {
	raw = c.reduce(raw)
	var delta uint64
	switch {
	case raw >= c.previousRaw:
		delta = raw - c.previousRaw
	case c.modulus == 0:
		// uint64 subtraction already wraps at 2^64
		delta = raw - c.previousRaw
	default:
		delta = c.modulus - c.previousRaw + raw
	}
	c.accumulated += delta
	c.previousRaw = raw
	return c.accumulated
}

// Now returns the accumulated elapsed microseconds as of the last Correct.
func (c *VirtualClock) Now() uint64 {
	return c.accumulated
}
