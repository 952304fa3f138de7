package replay

// Scheduler paces emissions at a fixed period on the virtual clock.
// The due time advances additively so rounding never accumulates into drift;
// a late poll is followed by catch-up emissions on subsequent polls.
type Scheduler struct {
	period  float64
	nextDue float64
}

// NewScheduler returns a scheduler whose first emission is due as soon as the
// clock moves past zero.
func NewScheduler(periodMicros float64) *Scheduler {
	return &Scheduler{period: periodMicros}
}

// Due reports whether an emission is due at now and, if so, advances the due
// time by one period. At most one emission is granted per call.
func (s *Scheduler) Due(now uint64) bool {
	if float64(now) > s.nextDue {
		s.nextDue += s.period
		return true
	}
	return false
}

// Reanchor makes the next emission due right after now, discarding any
// backlog accumulated while output was paused.
func (s *Scheduler) Reanchor(now uint64) {
	s.nextDue = float64(now)
}

// NextDue returns the virtual time after which the next emission is due.
func (s *Scheduler) NextDue() float64 { return s.nextDue }

// Period returns the emission period in microseconds.
func (s *Scheduler) Period() float64 { return s.period }
