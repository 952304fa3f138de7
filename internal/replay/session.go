// Package replay streams an EDF recording over a byte transport at the
// recording's own sampling rate. A Session owns every piece of mutable replay
// state; it is driven by repeated calls to Poll from a single goroutine.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/edfreplay/internal/edf"
	"github.com/banshee-data/edfreplay/internal/fsutil"
	"github.com/banshee-data/edfreplay/internal/monitoring"
	"github.com/banshee-data/edfreplay/internal/timeutil"
)

// ErrSetupFailed wraps every error that prevents a session from starting.
var ErrSetupFailed = errors.New("replay: setup failed")

// Sink is the byte-oriented output transport. Flush is called once per packet.
type Sink interface {
	io.ByteWriter
	Flush() error
}

// InputSignal reports bytes arriving on the transport. Each observed input
// toggles output on or off. TakeInput must report and clear pending input
// atomically.
type InputSignal interface {
	TakeInput() bool
}

// Options configures a Session.
type Options struct {
	Counter timeutil.Counter
	Sink    Sink
	// Input may be nil, in which case output is never paused.
	Input InputSignal

	EmitSync   bool
	WideValues bool

	// PollInterval is slept between polls by Run; zero busy-polls.
	PollInterval time.Duration
	// Clock supplies Sleep for Run. Defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// Stats is a snapshot of a session's progress.
type Stats struct {
	Emitted       uint64  `json:"emitted"`
	Refills       int     `json:"refills"`
	OutputEnabled bool    `json:"output_enabled"`
	ElapsedMicros uint64  `json:"elapsed_us"`
	NextDueMicros float64 `json:"next_due_us"`
	PeriodMicros  float64 `json:"period_us"`
	Channels      []int   `json:"channels"`
	Err           string  `json:"error,omitempty"`
}

// Session replays one recording.
type Session struct {
	path string
	opts Options

	mu            sync.Mutex
	file          fsutil.File
	header        *edf.Header
	attrs         []edf.ChannelAttributes
	slots         []int
	buffer        *RecordBuffer
	clock         *VirtualClock
	scheduler     *Scheduler
	serializer    *Serializer
	emitted       uint64
	outputEnabled bool
	err           error
}

// NewSession opens the recording at path, parses and classifies its header
// and loads the first data record. The returned Session is never nil: after a
// setup failure it is inert, Poll returns the wrapped ErrSetupFailed and no
// byte is ever written.
func NewSession(fsys fsutil.FileSystem, path string, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	s := &Session{path: path, opts: opts}
	if err := s.setup(fsys); err != nil {
		if s.file != nil {
			s.file.Close()
			s.file = nil
		}
		s.err = fmt.Errorf("%w: %s: %w", ErrSetupFailed, path, err)
		monitoring.Diagnosticf("%v", s.err)
		return s, s.err
	}
	monitoring.Logf("streaming %s: %d of %d channels at %.2fus per sample",
		path, len(s.slots), len(s.attrs), s.scheduler.Period())
	return s, nil
}

func (s *Session) setup(fsys fsutil.FileSystem) error {
	if s.opts.Counter == nil || s.opts.Sink == nil {
		return errors.New("counter and sink are required")
	}

	f, err := fsys.Open(s.path)
	if err != nil {
		return fmt.Errorf("error opening recording: %w", err)
	}
	s.file = f

	hdr, err := edf.ReadHeader(f)
	if err != nil {
		return err
	}
	attrs, err := edf.Classify(hdr)
	if err != nil {
		return err
	}
	period, err := edf.SamplingPeriod(hdr.Main, attrs)
	if err != nil {
		return err
	}

	buffer := NewRecordBuffer(attrs, attrs[0].SamplesPerRecord)
	if err := buffer.Refill(f); err != nil {
		return err
	}

	s.header = hdr
	s.attrs = attrs
	s.slots = SlotChannels(attrs)
	s.buffer = buffer
	s.serializer = NewSerializer(s.opts.Sink)
	s.serializer.EmitSync = s.opts.EmitSync
	s.serializer.WideValues = s.opts.WideValues
	s.clock = NewVirtualClock(s.opts.Counter.Modulus(), s.opts.Counter.Micros())
	s.scheduler = NewScheduler(period)
	s.outputEnabled = true
	return nil
}

// Poll runs one iteration of the control loop: it handles pending input,
// advances the virtual clock and emits at most one packet if one is due.
// After a setup failure or a terminal runtime error Poll does nothing and
// returns that error.
func (s *Session) Poll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	// The clock is read on every poll, paused or not, so no wrap is missed.
	now := s.clock.Correct(s.opts.Counter.Micros())

	if s.opts.Input != nil && s.opts.Input.TakeInput() {
		s.outputEnabled = !s.outputEnabled
		if s.outputEnabled {
			s.scheduler.Reanchor(now)
			monitoring.Logf("output resumed at packet %d", s.emitted)
		} else {
			monitoring.Logf("output paused at packet %d", s.emitted)
		}
	}

	if !s.outputEnabled || !s.scheduler.Due(now) {
		return nil
	}
	return s.emit()
}

func (s *Session) emit() error {
	p := BuildPacket(s.emitted, s.buffer, s.slots, s.attrs)
	if err := s.serializer.WritePacket(p); err != nil {
		return s.fail(fmt.Errorf("error writing packet %d: %w", s.emitted, err))
	}
	if err := s.opts.Sink.Flush(); err != nil {
		return s.fail(fmt.Errorf("error flushing packet %d: %w", s.emitted, err))
	}
	s.emitted++

	if s.buffer.Advance() {
		if err := s.buffer.Refill(s.file); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

// fail records a terminal error, closes the recording and reports once.
func (s *Session) fail(err error) error {
	s.err = err
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	monitoring.Diagnosticf("stream stopped after %d packets: %v", s.emitted, err)
	return err
}

// Run polls until ctx is done or Poll returns an error. Cancellation returns
// ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Poll(); err != nil {
			return err
		}
		if s.opts.PollInterval > 0 {
			s.opts.Clock.Sleep(s.opts.PollInterval)
		}
	}
}

// Stats returns a snapshot of the session's progress. It is safe to call from
// any goroutine.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Emitted:       s.emitted,
		OutputEnabled: s.outputEnabled,
		Channels:      append([]int(nil), s.slots...),
	}
	if s.buffer != nil {
		st.Refills = s.buffer.Refills()
	}
	if s.clock != nil {
		st.ElapsedMicros = s.clock.Now()
	}
	if s.scheduler != nil {
		st.NextDueMicros = s.scheduler.NextDue()
		st.PeriodMicros = s.scheduler.Period()
	}
	if s.err != nil {
		st.Err = s.err.Error()
	}
	return st
}

// Err returns the setup or terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Header returns the parsed header, or nil after a setup failure.
func (s *Session) Header() *edf.Header { return s.header }

// Attributes returns the per-channel attributes, or nil after a setup failure.
func (s *Session) Attributes() []edf.ChannelAttributes { return s.attrs }

// Path returns the recording path.
func (s *Session) Path() string { return s.path }

// Close releases the recording. It does not close the sink.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if s.err == nil {
		s.err = errSessionClosed
	}
	return err
}

var errSessionClosed = errors.New("replay: session closed")
