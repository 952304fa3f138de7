// Package serialmux wraps the serial output link used by the replay loop. A
// Transport buffers outbound packet bytes, watches the port for inbound bytes
// and exposes them as a single "input available" flag, and serves counters and
// a live input tail on the debug mux.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/edfreplay/internal/httputil"
	"github.com/banshee-data/edfreplay/internal/monitoring"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	ErrPortClosed  = errors.New("serial port closed")
)

// Transport is the byte-oriented output link. WriteByte and Flush are called
// from the replay loop only; Monitor runs on its own goroutine.
type Transport struct {
	port    SerialPorter
	w       *bufio.Writer
	writeMu sync.Mutex

	pending  atomic.Bool
	closing  atomic.Bool
	bytesOut atomic.Uint64
	flushes  atomic.Uint64
	bytesIn  atomic.Uint64
	events   atomic.Uint64

	subscribers  map[string]chan string
	subscriberMu sync.Mutex
}

// TransportStats is a snapshot of transport counters.
type TransportStats struct {
	BytesOut       uint64 `json:"bytes_out"`
	Flushes        uint64 `json:"flushes"`
	BytesIn        uint64 `json:"bytes_in"`
	InputEvents    uint64 `json:"input_events"`
	InputAvailable bool   `json:"input_available"`
}

// NewTransport wraps port.
func NewTransport(port SerialPorter) *Transport {
	return &Transport{
		port:        port,
		w:           bufio.NewWriter(port),
		subscribers: make(map[string]chan string),
	}
}

// Open opens path with factory and wraps the resulting port.
func Open(factory SerialPortFactory, path string, opts PortOptions) (*Transport, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	port, err := factory.Open(path, opts)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("opened %s at %s", path, opts)
	return NewTransport(port), nil
}

// WriteByte queues one byte for transmission.
func (t *Transport) WriteByte(b byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closing.Load() {
		return ErrPortClosed
	}
	if err := t.w.WriteByte(b); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	t.bytesOut.Add(1)
	return nil
}

// Flush pushes queued bytes to the port. The replay loop flushes once per
// packet so a packet is never split across a pause.
func (t *Transport) Flush() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.w.Buffered() == 0 {
		return nil
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	t.flushes.Add(1)
	return nil
}

// InputAvailable reports whether bytes have arrived since the last
// TakeInput, without consuming them.
func (t *Transport) InputAvailable() bool {
	return t.pending.Load()
}

// TakeInput reports whether bytes have arrived since the last call and
// clears the flag in the same step, so input raised concurrently by Monitor
// is never discarded unseen.
func (t *Transport) TakeInput() bool {
	return t.pending.Swap(false)
}

// Signal raises the input-available flag as if a byte had arrived.
func (t *Transport) Signal() {
	t.events.Add(1)
	t.pending.Store(true)
	t.publish("signal")
}

// Stats returns a snapshot of the transport counters.
func (t *Transport) Stats() TransportStats {
	return TransportStats{
		BytesOut:       t.bytesOut.Load(),
		Flushes:        t.flushes.Load(),
		BytesIn:        t.bytesIn.Load(),
		InputEvents:    t.events.Load(),
		InputAvailable: t.pending.Load(),
	}
}

// Monitor reads inbound bytes until ctx is done, the port reports EOF or the
// transport is closed. Every read that returns data raises the
// input-available flag.
func (t *Transport) Monitor(ctx context.Context) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	// The blocking Read must not hold up context cancellation, so it runs on
	// its own goroutine.
	go func() {
		defer close(chunks)
		buf := make([]byte, 256)
		for {
			n, err := t.port.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if errors.Is(err, io.EOF) || t.closing.Load() {
				return nil
			}
			monitoring.Diagnosticf("serial read failed: %v", err)
			return err

		case chunk, ok := <-chunks:
			if !ok {
				select {
				case err := <-readErr:
					if errors.Is(err, io.EOF) || t.closing.Load() {
						return nil
					}
					return err
				default:
					return nil
				}
			}
			t.bytesIn.Add(uint64(len(chunk)))
			t.events.Add(1)
			t.pending.Store(true)
			t.publish(hex.EncodeToString(chunk))
		}
	}
}

// Close flushes pending output, closes subscriber channels and closes the port.
func (t *Transport) Close() error {
	if t.closing.Swap(true) {
		return nil
	}

	t.writeMu.Lock()
	flushErr := t.w.Flush()
	t.writeMu.Unlock()

	t.subscriberMu.Lock()
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
	t.subscriberMu.Unlock()

	if err := t.port.Close(); err != nil {
		return err
	}
	return flushErr
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel receiving one line per input event.
func (t *Transport) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if t.closing.Load() {
		close(ch)
		return id, ch
	}
	t.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber.
func (t *Transport) Unsubscribe(id string) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
}

func (t *Transport) publish(line string) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	for _, ch := range t.subscribers {
		select {
		case ch <- line:
		default:
			// slow subscribers miss events rather than stall the monitor
		}
	}
}

// AttachAdminRoutes registers the transport's debug endpoints on mux under
// /debug/. tsweb restricts them to loopback and tailnet clients.
func (t *Transport) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("serial", "serial transport counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, t.Stats())
	})

	// Raising the flag toggles the replay between paused and streaming.
	debug.HandleSilentFunc("serial-signal", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodPost) {
			return
		}
		t.Signal()
		io.WriteString(w, "input signalled")
	})

	// Server-Sent Events stream of inbound bytes, hex encoded.
	debug.HandleSilentFunc("serial-tail", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := t.Subscribe()
		defer t.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
