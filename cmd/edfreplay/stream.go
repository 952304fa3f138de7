package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/edfreplay/internal/config"
	"github.com/banshee-data/edfreplay/internal/db"
	"github.com/banshee-data/edfreplay/internal/fsutil"
	"github.com/banshee-data/edfreplay/internal/inspect"
	"github.com/banshee-data/edfreplay/internal/replay"
	"github.com/banshee-data/edfreplay/internal/serialmux"
	"github.com/banshee-data/edfreplay/internal/timeutil"
	"github.com/banshee-data/edfreplay/internal/version"
)

// env carries the collaborators a command touches so tests can swap them.
type env struct {
	fsys  fsutil.FileSystem
	ports serialmux.SerialPortFactory
	clock timeutil.Clock
}

func defaultEnv() env {
	return env{
		fsys:  fsutil.OSFileSystem{},
		ports: serialmux.NewRealPortFactory(),
		clock: timeutil.RealClock{},
	}
}

// Stop reasons written to the session journal.
const (
	stopExhausted   = "data exhausted"
	stopInterrupted = "interrupted"
)

func handleStream(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runStream(ctx, args, defaultEnv(), stderr)
}

// parseStreamConfig loads -config when given and overlays every flag that was
// set explicitly on the command line.
func parseStreamConfig(args []string, stderr io.Writer) (*config.ReplayConfig, string, error) {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "JSON config file (flags override its values)")
	recording := fs.String("recording", "", "EDF recording to replay")
	port := fs.String("port", "", "Serial device for the output link")
	dev := fs.String("dev", "", "Write the byte stream to this file instead of a serial device")
	baud := fs.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	counterBits := fs.Int("counter-bits", config.DefaultCounterBits, "Width of the elapsed-microsecond counter")
	poll := fs.Duration("poll", config.DefaultPollInterval, "Sleep between control loop iterations (0 busy-polls)")
	emitSync := fs.Bool("sync", false, "Prefix every packet with the 0xA55A sync marker")
	wide := fs.Bool("wide", false, "Write slot values as 24-bit integers")
	listen := fs.String("listen", "", "Serve /debug/ status pages on this address")
	dbPath := fs.String("db", "", "SQLite session journal")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	cfg := config.EmptyReplayConfig()
	if *configPath != "" {
		loaded, err := config.LoadReplayConfig(*configPath)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "recording":
			cfg.RecordingPath = recording
		case "port":
			cfg.PortPath = port
		case "baud":
			cfg.BaudRate = baud
		case "counter-bits":
			cfg.CounterBits = counterBits
		case "poll":
			s := poll.String()
			cfg.PollInterval = &s
		case "sync":
			cfg.EmitSync = emitSync
		case "wide":
			cfg.WideValues = wide
		case "listen":
			cfg.Listen = listen
		case "db":
			cfg.DBPath = dbPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	if cfg.GetRecordingPath() == "" {
		return nil, "", errors.New("a recording is required (-recording)")
	}
	if *dev == "" && cfg.GetPortPath() == "" {
		return nil, "", errors.New("a serial port (-port) or capture file (-dev) is required")
	}
	return cfg, *dev, nil
}

// runStream replays one recording and returns the exit status: 0 when the
// recording ran out or the stream was interrupted, 1 on any setup or
// transport failure.
func runStream(ctx context.Context, args []string, e env, stderr io.Writer) int {
	cfg, dev, err := parseStreamConfig(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "stream: %v\n", err)
		return 1
	}
	log.Printf("%s starting", version.String())

	factory, portPath := e.ports, cfg.GetPortPath()
	if dev != "" {
		factory, portPath = serialmux.FilePortFactory{FS: e.fsys}, dev
	}
	transport, err := serialmux.Open(factory, portPath, cfg.PortOptions())
	if err != nil {
		fmt.Fprintf(stderr, "stream: %v\n", err)
		return 1
	}
	defer transport.Close()

	counter, err := timeutil.NewClockCounter(e.clock, cfg.GetCounterBits())
	if err != nil {
		fmt.Fprintf(stderr, "stream: %v\n", err)
		return 1
	}

	session, err := replay.NewSession(e.fsys, cfg.GetRecordingPath(), replay.Options{
		Counter:      counter,
		Sink:         transport,
		Input:        transport,
		EmitSync:     cfg.GetEmitSync(),
		WideValues:   cfg.GetWideValues(),
		PollInterval: cfg.GetPollInterval(),
		Clock:        e.clock,
	})
	if err != nil {
		fmt.Fprintf(stderr, "stream: %v\n", err)
		return 1
	}
	defer session.Close()

	var journal *db.DB
	var sessionID string
	if path := cfg.GetDBPath(); path != "" {
		journal, err = db.NewDB(path)
		if err != nil {
			fmt.Fprintf(stderr, "stream: failed to open journal: %v\n", err)
			return 1
		}
		defer journal.Close()

		rec := sessionRecord(session, portPath, cfg)
		if err := journal.StartSession(rec); err != nil {
			fmt.Fprintf(stderr, "stream: %v\n", err)
			return 1
		}
		sessionID = rec.ID
		log.Printf("journaling session %s to %s", sessionID, path)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := transport.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
	}()

	if listen := cfg.GetListen(); listen != "" {
		mux := http.NewServeMux()
		session.AttachAdminRoutes(mux)
		transport.AttachAdminRoutes(mux)
		if journal != nil {
			if err := journal.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach journal routes: %v", err)
			}
		}
		if rec, err := inspect.Load(e.fsys, cfg.GetRecordingPath(), inspect.DefaultRecords); err == nil {
			rec.AttachAdminRoutes(mux)
		} else {
			log.Printf("preview unavailable: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, listen, mux)
		}()
	}

	runErr := session.Run(ctx)
	status, reason := 0, stopInterrupted
	switch {
	case errors.Is(runErr, replay.ErrDataExhausted):
		reason = stopExhausted
	case runErr == nil, errors.Is(runErr, context.Canceled):
	default:
		status, reason = 1, runErr.Error()
	}

	stats := session.Stats()
	log.Printf("stream ended after %d packets (%d records): %s", stats.Emitted, stats.Refills, reason)
	if journal != nil {
		if err := journal.StopSession(sessionID, stats.Emitted, stats.Refills, reason, time.Now()); err != nil {
			log.Printf("failed to journal session stop: %v", err)
		}
	}

	cancel()
	transport.Close()
	wg.Wait()
	return status
}

// sessionRecord describes a freshly started session for the journal.
func sessionRecord(s *replay.Session, portPath string, cfg *config.ReplayConfig) *db.SessionRecord {
	hdr := s.Header()
	attrs := s.Attributes()
	stats := s.Stats()
	slots := make(map[int]int, len(stats.Channels))
	for slot, ch := range stats.Channels {
		slots[ch] = slot
	}

	opts, _ := cfg.PortOptions().Normalize()
	rec := &db.SessionRecord{
		RecordingPath:    s.Path(),
		PortPath:         portPath,
		PortOptions:      opts.String(),
		NumSignals:       len(attrs),
		SamplesPerRecord: attrs[0].SamplesPerRecord,
		PeriodMicros:     stats.PeriodMicros,
		EmitSync:         cfg.GetEmitSync(),
		WideValues:       cfg.GetWideValues(),
	}
	for ch, a := range attrs {
		cr := db.ChannelRecord{
			Index:             ch,
			Label:             hdr.Channels[ch].Label,
			PhysicalDimension: hdr.Channels[ch].PhysicalDimension,
			SamplesPerRecord:  a.SamplesPerRecord,
			Accepted:          a.Accepted,
			CalMultiplier:     db.FiniteOrNil(a.CalMultiplier),
			CalOffset:         db.FiniteOrNil(a.CalOffset),
		}
		if slot, ok := slots[ch]; ok {
			cr.Slot = &slot
		}
		rec.Channels = append(rec.Channels, cr)
	}
	return rec
}

func serveDebug(ctx context.Context, addr string, mux *http.ServeMux) {
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start debug server: %v", err)
		}
	}()
	log.Printf("debug pages on http://%s/debug/", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
		server.Close()
	}
}
