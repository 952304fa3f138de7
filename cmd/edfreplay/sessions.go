package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/edfreplay/internal/db"
)

func handleSessions(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "SQLite session journal")
	limit := fs.Int("limit", 20, "Maximum number of sessions to list")
	id := fs.String("id", "", "Show one session with its channels as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *dbPath == "" {
		fmt.Fprintln(stderr, "sessions: a journal is required (-db)")
		return 1
	}

	journal, err := db.NewDB(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "sessions: %v\n", err)
		return 1
	}
	defer journal.Close()

	if *id != "" {
		rec, err := journal.GetSession(*id)
		if err != nil {
			fmt.Fprintf(stderr, "sessions: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintf(stderr, "sessions: %v\n", err)
			return 1
		}
		return 0
	}

	sessions, err := journal.ListSessions(*limit)
	if err != nil {
		fmt.Fprintf(stderr, "sessions: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%-36s  %-20s  %10s  %-16s  %s\n", "id", "started", "packets", "stopped", "recording")
	for _, s := range sessions {
		stopped := "running"
		if s.StoppedUnix != nil {
			stopped = s.StopReason
		}
		fmt.Fprintf(stdout, "%-36s  %-20s  %10d  %-16s  %s\n",
			s.ID, formatUnix(s.StartedUnix), s.PacketsEmitted, stopped, s.RecordingPath)
	}
	return 0
}

func formatUnix(secs float64) string {
	sec := int64(secs)
	nsec := int64((secs - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04:05")
}
