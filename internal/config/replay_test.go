package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/edfreplay/internal/serialmux"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultReplayConfig(t *testing.T) {
	cfg := DefaultReplayConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.GetCounterBits() != 32 {
		t.Errorf("GetCounterBits() = %d, want 32", cfg.GetCounterBits())
	}
	if cfg.GetPollInterval() != 100*time.Microsecond {
		t.Errorf("GetPollInterval() = %v, want 100µs", cfg.GetPollInterval())
	}
	if cfg.GetEmitSync() {
		t.Error("GetEmitSync() should default to false")
	}
	if cfg.GetWideValues() {
		t.Error("GetWideValues() should default to false")
	}
	want := serialmux.PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
	if got := cfg.PortOptions(); got != want {
		t.Errorf("PortOptions() = %+v, want %+v", got, want)
	}
}

func TestEmptyReplayConfig_Getters(t *testing.T) {
	cfg := EmptyReplayConfig()

	if cfg.GetRecordingPath() != "" || cfg.GetPortPath() != "" {
		t.Error("paths should default to empty")
	}
	if cfg.GetListen() != "" || cfg.GetDBPath() != "" {
		t.Error("optional surfaces should default to disabled")
	}
	if cfg.GetCounterBits() != DefaultCounterBits {
		t.Errorf("GetCounterBits() = %d, want %d", cfg.GetCounterBits(), DefaultCounterBits)
	}
	if cfg.GetPollInterval() != DefaultPollInterval {
		t.Errorf("GetPollInterval() = %v, want %v", cfg.GetPollInterval(), DefaultPollInterval)
	}
	// Unset serial fields stay zero so Normalize can fill them.
	if got := cfg.PortOptions(); got != (serialmux.PortOptions{}) {
		t.Errorf("PortOptions() = %+v, want zero value", got)
	}
}

func TestLoadReplayConfig(t *testing.T) {
	path := writeConfig(t, "replay.json", `{
  "recording_path": "/data/sleep.edf",
  "port_path": "/dev/ttyACM0",
  "baud_rate": 230400,
  "parity": "even",
  "counter_bits": 40,
  "poll_interval": "0s",
  "emit_sync": true,
  "wide_values": true,
  "listen": "localhost:8080",
  "db_path": "journal.db"
}`)

	cfg, err := LoadReplayConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetRecordingPath() != "/data/sleep.edf" {
		t.Errorf("GetRecordingPath() = %q", cfg.GetRecordingPath())
	}
	if cfg.GetPortPath() != "/dev/ttyACM0" {
		t.Errorf("GetPortPath() = %q", cfg.GetPortPath())
	}
	if cfg.GetCounterBits() != 40 {
		t.Errorf("GetCounterBits() = %d, want 40", cfg.GetCounterBits())
	}
	if cfg.GetPollInterval() != 0 {
		t.Errorf("GetPollInterval() = %v, want 0", cfg.GetPollInterval())
	}
	if !cfg.GetEmitSync() {
		t.Error("GetEmitSync() = false, want true")
	}
	if !cfg.GetWideValues() {
		t.Error("GetWideValues() = false, want true")
	}
	if cfg.GetListen() != "localhost:8080" || cfg.GetDBPath() != "journal.db" {
		t.Errorf("listen/db = %q/%q", cfg.GetListen(), cfg.GetDBPath())
	}

	opts, err := cfg.PortOptions().Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := serialmux.PortOptions{BaudRate: 230400, DataBits: 8, StopBits: 1, Parity: "E"}
	if opts != want {
		t.Errorf("PortOptions() = %+v, want %+v", opts, want)
	}
}

func TestLoadReplayConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"emit_sync": true}`)

	cfg, err := LoadReplayConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.GetEmitSync() {
		t.Error("emit_sync should be loaded")
	}
	if cfg.GetCounterBits() != DefaultCounterBits {
		t.Errorf("omitted counter_bits should default, got %d", cfg.GetCounterBits())
	}
}

func TestLoadReplayConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "replay.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"baud_rate": }`, "failed to parse"},
		{"counter too narrow", "c.json", `{"counter_bits": 4}`, "counter_bits"},
		{"counter too wide", "c.json", `{"counter_bits": 64}`, "counter_bits"},
		{"counter wraps between polls", "c.json", `{"counter_bits": 8, "poll_interval": "100us"}`, "counter_bits"},
		{"poll too slow for counter", "c.json", `{"counter_bits": 26, "poll_interval": "10s"}`, "poll_interval"},
		{"poll too slow for default counter", "p.json", `{"poll_interval": "5m"}`, "poll_interval"},
		{"bad poll interval", "p.json", `{"poll_interval": "soon"}`, "poll_interval"},
		{"negative poll interval", "p.json", `{"poll_interval": "-1ms"}`, "poll_interval"},
		{"bad parity", "s.json", `{"parity": "mark"}`, "parity"},
		{"bad data bits", "s.json", `{"data_bits": 9}`, "data bits"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadReplayConfig(writeConfig(t, tc.file, tc.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadReplayConfig_Missing(t *testing.T) {
	if _, err := LoadReplayConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadReplayConfig_TooLarge(t *testing.T) {
	body := `{"listen": "` + strings.Repeat("x", 1024*1024) + `"}`
	if _, err := LoadReplayConfig(writeConfig(t, "big.json", body)); err == nil {
		t.Error("expected error for oversized file")
	}
}
