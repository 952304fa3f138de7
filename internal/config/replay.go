package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/edfreplay/internal/serialmux"
	"github.com/banshee-data/edfreplay/internal/timeutil"
)

// Default values applied by the Get* accessors when a field is omitted.
const (
	DefaultCounterBits  = 32
	DefaultPollInterval = 100 * time.Microsecond
)

// ReplayConfig is the on-disk configuration for a streaming session.
// Every field is optional; the Get* methods supply defaults so partial
// configs are safe. Command-line flags override values loaded from file.
type ReplayConfig struct {
	RecordingPath *string `json:"recording_path,omitempty"`
	PortPath      *string `json:"port_path,omitempty"`

	// Serial link
	BaudRate *int    `json:"baud_rate,omitempty"`
	DataBits *int    `json:"data_bits,omitempty"`
	StopBits *int    `json:"stop_bits,omitempty"`
	Parity   *string `json:"parity,omitempty"`

	// Pacing
	CounterBits  *int    `json:"counter_bits,omitempty"`
	PollInterval *string `json:"poll_interval,omitempty"` // duration string like "100us"; "0s" busy-polls

	EmitSync   *bool `json:"emit_sync,omitempty"`
	WideValues *bool `json:"wide_values,omitempty"` // 24-bit slot values

	// Optional surfaces
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyReplayConfig returns a ReplayConfig with all fields set to nil.
func EmptyReplayConfig() *ReplayConfig {
	return &ReplayConfig{}
}

// DefaultReplayConfig returns a ReplayConfig with every field populated with
// its default value.
func DefaultReplayConfig() *ReplayConfig {
	return &ReplayConfig{
		RecordingPath: ptrString(""),
		PortPath:      ptrString(""),
		BaudRate:      ptrInt(serialmux.DefaultBaudRate),
		DataBits:      ptrInt(8),
		StopBits:      ptrInt(1),
		Parity:        ptrString("N"),
		CounterBits:   ptrInt(DefaultCounterBits),
		PollInterval:  ptrString(DefaultPollInterval.String()),
		EmitSync:      ptrBool(false),
		WideValues:    ptrBool(false),
		Listen:        ptrString(""),
		DBPath:        ptrString(""),
	}
}

// LoadReplayConfig loads a ReplayConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadReplayConfig(path string) (*ReplayConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReplayConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ReplayConfig) Validate() error {
	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}

	if c.CounterBits != nil {
		bits := *c.CounterBits
		if bits < timeutil.MinCounterBits || bits > timeutil.MaxCounterBits {
			return fmt.Errorf("counter_bits must be between %d and %d, got %d",
				timeutil.MinCounterBits, timeutil.MaxCounterBits, bits)
		}
	}

	if c.PollInterval != nil && *c.PollInterval != "" {
		d, err := time.ParseDuration(*c.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("poll_interval must be non-negative, got %s", d)
		}
	}

	bits := c.GetCounterBits()
	if limit := timeutil.MaxPollInterval(bits); c.GetPollInterval() > limit {
		return fmt.Errorf("poll_interval %s is too long for a %d-bit counter (max %s)",
			c.GetPollInterval(), bits, limit)
	}

	return nil
}

// GetRecordingPath returns the recording path or "".
func (c *ReplayConfig) GetRecordingPath() string {
	if c.RecordingPath == nil {
		return ""
	}
	return *c.RecordingPath
}

// GetPortPath returns the serial device path or "".
func (c *ReplayConfig) GetPortPath() string {
	if c.PortPath == nil {
		return ""
	}
	return *c.PortPath
}

// PortOptions collects the serial fields. Unset fields are left zero so
// PortOptions.Normalize applies its defaults.
func (c *ReplayConfig) PortOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetCounterBits returns the hardware counter width in bits.
func (c *ReplayConfig) GetCounterBits() uint {
	if c.CounterBits == nil {
		return DefaultCounterBits
	}
	return uint(*c.CounterBits)
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *ReplayConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return DefaultPollInterval
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil || d < 0 {
		return DefaultPollInterval
	}
	return d
}

// GetEmitSync reports whether packets carry the sync marker.
func (c *ReplayConfig) GetEmitSync() bool {
	if c.EmitSync == nil {
		return false
	}
	return *c.EmitSync
}

// GetWideValues reports whether slot values are written as 24-bit integers.
func (c *ReplayConfig) GetWideValues() bool {
	if c.WideValues == nil {
		return false
	}
	return *c.WideValues
}

// GetListen returns the debug HTTP listen address, empty when disabled.
func (c *ReplayConfig) GetListen() string {
	if c.Listen == nil {
		return ""
	}
	return *c.Listen
}

// GetDBPath returns the session journal path, empty when disabled.
func (c *ReplayConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}
