package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is one streaming session.
type SessionRecord struct {
	ID               string          `json:"session_id"`
	RecordingPath    string          `json:"recording_path"`
	PortPath         string          `json:"port_path"`
	PortOptions      string          `json:"port_options"`
	NumSignals       int             `json:"num_signals"`
	SamplesPerRecord int             `json:"samples_per_record"`
	PeriodMicros     float64         `json:"period_us"`
	EmitSync         bool            `json:"emit_sync"`
	WideValues       bool            `json:"wide_values"`
	StartedUnix      float64         `json:"started_unix"`
	StoppedUnix      *float64        `json:"stopped_unix,omitempty"`
	PacketsEmitted   uint64          `json:"packets_emitted"`
	Refills          int             `json:"refills"`
	StopReason       string          `json:"stop_reason,omitempty"`
	Channels         []ChannelRecord `json:"channels,omitempty"`
}

// ChannelRecord describes one channel of a session's recording. Slot is the
// packet slot the channel feeds, nil when it is not streamed. Calibration
// coefficients are nil when they are not finite.
type ChannelRecord struct {
	Index             int      `json:"channel_index"`
	Label             string   `json:"label"`
	PhysicalDimension string   `json:"physical_dimension"`
	SamplesPerRecord  int      `json:"samples_per_record"`
	Accepted          bool     `json:"accepted"`
	Slot              *int     `json:"slot,omitempty"`
	CalMultiplier     *float64 `json:"cal_multiplier,omitempty"`
	CalOffset         *float64 `json:"cal_offset,omitempty"`
}

// FiniteOrNil returns &v, or nil when v is NaN or infinite.
func FiniteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// StartSession inserts rec and its channels. An empty ID is replaced with a
// new UUID and a zero StartedUnix with the current time; both are written
// back to rec.
func (db *DB) StartSession(rec *SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedUnix == 0 {
		rec.StartedUnix = unixSeconds(time.Now())
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO replay_sessions (
			session_id, recording_path, port_path, port_options, num_signals,
			samples_per_record, period_us, emit_sync, wide_values, started_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RecordingPath, rec.PortPath, rec.PortOptions, rec.NumSignals,
		rec.SamplesPerRecord, rec.PeriodMicros, boolToInt(rec.EmitSync), boolToInt(rec.WideValues),
		rec.StartedUnix,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for _, ch := range rec.Channels {
		_, err = tx.Exec(`INSERT INTO replay_channels (
				session_id, channel_index, label, physical_dimension,
				samples_per_record, accepted, slot, cal_multiplier, cal_offset
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, ch.Index, ch.Label, ch.PhysicalDimension,
			ch.SamplesPerRecord, boolToInt(ch.Accepted), ch.Slot, ch.CalMultiplier, ch.CalOffset,
		)
		if err != nil {
			return fmt.Errorf("failed to insert channel %d: %w", ch.Index, err)
		}
	}

	return tx.Commit()
}

// StopSession records the final counters and the reason the stream ended.
func (db *DB) StopSession(id string, emitted uint64, refills int, reason string, at time.Time) error {
	res, err := db.Exec(`UPDATE replay_sessions
		SET stopped_unix = ?, packets_emitted = ?, refills = ?, stop_reason = ?
		WHERE session_id = ?`,
		unixSeconds(at), int64(emitted), refills, reason, id,
	)
	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `session_id, recording_path, port_path, port_options, num_signals,
	samples_per_record, period_us, emit_sync, wide_values, started_unix, stopped_unix,
	packets_emitted, refills, stop_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var (
		rec        SessionRecord
		emitSync   int
		wideValues int
		stopped    sql.NullFloat64
		reason     sql.NullString
		emitted    int64
	)
	err := row.Scan(&rec.ID, &rec.RecordingPath, &rec.PortPath, &rec.PortOptions, &rec.NumSignals,
		&rec.SamplesPerRecord, &rec.PeriodMicros, &emitSync, &wideValues, &rec.StartedUnix, &stopped,
		&emitted, &rec.Refills, &reason)
	if err != nil {
		return rec, err
	}
	rec.EmitSync = emitSync == 1
	rec.WideValues = wideValues == 1
	if stopped.Valid {
		rec.StoppedUnix = &stopped.Float64
	}
	rec.PacketsEmitted = uint64(emitted)
	rec.StopReason = reason.String
	return rec, nil
}

// ListSessions returns up to limit sessions, most recent first, without
// their channels.
func (db *DB) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := db.Query(`SELECT `+sessionColumns+`
		FROM replay_sessions
		ORDER BY started_unix DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// GetSession returns one session with its channels.
func (db *DB) GetSession(id string) (*SessionRecord, error) {
	rec, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+`
		FROM replay_sessions WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := db.Query(`SELECT channel_index, label, physical_dimension, samples_per_record,
			accepted, slot, cal_multiplier, cal_offset
		FROM replay_channels
		WHERE session_id = ?
		ORDER BY channel_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ch       ChannelRecord
			accepted int
			slot     sql.NullInt64
			mult     sql.NullFloat64
			offset   sql.NullFloat64
		)
		if err := rows.Scan(&ch.Index, &ch.Label, &ch.PhysicalDimension, &ch.SamplesPerRecord,
			&accepted, &slot, &mult, &offset); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		ch.Accepted = accepted == 1
		if slot.Valid {
			s := int(slot.Int64)
			ch.Slot = &s
		}
		if mult.Valid {
			ch.CalMultiplier = &mult.Float64
		}
		if offset.Valid {
			ch.CalOffset = &offset.Float64
		}
		rec.Channels = append(rec.Channels, ch)
	}
	return &rec, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
