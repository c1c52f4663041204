// ABOUTME: Turn log persistence for SQLite
// ABOUTME: Append-only audit trail of answered queries grouped by session
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harper/wellrag/internal/models"
)

// TurnRecord is a logged turn with its validation outcome
type TurnRecord struct {
	ID         string                  `json:"id" yaml:"id"`
	SessionID  string                  `json:"session_id" yaml:"session_id"`
	Turn       models.ConversationTurn `json:"turn" yaml:"turn"`
	Accepted   bool                    `json:"accepted" yaml:"accepted"`
	Confidence float64                 `json:"confidence" yaml:"confidence"`
}

// SessionSummary describes one logged session
type SessionSummary struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	Turns     int       `json:"turns" yaml:"turns"`
	LastAt    time.Time `json:"last_at" yaml:"last_at"`
}

// TurnLog handles turn persistence
type TurnLog struct {
	db *DB
}

// NewTurnLog creates a new TurnLog
func NewTurnLog(db *DB) *TurnLog {
	return &TurnLog{db: db}
}

// Append logs a turn and returns the stored record
func (l *TurnLog) Append(ctx context.Context, sessionID string, turn models.ConversationTurn, accepted bool, confidence float64) (TurnRecord, error) {
	if sessionID == "" {
		return TurnRecord{}, fmt.Errorf("session id cannot be empty")
	}
	wellsJSON, err := json.Marshal(turn.CitedWells)
	if err != nil {
		return TurnRecord{}, err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	rec := TurnRecord{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Turn:       turn,
		Accepted:   accepted,
		Confidence: confidence,
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, turn_index, query, answer, mode, cited_wells, accepted, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, sessionID, turn.TurnIndex, turn.Query, turn.Answer, string(turn.Mode),
		string(wellsJSON), accepted, confidence, turn.Timestamp)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("failed to log turn: %w", err)
	}
	return rec, nil
}

// RecordTurn logs a turn with its validation verdict
func (l *TurnLog) RecordTurn(ctx context.Context, sessionID string, turn models.ConversationTurn, verdict models.ValidationVerdict) error {
	_, err := l.Append(ctx, sessionID, turn, verdict.Accepted, verdict.FinalConfidence)
	return err
}

// List returns a session's turns oldest first. An empty session ID lists every session.
// A positive limit keeps only the most recent turns.
func (l *TurnLog) List(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	query := `SELECT id, session_id, turn_index, query, answer, mode, cited_wells, accepted, confidence, created_at FROM turns`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, turn_index DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []TurnRecord
	for rows.Next() {
		var (
			rec       TurnRecord
			answer    sql.NullString
			mode      sql.NullString
			wellsJSON sql.NullString
			accepted  sql.NullBool
			conf      sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Turn.TurnIndex, &rec.Turn.Query, &answer, &mode,
			&wellsJSON, &accepted, &conf, &rec.Turn.Timestamp); err != nil {
			return nil, err
		}
		rec.Turn.Answer = answer.String
		rec.Turn.Mode = models.QueryMode(mode.String)
		rec.Accepted = accepted.Bool
		rec.Confidence = conf.Float64
		if wellsJSON.Valid && wellsJSON.String != "" {
			if err := json.Unmarshal([]byte(wellsJSON.String), &rec.Turn.CitedWells); err != nil {
				rec.Turn.CitedWells = nil
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Sessions summarizes logged sessions, most recent first
func (l *TurnLog) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(created_at)
		FROM turns
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SessionSummary
	for rows.Next() {
		var (
			s    SessionSummary
			last string
		)
		if err := rows.Scan(&s.SessionID, &s.Turns, &last); err != nil {
			return nil, err
		}
		s.LastAt = parseTimestamp(last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes every logged turn of a session
func (l *TurnLog) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// parseTimestamp handles the text forms the driver produces for aggregated DATETIME columns
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
