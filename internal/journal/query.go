package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"splitguard/internal/decision"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Session is one journaled play session.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	EndReason string     `json:"endReason,omitempty"`
	Decisions int        `json:"decisions"`
}

// Sessions lists sessions newest first. limit <= 0 returns all.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	query := `
	SELECT s.id, s.started_at, s.ended_at, s.end_reason, COUNT(d.id)
	FROM sessions s LEFT JOIN decisions d ON d.session_id = s.id
	GROUP BY s.id
	ORDER BY s.started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
			reason  sql.NullString
		)
		if err := rows.Scan(&s.ID, &started, &ended, &reason, &s.Decisions); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		if ended.Valid {
			t := time.Unix(0, ended.Int64)
			s.EndedAt = &t
		}
		s.EndReason = reason.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// Decisions returns the decisions of one session in the order they were made.
func (j *Journal) Decisions(ctx context.Context, sessionID string) ([]decision.Record, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT at, game_time, controller, action, cause, item, queue, reason
		 FROM decisions WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []decision.Record
	for rows.Next() {
		var (
			rec                 decision.Record
			at                  int64
			action              string
			cause, item, reason sql.NullString
		)
		if err := rows.Scan(&at, &rec.GameTime, &rec.Controller, &action, &cause, &item, &rec.Queue, &reason); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.At = time.Unix(0, at)
		rec.Action = decision.Action(action)
		rec.Cause = decision.Cause(cause.String)
		rec.Item = item.String
		rec.Reason = reason.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
