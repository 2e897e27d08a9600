package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/framebridge/internal/core"
)

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// ErrSessionNotFound is returned when a session ID is not in the journal.
var ErrSessionNotFound = errors.New("journal: session not found")

// Session is one recorded run.
type Session struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedSeq int64  `json:"created_seq"`
}

// Step is one recorded call into the bridge.
type Step struct {
	ID        string
	SessionID string
	Seq       int64
	Call      string
	Payload   json.RawMessage
	Outcome   string
}

// BeginSession creates a session named name, stamped with seq.
func (j *Journal) BeginSession(ctx context.Context, name string, seq int64) (Session, error) {
	id, err := j.ids.Generate()
	if err != nil {
		return Session{}, fmt.Errorf("begin session: generate id: %w", err)
	}
	return j.BeginSessionWithID(ctx, id, name, seq)
}

// BeginSessionWithID creates a session with a caller-chosen ID.
func (j *Journal) BeginSessionWithID(ctx context.Context, id, name string, seq int64) (Session, error) {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, created_seq)
		VALUES (?, ?, ?)
	`, id, name, seq)
	if err != nil {
		return Session{}, fmt.Errorf("begin session: %w", err)
	}

	j.logger.Debug("session started", "session", id, "name", name)
	return Session{ID: id, Name: name, CreatedSeq: seq}, nil
}

// AppendStep records a step and returns its content-addressed ID.
// payload is serialized to canonical JSON. Appending an identical step again
// is a no-op (ON CONFLICT(id) DO NOTHING).
func (j *Journal) AppendStep(ctx context.Context, sessionID string, seq int64, call string, payload map[string]any, outcome string) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := core.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("append step: %w", err)
	}
	id, err := core.StepID(sessionID, seq, call, data)
	if err != nil {
		return "", fmt.Errorf("append step: %w", err)
	}
	if outcome == "" {
		outcome = OutcomeOK
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO steps (id, session_id, seq, call, payload, outcome)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, sessionID, seq, call, string(data), outcome)
	if err != nil {
		return "", fmt.Errorf("append step: %w", err)
	}
	return id, nil
}

// ReadSession returns a session and its steps ordered by seq.
// Returns ErrSessionNotFound for an unknown session.
func (j *Journal) ReadSession(ctx context.Context, sessionID string) (Session, []Step, error) {
	var s Session
	err := j.db.QueryRowContext(ctx, `
		SELECT id, name, created_seq FROM sessions WHERE id = ?
	`, sessionID).Scan(&s.ID, &s.Name, &s.CreatedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return Session{}, nil, fmt.Errorf("read session: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, seq, call, payload, outcome
		FROM steps
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return Session{}, nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var st Step
		var payload string
		if err := rows.Scan(&st.ID, &st.SessionID, &st.Seq, &st.Call, &payload, &st.Outcome); err != nil {
			return Session{}, nil, fmt.Errorf("scan step: %w", err)
		}
		st.Payload = json.RawMessage(payload)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return Session{}, nil, fmt.Errorf("iterate steps: %w", err)
	}
	return s, steps, nil
}

// ListSessions returns every session in creation order.
func (j *Journal) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, name, created_seq FROM sessions ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
func (j *Journal) LatestSession(ctx context.Context) (Session, error) {
	var s Session
	err := j.db.QueryRowContext(ctx, `
		SELECT id, name, created_seq FROM sessions ORDER BY rowid DESC LIMIT 1
	`).Scan(&s.ID, &s.Name, &s.CreatedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("latest session: %w", err)
	}
	return s, nil
}
