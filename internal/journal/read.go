package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/diag"
)

// BatchEntry is a stored batch.
type BatchEntry struct {
	Seq            int64
	SessionID      string
	SubscriptionID string
	Batch          *deltas.Batch
	Stats          deltas.Stats
	Error          string
}

// ReportEntry is a stored diagnostic.
type ReportEntry struct {
	Seq       int64
	SessionID string
	Message   string
	Code      diag.Code
	Error     string
	Context   map[string]any
}

// Sessions returns all sessions ordered by seq.
func (j *Journal) Sessions(ctx context.Context) ([]*Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, workflow_id, seq FROM sessions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		s := &Session{j: j}
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.Seq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Session returns the session with id, or the latest session when id is
// empty.
func (j *Journal) Session(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, workflow_id, seq FROM sessions WHERE id = ?`
	args := []any{id}
	if id == "" {
		query = `SELECT id, workflow_id, seq FROM sessions ORDER BY seq DESC LIMIT 1`
		args = nil
	}

	s := &Session{j: j}
	err := j.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.WorkflowID, &s.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &SessionNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// Batches returns the batches of the session ordered by seq.
func (s *Session) Batches(ctx context.Context) ([]BatchEntry, error) {
	rows, err := s.j.db.QueryContext(ctx, `
		SELECT seq, session_id, subscription_id, payload, applied, failed, snapshot, shutdown, error
		FROM batches
		WHERE session_id = ?
		ORDER BY seq ASC
	`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	entries := []BatchEntry{}
	for rows.Next() {
		var (
			e       BatchEntry
			payload string
		)
		if err := rows.Scan(&e.Seq, &e.SessionID, &e.SubscriptionID, &payload,
			&e.Stats.Applied, &e.Stats.Failed, &e.Stats.Snapshot, &e.Stats.Shutdown, &e.Error); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		e.Batch = &deltas.Batch{}
		if err := json.Unmarshal([]byte(payload), e.Batch); err != nil {
			return nil, fmt.Errorf("decode batch at seq %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return entries, nil
}

// Reports returns the diagnostics of the session ordered by seq.
func (s *Session) Reports(ctx context.Context) ([]ReportEntry, error) {
	rows, err := s.j.db.QueryContext(ctx, `
		SELECT seq, session_id, message, code, error, context
		FROM reports
		WHERE session_id = ?
		ORDER BY seq ASC
	`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	entries := []ReportEntry{}
	for rows.Next() {
		var (
			e           ReportEntry
			code        string
			contextJSON string
		)
		if err := rows.Scan(&e.Seq, &e.SessionID, &e.Message, &code, &e.Error, &contextJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		e.Code = diag.Code(code)
		if err := json.Unmarshal([]byte(contextJSON), &e.Context); err != nil {
			return nil, fmt.Errorf("decode report context at seq %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return entries, nil
}
