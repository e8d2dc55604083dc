package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/diag"
)

// Session is one watcher run recorded in a journal. A Session is a
// diag.Sink: reports sent to it are stored under the session.
type Session struct {
	ID         string
	WorkflowID string
	Seq        int64

	j *Journal
}

// Begin starts a new session for workflowID with a UUIDv7 id.
func (j *Journal) Begin(ctx context.Context, workflowID string) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	s := &Session{ID: id.String(), WorkflowID: workflowID, Seq: j.clock.Next(), j: j}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, workflow_id, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, s.ID, s.WorkflowID, s.Seq)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return s, nil
}

// RecordBatch stores batch together with the outcome of applying it.
// applyErr may be nil.
func (s *Session) RecordBatch(ctx context.Context, subscriptionID string, batch *deltas.Batch, stats deltas.Stats, applyErr error) error {
	if batch == nil {
		return fmt.Errorf("record batch: nil batch")
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("record batch %s: %w", batch.ID, err)
	}
	errText := ""
	if applyErr != nil {
		errText = applyErr.Error()
	}

	_, err = s.j.db.ExecContext(ctx, `
		INSERT INTO batches
		(seq, session_id, subscription_id, batch_id, payload, applied, failed, snapshot, shutdown, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		s.j.clock.Next(),
		s.ID,
		subscriptionID,
		batch.ID,
		string(payload),
		stats.Applied,
		stats.Failed,
		stats.Snapshot,
		stats.Shutdown,
		errText,
	)
	if err != nil {
		return fmt.Errorf("record batch %s: %w", batch.ID, err)
	}
	return nil
}

// Report stores a diagnostic. Storage failures are logged, never returned.
func (s *Session) Report(message string, err error, context map[string]any) {
	if werr := s.writeReport(message, err, context); werr != nil {
		s.j.logger.Error("journal: report not stored", "session", s.ID, "message", message, "error", werr)
	}
}

func (s *Session) writeReport(message string, err error, ctxMap map[string]any) error {
	contextJSON, merr := marshalContext(ctxMap)
	if merr != nil {
		return merr
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}

	_, execErr := s.j.db.ExecContext(context.Background(), `
		INSERT INTO reports (seq, session_id, message, code, error, context)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, s.j.clock.Next(), s.ID, message, string(diag.CodeOf(err)), errText, contextJSON)
	return execErr
}

// marshalContext encodes a report context. Values that are not JSON
// encodable are stored by their fmt representation.
func marshalContext(ctxMap map[string]any) (string, error) {
	if len(ctxMap) == 0 {
		return "{}", nil
	}
	safe := make(map[string]any, len(ctxMap))
	for k, v := range ctxMap {
		if _, err := json.Marshal(v); err != nil {
			safe[k] = fmt.Sprint(v)
			continue
		}
		safe[k] = v
	}
	data, err := json.Marshal(safe)
	if err != nil {
		return "", fmt.Errorf("marshal report context: %w", err)
	}
	return string(data), nil
}

var _ diag.Sink = (*Session)(nil)
