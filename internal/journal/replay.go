package journal

import (
	"context"
	"fmt"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/table"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Batches int
	Applied int
	Failed  int
	// Rejected counts batches Apply returned an error for.
	Rejected int
}

// Replay applies the stored batches of the session to tbl in seq order,
// the way the live loop did: rejected batches are counted and skipped.
// tbl should be fresh; r carries the sink that receives replayed
// diagnostics.
func (s *Session) Replay(ctx context.Context, r *deltas.Reconciler, tbl *table.Table) (ReplayResult, error) {
	entries, err := s.Batches(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay session %s: %w", s.ID, err)
	}

	var res ReplayResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stats, err := r.Apply(e.Batch, tbl)
		res.Batches++
		res.Applied += stats.Applied
		res.Failed += stats.Failed
		if err != nil {
			res.Rejected++
		}
	}
	return res, nil
}
