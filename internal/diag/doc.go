// Package diag defines the diagnostics channel shared by the table, the
// reconciler and the subscription lifecycle.
//
// Failures that must not abort processing (orphan nodes, deltas received
// before the snapshot, per-item apply failures) are reported synchronously
// to a Sink at the point of failure. The Sink is injected at construction;
// there is no process-wide notification store.
//
// Errors raised by the other packages carry a Code so that sinks (the slog
// sink, the journal) can classify a report without knowing concrete types.
package diag
