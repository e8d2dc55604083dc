// Package deltas applies delta batches from the deltas subscription to a
// table.
//
// The Reconciler is a two-state machine over the table:
//
//	Empty      -- batch with added.workflow --> Populated (snapshot)
//	Empty      -- any other batch           --> Empty (SequenceError)
//	Populated  -- batch                     --> Populated (prune, add, update)
//	any        -- shutdown                  --> Empty
//
// Incremental batches isolate failures per item: a malformed record, a
// kind mismatch or a panic while applying one item is reported to the
// diagnostics sink and the remaining items are still applied. A snapshot
// is all or nothing.
package deltas
