// Package table holds the live, hierarchical view of one workflow.
//
// A Table has at most one root workflow, an ordered top-level sequence of
// cycle points, and a single id->node lookup spanning cycle points,
// families, tasks and jobs. Families, tasks and jobs are spliced into
// their parent's children at a sorted position (binary search, never a full
// re-sort). Per-cycle-point tallies of task states are recomputed on
// demand, normally once per applied batch.
//
// A Table is not safe for concurrent use. Exactly one goroutine (the
// subscription apply loop) mutates it; readers run on the same goroutine
// or after the loop has stopped.
package table
