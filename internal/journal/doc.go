// Package journal records what a view received so it can be replayed.
//
// A journal is a SQLite database with three tables: sessions, batches and
// reports. A session is one run of a watcher against one workflow. Every
// batch handed to the reconciler is stored verbatim with the outcome of
// applying it, and every diagnostic reported during the session is stored
// next to it. All rows share one logical sequence, so reading by seq gives
// the interleaving the watcher saw: the reports raised while applying a
// batch precede the batch row itself.
//
// Replay feeds the stored batches of a session through a reconciler onto a
// fresh table. The reconciler should not report into the session being
// replayed. Because reconciliation is deterministic, the replayed table
// has the same content as the live one had at the end of the session.
//
// The database runs in WAL mode with a single writer connection. The
// default DSN ":memory:" keeps everything in process.
package journal
