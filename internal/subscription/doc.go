// Package subscription ties a delta stream to a table for the lifetime of
// a workflow view.
//
// A View follows the enter / update / exit protocol of a page that shows
// one workflow:
//
//   - Enter starts a stream under a fresh subscription id.
//   - Update stops the stream, then the loop clears the table and restarts
//     the stream with new parameters.
//   - Exit stops the stream, then the loop discards the table.
//
// All table mutations happen on the goroutine running View.Run. Stream
// callbacks may fire on any goroutine; they only enqueue. Batches tagged
// with a subscription id that is no longer current are dropped, so a
// stream that delivers after Stop cannot touch a cleared table.
package subscription
