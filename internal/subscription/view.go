package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/table"
)

// Params are the view parameters that select what to subscribe to.
type Params struct {
	WorkflowID string
}

// Request is handed to Stream.Start.
type Request struct {
	// ID tags every batch the stream delivers for this request.
	ID         string
	WorkflowID string
}

// Observer receives stream callbacks. Every field may be called from any
// goroutine. A stream calls Complete at most once, after its last batch.
type Observer struct {
	Next     func(*deltas.Batch)
	Error    func(error)
	Complete func()
}

// Stream is a source of delta batches.
//
// Start begins delivery for req and returns once the stream is running or
// failed to start. Stop ends delivery; it must be safe to call when the
// stream is not running and more than once.
type Stream interface {
	Start(ctx context.Context, req Request, obs Observer) error
	Stop()
}

// Applied describes one batch handled by the loop.
type Applied struct {
	SubscriptionID string
	Batch          *deltas.Batch
	Stats          deltas.Stats
	Err            error
}

// View owns a table and the stream that feeds it.
//
// Thread-safety model:
//   - Enter, Update, Exit: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Table: read only from the Run goroutine (e.g. in OnApplied) or
//     after Run returned
type View struct {
	stream     Stream
	table      *table.Table
	reconciler *deltas.Reconciler
	queue      *eventQueue
	ids        IDGenerator
	sink       diag.Sink
	logger     *slog.Logger
	onApplied  func(Applied)

	mu      sync.Mutex
	ctx     context.Context
	current string // id of the running subscription, "" when stopped
	params  Params

	stale atomic.Int64
}

// Option configures a View.
type Option func(*View)

// WithSink sets the diagnostics sink shared by the table, the reconciler
// and the view. Defaults to a diag.LogSink.
func WithSink(sink diag.Sink) Option {
	return func(v *View) {
		v.sink = sink
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) {
		v.logger = logger
	}
}

// WithIDGenerator sets the subscription id generator. Defaults to
// UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(v *View) {
		v.ids = gen
	}
}

// WithOnApplied registers a hook run on the loop goroutine after every
// batch, including batches that failed.
func WithOnApplied(fn func(Applied)) Option {
	return func(v *View) {
		v.onApplied = fn
	}
}

// New creates a view over stream with an empty table.
func New(stream Stream, opts ...Option) *View {
	v := &View{
		stream: stream,
		queue:  newEventQueue(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.sink == nil {
		v.sink = diag.LogSink{Logger: v.logger}
	}
	if v.ids == nil {
		v.ids = UUIDv7Generator{}
	}
	v.table = table.New(table.WithSink(v.sink), table.WithLogger(v.logger))
	v.reconciler = deltas.New(deltas.WithSink(v.sink), deltas.WithLogger(v.logger))
	return v
}

// Table returns the view's table. See the thread-safety notes on View.
func (v *View) Table() *table.Table {
	return v.table
}

// SubscriptionID returns the id of the running subscription, or "".
func (v *View) SubscriptionID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// StaleDropped returns how many batches were dropped because their
// subscription was no longer current.
func (v *View) StaleDropped() int64 {
	return v.stale.Load()
}

// Enter starts the stream for params. ctx bounds the stream and any
// restart triggered by Update.
func (v *View) Enter(ctx context.Context, params Params) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.ctx = ctx
	return v.startLocked(params)
}

// Update stops the running stream and schedules a restart with params.
// The loop clears the table before restarting, so no batch of the old
// subscription is ever applied to the new table.
func (v *View) Update(params Params) {
	v.mu.Lock()
	v.stopLocked()
	v.mu.Unlock()

	v.queue.Enqueue(event{typ: eventRestart, params: params})
}

// Exit stops the stream, then schedules the table to be discarded.
func (v *View) Exit() {
	v.mu.Lock()
	v.stopLocked()
	v.mu.Unlock()

	v.queue.Enqueue(event{typ: eventReset})
}

// Close stops accepting events. Run applies what is already queued, stops
// the stream and returns nil.
func (v *View) Close() {
	v.queue.Close()
}

func (v *View) startLocked(params Params) error {
	id := v.ids.Generate()
	v.current = id
	v.params = params

	obs := Observer{
		Next: func(b *deltas.Batch) {
			v.queue.Enqueue(event{typ: eventBatch, subID: id, batch: b})
		},
		Error: func(err error) {
			v.queue.Enqueue(event{typ: eventStreamError, subID: id, err: err})
		},
		Complete: func() {
			v.queue.Enqueue(event{typ: eventComplete, subID: id})
		},
	}

	ctx := v.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := v.stream.Start(ctx, Request{ID: id, WorkflowID: params.WorkflowID}, obs); err != nil {
		v.current = ""
		return fmt.Errorf("start subscription for workflow %q: %w", params.WorkflowID, err)
	}

	v.logger.Info("subscription started", "subscription", id, "workflow", params.WorkflowID)
	return nil
}

func (v *View) stopLocked() {
	if v.current == "" {
		return
	}
	v.stream.Stop()
	v.logger.Info("subscription stopped", "subscription", v.current)
	v.current = ""
}

// Run processes queued events until ctx is cancelled or Close is called.
// Returns ctx.Err() on cancellation and nil after Close.
func (v *View) Run(ctx context.Context) error {
	v.logger.Debug("view loop starting")

	for {
		if e, ok := v.queue.TryDequeue(); ok {
			v.process(e)
			continue
		}

		select {
		case <-ctx.Done():
			v.logger.Debug("view loop stopping: context cancelled")
			v.mu.Lock()
			v.stopLocked()
			v.mu.Unlock()
			v.queue.Close()
			return ctx.Err()

		case <-v.queue.Wait():
			// A closed queue keeps the channel ready; drain then stop.
			if v.queue.Closed() && v.queue.Len() == 0 {
				v.logger.Debug("view loop stopping: closed")
				v.mu.Lock()
				v.stopLocked()
				v.mu.Unlock()
				return nil
			}
		}
	}
}

// process handles one event. Called only from Run.
func (v *View) process(e event) {
	switch e.typ {
	case eventBatch:
		if !v.isCurrent(e.subID) {
			v.stale.Add(1)
			v.logger.Debug("stale batch dropped", "subscription", e.subID, "batch", batchID(e.batch))
			return
		}
		stats, err := v.reconciler.Apply(e.batch, v.table)
		if err != nil {
			v.logApplyError(e, err)
		}
		if v.onApplied != nil {
			v.onApplied(Applied{SubscriptionID: e.subID, Batch: e.batch, Stats: stats, Err: err})
		}

	case eventStreamError:
		if !v.isCurrent(e.subID) {
			return
		}
		err := &StreamError{SubscriptionID: e.subID, Err: e.err}
		v.sink.Report("Subscription error. "+diag.ReloadHint, err, map[string]any{
			"subscription": e.subID,
		})

	case eventComplete:
		if v.isCurrent(e.subID) {
			v.logger.Info("subscription completed by server", "subscription", e.subID)
		}

	case eventRestart:
		v.table.Clear()
		v.mu.Lock()
		err := v.startLocked(e.params)
		v.mu.Unlock()
		if err != nil {
			v.sink.Report("Could not restart the subscription. "+diag.ReloadHint, &StreamError{Err: err}, map[string]any{
				"workflow": e.params.WorkflowID,
			})
		}

	case eventReset:
		v.table.Clear()
	}
}

func (v *View) isCurrent(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return id != "" && id == v.current
}

// logApplyError logs and continues. Sequence and snapshot errors were
// already reported by the reconciler.
func (v *View) logApplyError(e event, err error) {
	level := slog.LevelWarn
	if deltas.IsProtocolError(err) {
		level = slog.LevelError
	}
	v.logger.Log(context.Background(), level, "batch not applied",
		"subscription", e.subID,
		"batch", batchID(e.batch),
		"error", err,
	)
	var sbe *deltas.SnapshotBuildError
	if errors.As(err, &sbe) {
		v.logger.Warn("table discarded after failed snapshot", "subscription", e.subID)
	}
}

func batchID(b *deltas.Batch) string {
	if b == nil {
		return ""
	}
	return b.ID
}
