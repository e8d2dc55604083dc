package diag

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// ReloadHint is appended to user-facing messages when the table can no
// longer be trusted and only a fresh snapshot recovers it.
const ReloadHint = "Please reload to retrieve the full workflow state"

// Code classifies a reported error.
type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeMalformedRecord Code = "MALFORMED_RECORD"
	CodeOrphanNode      Code = "ORPHAN_NODE"
	CodeSequence        Code = "SEQUENCE"
	CodeSnapshotBuild   Code = "SNAPSHOT_BUILD"
	CodeProtocol        Code = "PROTOCOL"
	CodeApply           Code = "APPLY"
	CodeTransport       Code = "TRANSPORT"
)

// Coded is implemented by errors that know their diagnostic code.
type Coded interface {
	DiagCode() Code
}

// CodeOf returns the code of the first Coded error in err's chain.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.DiagCode()
	}
	return CodeUnknown
}

// Sink receives (message, error, context) triples.
// Implementations are invoked synchronously and must not block.
type Sink interface {
	Report(message string, err error, context map[string]any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(message string, err error, context map[string]any)

// Report calls f.
func (f SinkFunc) Report(message string, err error, context map[string]any) {
	f(message, err, context)
}

// Discard drops every report.
var Discard Sink = SinkFunc(func(string, error, map[string]any) {})

// LogSink forwards reports to slog at Error level.
type LogSink struct {
	Logger *slog.Logger
}

// Report logs the message with the error code, the error and the context
// keys in sorted order.
func (s LogSink) Report(message string, err error, context map[string]any) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"code", string(CodeOf(err)), "error", err}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, context[k])
	}
	logger.Error(message, attrs...)
}

// Multi fans a report out to every sink in order.
type Multi []Sink

// Report forwards to each non-nil sink.
func (m Multi) Report(message string, err error, context map[string]any) {
	for _, s := range m {
		if s != nil {
			s.Report(message, err, context)
		}
	}
}

// Report is one recorded diagnostic.
type Report struct {
	Message string
	Err     error
	Context map[string]any
}

// Code returns the diagnostic code of the report's error.
func (r Report) Code() Code {
	return CodeOf(r.Err)
}

// Recorder keeps every report in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

// Report records the triple.
func (r *Recorder) Report(message string, err error, context map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Message: message, Err: err, Context: context})
}

// Reports returns a copy of the recorded reports in arrival order.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Len returns the number of recorded reports.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// Count returns how many recorded reports carry the given code.
func (r *Recorder) Count(code Code) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rep := range r.reports {
		if rep.Code() == code {
			n++
		}
	}
	return n
}

// Reset forgets every recorded report.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = nil
}
