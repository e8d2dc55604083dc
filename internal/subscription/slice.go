package subscription

import (
	"context"
	"sync"

	"github.com/roach88/cylcview/internal/deltas"
)

// SliceStream delivers a fixed list of batches. Used to apply recorded or
// file-based batches through the same loop as a live stream.
//
// Start delivers every batch synchronously, then calls Complete. Stop is a
// no-op beyond marking the stream stopped.
type SliceStream struct {
	mu      sync.Mutex
	batches []*deltas.Batch
	running bool
	starts  int
}

// NewSliceStream creates a stream over batches.
func NewSliceStream(batches ...*deltas.Batch) *SliceStream {
	return &SliceStream{batches: batches}
}

// Start implements Stream.
func (s *SliceStream) Start(ctx context.Context, _ Request, obs Observer) error {
	s.mu.Lock()
	s.running = true
	s.starts++
	batches := s.batches
	s.mu.Unlock()

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if obs.Next != nil {
			obs.Next(b)
		}
	}
	if obs.Complete != nil {
		obs.Complete()
	}
	return nil
}

// Stop implements Stream.
func (s *SliceStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Running reports whether Start was called without a later Stop.
func (s *SliceStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Starts returns how many times Start was called.
func (s *SliceStream) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}
