package dashboard

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/storage"
)

// Computer runs a query cycle. *Service implements it.
type Computer interface {
	Compute(ctx context.Context, params QueryParameters) (*Result, error)
}

// Refresher numbers query cycles and stores each result only if no newer
// cycle has stored one first.
type Refresher struct {
	computer   Computer
	store      *storage.Store[*Result]
	generation atomic.Uint64
}

// NewRefresher creates a new Refresher
func NewRefresher(computer Computer, store *storage.Store[*Result]) *Refresher {
	return &Refresher{computer: computer, store: store}
}

// Refresh runs a cycle and stores its result. When a cycle started later has
// already stored its result, the computed result is returned with
// ErrSuperseded and is not stored. A canceled cycle stores nothing.
func (r *Refresher) Refresh(ctx context.Context, params QueryParameters) (*Result, error) {
	gen := r.generation.Add(1)

	result, err := r.computer.Compute(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		logger.Debug("Discarding cycle %d: %v", gen, err)
		return nil, err
	}

	if err := r.store.Put(gen, result); err != nil {
		if errors.Is(err, storage.ErrStale) {
			logger.Debug("Discarding cycle %d (%s): %v", gen, result.CycleID, err)
			return result, ErrSuperseded
		}
		return nil, &AggregateError{Stage: "store", Err: err}
	}
	return result, nil
}

// Latest returns the most recently stored result.
func (r *Refresher) Latest() (*Result, bool) {
	entry, ok := r.store.Latest()
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Store returns the underlying result store.
func (r *Refresher) Store() *storage.Store[*Result] {
	return r.store
}
