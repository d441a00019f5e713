// Package storage provides thread-safe in-memory storage for the results of
// dashboard query cycles.
//
// Every cycle is numbered by its caller with an increasing generation. The
// store only accepts a result that is newer than the one it holds, so a slow
// cycle that finishes after a later one is discarded. A bounded history of
// accepted results is kept and rotated oldest first. Nothing is written to disk.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrStale is returned by Put when a result of the same or a newer generation
// is already stored.
var ErrStale = errors.New("stale generation")

// Validator is implemented by values that can check themselves before being
// stored.
type Validator interface {
	Validate() error
}

// Entry is one stored result.
type Entry[T any] struct {
	Generation uint64    `json:"generation"`
	StoredAt   time.Time `json:"stored_at"`
	Value      T         `json:"value"`
}

// Store provides thread-safe latest-wins storage for values of type T
type Store[T any] struct {
	history []Entry[T] // oldest first; the last entry is the latest
	mu      sync.RWMutex

	// Configuration
	maxHistory int
	now        func() time.Time
}

// New creates a new Store keeping up to maxHistory accepted results
// (at least one).
func New[T any](maxHistory int) *Store[T] {
	if maxHistory < 1 {
		maxHistory = 1
	}
	return &Store[T]{
		history:    make([]Entry[T], 0, maxHistory),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// Put stores value as the latest result if generation is newer than the
// stored one. Values implementing Validator are validated first.
func (s *Store[T]) Put(generation uint64, value T) error {
	if v, ok := any(value).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid result: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.history); n > 0 && generation <= s.history[n-1].Generation {
		return fmt.Errorf("%w: %d, stored %d", ErrStale, generation, s.history[n-1].Generation)
	}

	s.history = append(s.history, Entry[T]{
		Generation: generation,
		StoredAt:   s.now(),
		Value:      value,
	})
	s.rotate()
	return nil
}

// Latest returns the newest stored result. ok is false when nothing has been
// stored yet.
func (s *Store[T]) Latest() (entry Entry[T], ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return Entry[T]{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns the stored results, oldest first
func (s *Store[T]) History() []Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry[T], len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of stored results
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// rotate drops the oldest results beyond maxHistory. Caller holds the lock.
func (s *Store[T]) rotate() {
	if len(s.history) <= s.maxHistory {
		return
	}
	start := len(s.history) - s.maxHistory
	kept := make([]Entry[T], s.maxHistory)
	copy(kept, s.history[start:])
	s.history = kept
}
