package storage

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type result struct {
	Name  string
	Valid bool
}

func (r result) Validate() error {
	if !r.Valid {
		return errors.New("invalid")
	}
	return nil
}

func TestStore_PutAndLatest(t *testing.T) {
	s := New[string](3)

	if _, ok := s.Latest(); ok {
		t.Fatal("Expected empty store")
	}

	if err := s.Put(1, "first"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(2, "second"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	latest, ok := s.Latest()
	if !ok {
		t.Fatal("Expected a stored result")
	}
	if latest.Value != "second" || latest.Generation != 2 {
		t.Errorf("Expected generation 2 'second', got %d %q", latest.Generation, latest.Value)
	}
}

func TestStore_RejectsStaleGeneration(t *testing.T) {
	s := New[string](3)

	if err := s.Put(5, "newer"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	tests := []struct {
		name string
		gen  uint64
	}{
		{"older", 4},
		{"same", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Put(tt.gen, "late")
			if !errors.Is(err, ErrStale) {
				t.Errorf("Expected ErrStale, got %v", err)
			}
		})
	}

	latest, _ := s.Latest()
	if latest.Value != "newer" {
		t.Errorf("Expected stale puts to be discarded, latest is %q", latest.Value)
	}
}

func TestStore_Validates(t *testing.T) {
	s := New[result](2)

	if err := s.Put(1, result{Name: "bad"}); err == nil {
		t.Error("Expected validation error")
	}
	if s.Len() != 0 {
		t.Errorf("Expected invalid result not to be stored, len=%d", s.Len())
	}
	if err := s.Put(1, result{Name: "good", Valid: true}); err != nil {
		t.Errorf("Put failed: %v", err)
	}
}

func TestStore_RotatesHistory(t *testing.T) {
	s := New[int](2)
	for gen := uint64(1); gen <= 5; gen++ {
		if err := s.Put(gen, int(gen)*10); err != nil {
			t.Fatalf("Put %d failed: %v", gen, err)
		}
	}

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("Expected 2 results after rotation, got %d", len(history))
	}
	if history[0].Generation != 4 || history[1].Generation != 5 {
		t.Errorf("Expected generations 4,5, got %d,%d", history[0].Generation, history[1].Generation)
	}

	// History is a copy
	history[0].Value = -1
	if s.History()[0].Value != 40 {
		t.Error("Expected History to return a copy")
	}
}

func TestStore_StoredAt(t *testing.T) {
	fixed := time.Date(2024, 3, 14, 13, 5, 9, 0, time.UTC)
	s := New[int](1)
	s.now = func() time.Time { return fixed }

	_ = s.Put(1, 1)
	latest, _ := s.Latest()
	if !latest.StoredAt.Equal(fixed) {
		t.Errorf("Expected StoredAt %v, got %v", fixed, latest.StoredAt)
	}
}

func TestStore_ConcurrentPutsKeepNewest(t *testing.T) {
	s := New[int](10)

	var wg sync.WaitGroup
	for gen := 1; gen <= 50; gen++ {
		wg.Add(1)
		go func(gen int) {
			defer wg.Done()
			_ = s.Put(uint64(gen), gen)
		}(gen)
	}
	wg.Wait()

	latest, ok := s.Latest()
	if !ok || latest.Generation != 50 {
		t.Errorf("Expected generation 50 to win, got %d", latest.Generation)
	}

	history := s.History()
	for i := 1; i < len(history); i++ {
		if history[i].Generation <= history[i-1].Generation {
			t.Fatalf("Expected increasing generations, got %d after %d", history[i].Generation, history[i-1].Generation)
		}
	}
}
