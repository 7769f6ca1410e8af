package statestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryanwahyu/palmview/internal/domain/property"
	domain "github.com/bryanwahyu/palmview/internal/domain/session"
)

func TestMemoryGetUnknownIsIdle(t *testing.T) {
	m := NewMemory(time.Minute)
	s, err := m.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Phase() != domain.PhaseIdle {
		t.Errorf("phase: got %s, want idle", s.Phase())
	}
}

func TestMemoryUpdateNoChange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	_, _ = m.Update(ctx, "a", func(s *domain.ViewState) error {
		s.Begin("https://example.com", time.Now())
		return nil
	})

	got, err := m.Update(ctx, "a", func(s *domain.ViewState) error {
		s.URL = "changed"
		return domain.ErrNoChange
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.URL != "https://example.com" {
		t.Errorf("ErrNoChange must not persist edits, got url %q", got.URL)
	}
}

func TestMemoryUpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	boom := errors.New("boom")
	if _, err := m.Update(ctx, "a", func(s *domain.ViewState) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	if m.Len() != 0 {
		t.Errorf("failed update stored a session")
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	_, _ = m.Update(ctx, "a", func(s *domain.ViewState) error {
		s.Succeed(property.Details{Amenities: []string{"Pool"}}, time.Now())
		return nil
	})
	s, _ := m.Get(ctx, "a")
	s.Data.Amenities[0] = "Gym"
	again, _ := m.Get(ctx, "a")
	if again.Data.Amenities[0] != "Pool" {
		t.Error("Get leaked a reference to the stored state")
	}
}

func TestMemoryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Update(ctx, "a", func(s *domain.ViewState) error {
				s.Seq++
				return nil
			})
		}()
	}
	wg.Wait()
	s, _ := m.Get(ctx, "a")
	if s.Seq != 50 {
		t.Errorf("seq: got %d, want 50", s.Seq)
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, _ = m.Update(ctx, "idle", func(s *domain.ViewState) error { s.Fail("x", clock); return nil })
	_, _ = m.Update(ctx, "busy", func(s *domain.ViewState) error { s.Begin("u", clock); return nil })

	clock = clock.Add(2 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}
