package statestore

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	domain "github.com/bryanwahyu/palmview/internal/domain/session"
)

type memEntry struct {
	state    domain.ViewState
	lastSeen time.Time
}

// Memory keeps view states in process. Entries idle longer than ttl are
// dropped by Sweep.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]*memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, id string) (domain.ViewState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return domain.ViewState{}, nil
	}
	e.lastSeen = m.now()
	return e.state.Clone(), nil
}

func (m *Memory) Update(_ context.Context, id string, fn domain.UpdateFunc) (domain.ViewState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current domain.ViewState
	if e, ok := m.entries[id]; ok {
		current = e.state.Clone()
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		if errors.Is(err, domain.ErrNoChange) {
			return current, nil
		}
		return domain.ViewState{}, err
	}
	m.entries[id] = &memEntry{state: next.Clone(), lastSeen: m.now()}
	return next, nil
}

// Sweep removes sessions not touched within ttl and returns how many were removed.
// Loading sessions are kept so their settlement still has a target.
func (m *Memory) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if e.state.IsLoading {
			continue
		}
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("session sweep removed=%d remaining=%d", n, m.Len())
			}
		}
	}
}
