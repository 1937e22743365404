// Package tableguard holds the advisory per-table guards that keep two
// requests from driving the same hand transition at once. Guards never
// block: a caller that loses the race gets an immediate answer.
package tableguard

import (
	"sync"
	"time"

	"holdem-server/internal/game"
)

// Set is a keyed try-lock.
type Set struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewSet() *Set {
	return &Set{held: map[string]struct{}{}}
}

// Acquire takes the guard for tableID and reports whether it was free.
func (s *Set) Acquire(tableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[tableID]; ok {
		contention.Add(1)
		return false
	}
	s.held[tableID] = struct{}{}
	return true
}

func (s *Set) Release(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, tableID)
}

func (s *Set) Held(tableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[tableID]
	return ok
}

const DefaultDuplicateWindow = 4 * time.Second

type lastAdvance struct {
	stage game.Stage
	at    time.Time
}

// AdvanceGuard rejects a street advance that repeats the previous one for
// the same table within the window.
type AdvanceGuard struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[string]lastAdvance
}

func NewAdvanceGuard(window time.Duration, now func() time.Time) *AdvanceGuard {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	if now == nil {
		now = time.Now
	}
	return &AdvanceGuard{window: window, now: now, last: map[string]lastAdvance{}}
}

// Begin records an advance of tableID to target. It returns false when the
// same target was recorded less than the window ago.
func (g *AdvanceGuard) Begin(tableID string, target game.Stage) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if prev, ok := g.last[tableID]; ok && prev.stage == target && now.Sub(prev.at) < g.window {
		duplicatesRejected.Add(1)
		return false
	}
	g.last[tableID] = lastAdvance{stage: target, at: now}
	return true
}

// Forget drops the record for tableID, e.g. when a new hand starts.
func (g *AdvanceGuard) Forget(tableID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, tableID)
}

// Guards bundles the registries a table runtime consults.
type Guards struct {
	HandStart *Set
	Advance   *AdvanceGuard
	Rebuys    *PendingRebuys
}

func New(window time.Duration, now func() time.Time) *Guards {
	return &Guards{
		HandStart: NewSet(),
		Advance:   NewAdvanceGuard(window, now),
		Rebuys:    NewPendingRebuys(now),
	}
}

// Forget clears every registry's state for tableID.
func (g *Guards) Forget(tableID string) {
	g.HandStart.Release(tableID)
	g.Advance.Forget(tableID)
	g.Rebuys.Clear(tableID)
}
