package tableguard

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNoPendingRebuy     = errors.New("no_pending_rebuy")
	ErrRebuyLimitReached  = errors.New("rebuy_limit_reached")
	ErrRebuyAlreadyIssued = errors.New("rebuy_already_pending")
)

// PendingRebuy is a busted player's outstanding stand-or-rebuy decision.
type PendingRebuy struct {
	PlayerID   string    `json:"player_id"`
	IssuedAt   time.Time `json:"issued_at"`
	RebuysUsed int       `json:"rebuys_used"`
	Limit      int       `json:"limit"`
}

// CanRebuy reports whether the player has rebuys left.
func (p PendingRebuy) CanRebuy() bool {
	return p.Limit <= 0 || p.RebuysUsed < p.Limit
}

type PendingRebuys struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[string]map[string]PendingRebuy
	used    map[string]map[string]int
}

func NewPendingRebuys(now func() time.Time) *PendingRebuys {
	if now == nil {
		now = time.Now
	}
	return &PendingRebuys{
		now:     now,
		pending: map[string]map[string]PendingRebuy{},
		used:    map[string]map[string]int{},
	}
}

// Add opens a decision for playerID at tableID with the given rebuy limit
// (zero or less means unlimited).
func (r *PendingRebuys) Add(tableID, playerID string, limit int) (PendingRebuy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[tableID][playerID]; ok {
		return PendingRebuy{}, ErrRebuyAlreadyIssued
	}
	entry := PendingRebuy{
		PlayerID:   playerID,
		IssuedAt:   r.now(),
		RebuysUsed: r.used[tableID][playerID],
		Limit:      limit,
	}
	if r.pending[tableID] == nil {
		r.pending[tableID] = map[string]PendingRebuy{}
	}
	r.pending[tableID][playerID] = entry
	return entry, nil
}

// Get returns the open decision for playerID, if any, without changing it.
func (r *PendingRebuys) Get(tableID, playerID string) (PendingRebuy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.pending[tableID][playerID]
	return entry, ok
}

// Resolve closes the decision. A rebuy counts against the player's limit
// and fails with ErrRebuyLimitReached when none are left, in which case the
// decision stays open.
func (r *PendingRebuys) Resolve(tableID, playerID string, rebuy bool) (PendingRebuy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.pending[tableID][playerID]
	if !ok {
		return PendingRebuy{}, ErrNoPendingRebuy
	}
	if rebuy {
		if !entry.CanRebuy() {
			return entry, ErrRebuyLimitReached
		}
		if r.used[tableID] == nil {
			r.used[tableID] = map[string]int{}
		}
		r.used[tableID][playerID]++
		entry.RebuysUsed = r.used[tableID][playerID]
	}
	delete(r.pending[tableID], playerID)
	if len(r.pending[tableID]) == 0 {
		delete(r.pending, tableID)
	}
	return entry, nil
}

// Pending lists open decisions for tableID ordered by player id.
func (r *PendingRebuys) Pending(tableID string) []PendingRebuy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PendingRebuy, 0, len(r.pending[tableID]))
	for _, e := range r.pending[tableID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

func (r *PendingRebuys) HasPending(tableID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[tableID]) > 0
}

// Clear forgets the table, including rebuy counts.
func (r *PendingRebuys) Clear(tableID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, tableID)
	delete(r.used, tableID)
}
