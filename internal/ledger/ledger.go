// Package ledger audits chip conservation per table. The expected total is
// fixed when chips legitimately enter or leave a table (a hand starts, a
// player sits, rebuys or leaves) and every other mutation must preserve it.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"holdem-server/internal/game"
)

var ErrChipsNotConserved = errors.New("chips_not_conserved")

type Ledger struct {
	mu     sync.Mutex
	totals map[string]int64
}

func New() *Ledger {
	return &Ledger{totals: map[string]int64{}}
}

// Snapshot records st's chip total as the table's expected total.
func (l *Ledger) Snapshot(st game.TableState) int64 {
	total := st.ChipTotal()
	l.mu.Lock()
	l.totals[st.TableID] = total
	l.mu.Unlock()
	return total
}

// Verify compares st against the recorded total. A table with no record is
// snapshotted instead. Violations are logged and counted as well as
// returned.
func (l *Ledger) Verify(tableID string, st game.TableState) error {
	l.mu.Lock()
	want, ok := l.totals[tableID]
	if !ok {
		l.totals[tableID] = st.ChipTotal()
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	got := st.ChipTotal()
	if got == want {
		return nil
	}
	violations.Add(1)
	log.Error().
		Str("table_id", tableID).
		Str("hand_id", st.HandID).
		Str("stage", string(st.Stage)).
		Int64("expected", want).
		Int64("actual", got).
		Msg("chip total changed")
	return fmt.Errorf("%w: expected %d, got %d", ErrChipsNotConserved, want, got)
}

// Expected returns the recorded total for tableID.
func (l *Ledger) Expected(tableID string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.totals[tableID]
	return v, ok
}

func (l *Ledger) Forget(tableID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.totals, tableID)
}
