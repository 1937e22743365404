package ledger

import (
	"errors"
	"testing"

	"holdem-server/internal/game"
)

func table(stacks ...int64) game.TableState {
	st := game.TableState{TableID: "t1"}
	for i, s := range stacks {
		st.Players = append(st.Players, game.Player{ID: string(rune('a' + i)), Seat: i, Stack: s})
	}
	return st
}

func TestVerifyAcceptsChipsMovingWithinTable(t *testing.T) {
	l := New()
	st := table(100, 100)
	if got := l.Snapshot(st); got != 200 {
		t.Fatalf("snapshot total = %d, want 200", got)
	}

	st.Players[0].Stack, st.Players[0].CurrentBet = 80, 20
	if err := l.Verify("t1", st); err != nil {
		t.Fatalf("bet moved chips within the table: %v", err)
	}
	st.Players[0].CurrentBet, st.Pot = 0, 20
	if err := l.Verify("t1", st); err != nil {
		t.Fatalf("collected pot: %v", err)
	}
}

func TestVerifyFlagsLeak(t *testing.T) {
	l := New()
	st := table(100, 100)
	l.Snapshot(st)
	st.Players[1].Stack = 90
	before := violations.Value()
	if err := l.Verify("t1", st); !errors.Is(err, ErrChipsNotConserved) {
		t.Fatalf("expected conservation error, got %v", err)
	}
	if violations.Value() != before+1 {
		t.Fatal("violation not counted")
	}
}

func TestVerifyWithoutRecordSnapshots(t *testing.T) {
	l := New()
	if err := l.Verify("t1", table(50)); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if want, ok := l.Expected("t1"); !ok || want != 50 {
		t.Fatalf("expected 50 recorded, got %d %v", want, ok)
	}
	l.Forget("t1")
	if _, ok := l.Expected("t1"); ok {
		t.Fatal("forget should drop the record")
	}
}
