package lifecycle

import (
	"errors"
	"reflect"
	"testing"

	"holdem-server/internal/game"
)

type fakeTable struct {
	st game.TableState
}

func (f *fakeTable) State() game.TableState        { return f.st.Clone() }
func (f *fakeTable) ResetState(st game.TableState) { f.st = st.Clone() }

func settledTable() *fakeTable {
	return &fakeTable{st: game.TableState{
		TableID:    "t1",
		CurrentBet: 20,
		Players: []game.Player{
			{ID: "a", Seat: 0, Stack: 100, CurrentBet: 20, HasActed: true},
			{ID: "b", Seat: 1, Stack: 0, CurrentBet: 15, IsAllIn: true},
			{ID: "c", Seat: 2, Stack: 50, IsFolded: true},
		},
	}}
}

func TestTransitionTotality(t *testing.T) {
	for _, from := range States {
		for _, a := range Actions {
			m := New(settledTable())
			m.state = from
			err := m.Transition(a)

			want := destination(from, a)
			ok := a == ActionError || (want != "" && Allowed(from, want))
			if ok {
				if err != nil {
					t.Fatalf("%s --%s--> expected success, got %v", from, a, err)
				}
				if m.State() != want {
					t.Fatalf("%s --%s--> landed in %s, want %s", from, a, m.State(), want)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s --%s--> expected invalid transition, got %v", from, a, err)
			}
			if m.State() != StateError {
				t.Fatalf("%s --%s--> should fail into error, got %s", from, a, m.State())
			}
			h := m.History()
			if len(h) != 1 || h[0].Error == "" || h[0].To != StateError {
				t.Fatalf("rejected transition not recorded: %+v", h)
			}
		}
	}
}

func TestFullHandCycle(t *testing.T) {
	table := settledTable()
	m := New(table)
	steps := []Action{
		ActionInitialize, ActionPlayersReady, ActionStart, ActionDeal,
		ActionBeginBetting, ActionAdvance, ActionAdvance, ActionAdvance,
		ActionAdvance, ActionFinish, ActionPlayersReady,
	}
	for _, a := range steps {
		if err := m.Transition(a); err != nil {
			t.Fatalf("%s from %s: %v", a, m.State(), err)
		}
	}
	if m.State() != StateWaitingForPlayers {
		t.Fatalf("expected waitingForPlayers, got %s", m.State())
	}
	if len(m.History()) != len(steps) {
		t.Fatalf("history has %d entries", len(m.History()))
	}
	points := m.RecoveryPoints()
	if len(points) != DefaultRecoveryLimit {
		t.Fatalf("expected %d recovery points, got %d", DefaultRecoveryLimit, len(points))
	}
	wantStates := []State{StatePreFlop, StateFlop, StateTurn, StateRiver, StateShowdown}
	for i, p := range points {
		if p.State != wantStates[i] || p.Snapshot == nil {
			t.Fatalf("point %d: %+v", i, p)
		}
	}
}

func TestStreetAdvanceIsGated(t *testing.T) {
	table := settledTable()
	m := New(table)
	m.state = StateFlop

	table.st.Players[0].HasActed = false
	if m.Can(ActionAdvance) {
		t.Fatal("advance should wait for players to act")
	}
	table.st.Players[0].HasActed = true
	table.st.Players[0].CurrentBet = 10
	if err := m.Transition(ActionAdvance); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected unmatched bets to block, got %v", err)
	}
	if m.State() != StateError {
		t.Fatalf("expected error state, got %s", m.State())
	}

	if err := m.Transition(ActionInitialize); err != nil {
		t.Fatalf("initialize out of error: %v", err)
	}
}

func TestShowdownAllowedWhenOnePlayerLeft(t *testing.T) {
	table := settledTable()
	table.st.Players[1].IsFolded = true
	table.st.Players[0].HasActed = false
	table.st.Players[0].CurrentBet = 0
	m := New(table)
	m.state = StatePreFlop
	if err := m.Transition(ActionShowdown); err != nil {
		t.Fatalf("showdown with one player left: %v", err)
	}
}

func TestRecoveryPointsAreBounded(t *testing.T) {
	m := New(settledTable(), WithRecoveryLimit(2))
	m.state = StateDealingCards
	for _, a := range []Action{ActionBeginBetting, ActionAdvance, ActionAdvance} {
		if err := m.Transition(a); err != nil {
			t.Fatalf("%s: %v", a, err)
		}
	}
	points := m.RecoveryPoints()
	if len(points) != 2 || points[0].State != StateFlop || points[1].State != StateTurn {
		t.Fatalf("expected the two newest points, got %+v", points)
	}
}

func TestResetToRecoveryPointRoundTrip(t *testing.T) {
	table := settledTable()
	m := New(table)
	m.state = StateDealingCards
	if err := m.Transition(ActionBeginBetting); err != nil {
		t.Fatalf("begin betting: %v", err)
	}
	p, ok := m.LastRecoveryPoint()
	if !ok {
		t.Fatal("expected a recovery point")
	}

	table.st.Pot = 999
	if err := m.Transition(ActionAdvance); err != nil {
		t.Fatalf("advance: %v", err)
	}
	_ = m.Transition(ActionDeal)
	if m.State() != StateError {
		t.Fatalf("expected error, got %s", m.State())
	}

	if err := m.ResetToRecoveryPoint(p); err != nil {
		t.Fatalf("reset: %v", err)
	}
	last, _ := m.LastRecoveryPoint()
	if last.State != p.State || !reflect.DeepEqual(last.Snapshot, p.Snapshot) {
		t.Fatalf("last point %+v does not match %+v", last, p)
	}
	if m.State() != StatePreFlop || !reflect.DeepEqual(m.History(), p.History) {
		t.Fatalf("state/history not restored: %s %+v", m.State(), m.History())
	}
	if !reflect.DeepEqual(table.State(), *p.Snapshot) {
		t.Fatalf("table not reset")
	}
}

func TestResetWithoutSnapshotFails(t *testing.T) {
	m := New(settledTable())
	if err := m.ResetToRecoveryPoint(RecoveryPoint{State: StateFlop}); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("failed reset must not change state, got %s", m.State())
	}
}

func TestShowdownAllowedOnceEngineSettled(t *testing.T) {
	table := settledTable()
	table.st.Stage = game.StageShowdown
	table.st.Players[0].HasActed = false
	m := New(table)
	m.state = StateTurn
	if err := m.Transition(ActionShowdown); err != nil {
		t.Fatalf("showdown after settlement: %v", err)
	}
}

func TestResumeCapturesPoint(t *testing.T) {
	m := Resume(settledTable(), StateTurn)
	if m.State() != StateTurn {
		t.Fatalf("expected turn, got %s", m.State())
	}
	p, ok := m.LastRecoveryPoint()
	if !ok || p.State != StateTurn || p.Snapshot == nil {
		t.Fatalf("expected a turn recovery point, got %+v", p)
	}
	if len(New(settledTable()).RecoveryPoints()) != 0 {
		t.Fatal("idle machine should have no points")
	}
	if len(Resume(settledTable(), StateWaitingForPlayers).RecoveryPoints()) != 0 {
		t.Fatal("non-gameplay resume should not capture")
	}
}
