// Package lifecycle tracks where each table is in the hand cycle, separately
// from the betting engine, and keeps recovery points for rollback.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"holdem-server/internal/game"
)

type State string

const (
	StateIdle              State = "idle"
	StateInitializing      State = "initializing"
	StateWaitingForPlayers State = "waitingForPlayers"
	StateStarting          State = "starting"
	StateDealingCards      State = "dealingCards"
	StatePreFlop           State = "preFlop"
	StateFlop              State = "flop"
	StateTurn              State = "turn"
	StateRiver             State = "river"
	StateShowdown          State = "showdown"
	StateFinished          State = "finished"
	StateError             State = "error"
)

// States lists every lifecycle state.
var States = []State{
	StateIdle, StateInitializing, StateWaitingForPlayers, StateStarting,
	StateDealingCards, StatePreFlop, StateFlop, StateTurn, StateRiver,
	StateShowdown, StateFinished, StateError,
}

type Action string

const (
	ActionInitialize   Action = "initialize"
	ActionPlayersReady Action = "playersReady"
	ActionStart        Action = "start"
	ActionAbortStart   Action = "abortStart"
	ActionDeal         Action = "deal"
	ActionBeginBetting Action = "beginBetting"
	ActionAdvance      Action = "advance"
	ActionShowdown     Action = "showdown"
	ActionFinish       Action = "finish"
	ActionError        Action = "error"
)

// Actions lists every lifecycle action.
var Actions = []Action{
	ActionInitialize, ActionPlayersReady, ActionStart, ActionAbortStart,
	ActionDeal, ActionBeginBetting, ActionAdvance, ActionShowdown,
	ActionFinish, ActionError,
}

var allowed = map[State][]State{
	StateIdle:              {StateInitializing, StateError},
	StateInitializing:      {StateWaitingForPlayers, StateError},
	StateWaitingForPlayers: {StateStarting, StateError},
	StateStarting:          {StateDealingCards, StateWaitingForPlayers, StateError},
	StateDealingCards:      {StatePreFlop, StateError},
	StatePreFlop:           {StateFlop, StateShowdown, StateError},
	StateFlop:              {StateTurn, StateShowdown, StateError},
	StateTurn:              {StateRiver, StateShowdown, StateError},
	StateRiver:             {StateShowdown, StateError},
	StateShowdown:          {StateFinished, StateError},
	StateFinished:          {StateWaitingForPlayers, StateError},
	StateError:             {StateInitializing, StateError},
}

// Allowed reports whether from -> to is in the transition table.
func Allowed(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsGameplay reports the states that capture a recovery point on entry.
func IsGameplay(s State) bool {
	switch s {
	case StatePreFlop, StateFlop, StateTurn, StateRiver, StateShowdown:
		return true
	default:
		return false
	}
}

var nextStreet = map[State]State{
	StatePreFlop: StateFlop,
	StateFlop:    StateTurn,
	StateTurn:    StateRiver,
	StateRiver:   StateShowdown,
}

// destination resolves an action to a concrete target, or "" when the action
// means nothing from the current state.
func destination(from State, a Action) State {
	switch a {
	case ActionInitialize:
		return StateInitializing
	case ActionPlayersReady:
		return StateWaitingForPlayers
	case ActionStart:
		return StateStarting
	case ActionAbortStart:
		if from != StateStarting {
			return ""
		}
		return StateWaitingForPlayers
	case ActionDeal:
		return StateDealingCards
	case ActionBeginBetting:
		return StatePreFlop
	case ActionAdvance:
		return nextStreet[from]
	case ActionShowdown:
		return StateShowdown
	case ActionFinish:
		return StateFinished
	case ActionError:
		return StateError
	default:
		return ""
	}
}

var (
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNoSnapshot        = errors.New("recovery_point_has_no_snapshot")
)

// TransitionError explains a rejected action. It matches
// ErrInvalidTransition with errors.Is.
type TransitionError struct {
	From   State
	Action Action
	To     State
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s from %s: %s", e.Action, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// TableSource is the engine view the machine reads for gating and recovery
// snapshots. The machine never mutates the table except when resetting to a
// recovery point.
type TableSource interface {
	State() game.TableState
	ResetState(st game.TableState)
}

type HistoryEntry struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Action Action    `json:"action"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}

type RecoveryPoint struct {
	Seq        uint64           `json:"seq"`
	State      State            `json:"state"`
	Snapshot   *game.TableState `json:"snapshot"`
	History    []HistoryEntry   `json:"history"`
	CapturedAt time.Time        `json:"captured_at"`
}

const DefaultRecoveryLimit = 5

type Option func(*Machine)

func WithRecoveryLimit(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is one table's lifecycle. It is not safe for concurrent use; the
// table runtime serializes access.
type Machine struct {
	state   State
	table   TableSource
	history []HistoryEntry
	points  []RecoveryPoint
	seq     uint64
	limit   int
	now     func() time.Time
}

func New(table TableSource, opts ...Option) *Machine {
	m := &Machine{
		state: StateIdle,
		table: table,
		limit: DefaultRecoveryLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resume builds a machine already in state, as for a table restored from a
// snapshot mid-cycle. A gameplay state captures a recovery point at once.
func Resume(table TableSource, state State, opts ...Option) *Machine {
	m := New(table, opts...)
	m.state = state
	if IsGameplay(state) {
		m.capture()
	}
	return m
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) History() []HistoryEntry {
	return append([]HistoryEntry(nil), m.history...)
}

func (m *Machine) RecoveryPoints() []RecoveryPoint {
	out := make([]RecoveryPoint, len(m.points))
	for i, p := range m.points {
		out[i] = p.clone()
	}
	return out
}

func (m *Machine) LastRecoveryPoint() (RecoveryPoint, bool) {
	if len(m.points) == 0 {
		return RecoveryPoint{}, false
	}
	return m.points[len(m.points)-1].clone(), true
}

// Can reports whether a would succeed right now without applying it.
func (m *Machine) Can(a Action) bool {
	_, err := m.check(a)
	return err == nil
}

// Transition performs the transition named by a. A rejected action moves the
// machine to error and returns a *TransitionError; an explicit error action
// is always accepted.
func (m *Machine) Transition(a Action) error {
	to, err := m.check(a)
	if err != nil {
		m.record(m.state, StateError, a, err)
		m.state = StateError
		transitionsRejected.Add(1)
		return err
	}
	from := m.state
	m.record(from, to, a, nil)
	m.state = to
	if IsGameplay(to) {
		m.capture()
	}
	return nil
}

func (m *Machine) check(a Action) (State, error) {
	if a == ActionError {
		return StateError, nil
	}
	to := destination(m.state, a)
	if to == "" {
		return "", &TransitionError{From: m.state, Action: a, Reason: "no destination"}
	}
	if !Allowed(m.state, to) {
		return "", &TransitionError{From: m.state, Action: a, To: to, Reason: "not allowed"}
	}
	if IsGameplay(m.state) && IsGameplay(to) {
		if reason := m.gate(to); reason != "" {
			return "", &TransitionError{From: m.state, Action: a, To: to, Reason: reason}
		}
	}
	return to, nil
}

func (m *Machine) gate(to State) string {
	if m.table == nil {
		return "no table state"
	}
	st := m.table.State()
	if to == StateShowdown && (len(st.InHand()) <= 1 || st.Stage == game.StageShowdown) {
		return ""
	}
	if !AllActedOrAllIn(st) {
		return "players still to act"
	}
	if !BetsMatched(st) {
		return "bets not matched"
	}
	return ""
}

// AllActedOrAllIn reports whether every non-folded player has acted this
// street or is all-in.
func AllActedOrAllIn(st game.TableState) bool {
	for _, p := range st.InHand() {
		if !p.HasActed && !p.IsAllIn {
			return false
		}
	}
	return true
}

// BetsMatched reports whether every non-folded player who is not all-in has
// put in exactly the table's current bet.
func BetsMatched(st game.TableState) bool {
	for _, p := range st.InHand() {
		if !p.IsAllIn && p.CurrentBet != st.CurrentBet {
			return false
		}
	}
	return true
}

func (m *Machine) record(from, to State, a Action, err error) {
	t := HistoryEntry{From: from, To: to, Action: a, At: m.now()}
	if err != nil {
		t.Error = err.Error()
	}
	m.history = append(m.history, t)
}

func (m *Machine) capture() {
	p := RecoveryPoint{
		State:      m.state,
		History:    m.History(),
		CapturedAt: m.now(),
	}
	if m.table != nil {
		st := m.table.State()
		p.Snapshot = &st
	}
	m.push(p)
}

func (m *Machine) push(p RecoveryPoint) {
	m.seq++
	p.Seq = m.seq
	m.points = append(m.points, p)
	if over := len(m.points) - m.limit; over > 0 {
		m.points = append([]RecoveryPoint(nil), m.points[over:]...)
	}
}

// ResetToRecoveryPoint restores the lifecycle state, the table snapshot and
// the transition history of p in one step. Points newer than p are dropped
// so p becomes the latest recovery point.
func (m *Machine) ResetToRecoveryPoint(p RecoveryPoint) error {
	if p.Snapshot == nil {
		return ErrNoSnapshot
	}
	p = p.clone()
	if m.table != nil {
		m.table.ResetState(*p.Snapshot)
	}
	m.state = p.State
	m.history = append([]HistoryEntry(nil), p.History...)

	for i := range m.points {
		if m.points[i].Seq == p.Seq && p.Seq != 0 {
			m.points = m.points[:i+1]
			m.points[i] = p
			return nil
		}
	}
	m.points = append(m.points, p)
	if over := len(m.points) - m.limit; over > 0 {
		m.points = append([]RecoveryPoint(nil), m.points[over:]...)
	}
	return nil
}

func (p RecoveryPoint) clone() RecoveryPoint {
	out := p
	out.History = append([]HistoryEntry(nil), p.History...)
	if p.Snapshot != nil {
		st := p.Snapshot.Clone()
		out.Snapshot = &st
	}
	return out
}
