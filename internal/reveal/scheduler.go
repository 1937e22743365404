package reveal

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"holdem-server/internal/game"
)

const DefaultDelay = 5 * time.Second

// Host gives the scheduler access to tables. WithTable must run fn while
// holding the table exclusively; PublishReveal and FinishRunout are only
// called from inside fn.
type Host interface {
	WithTable(tableID string, fn func(eng game.TableEngine) error) error
	PublishReveal(tableID string, staged game.TableState)
	FinishRunout(tableID string, eng game.TableEngine, res game.HandResult)
}

type task struct {
	gen        uint64
	handID     string
	stage      game.Stage
	streets    []game.Stage
	multiBoard bool
	timers     []Timer
}

func (t *task) stop() {
	for _, tm := range t.timers {
		tm.Stop()
	}
}

// Scheduler owns at most one pending runout per table.
type Scheduler struct {
	host  Host
	clock Clock
	delay time.Duration

	mu    sync.Mutex
	gen   uint64
	tasks map[string]*task
}

func NewScheduler(host Host, clock Clock, delay time.Duration) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{host: host, clock: clock, delay: delay, tasks: map[string]*task{}}
}

// Schedule replaces any pending runout for st's table with a new one: one
// street revealed immediately, the next after each delay, and the hand
// finalized one delay after the last street. multiBoard finalizes with the
// engine's agreed run count.
func (s *Scheduler) Schedule(st game.TableState, multiBoard bool) error {
	if !IsAutoRunoutEligible(st) {
		return ErrNotEligible
	}
	streets := RemainingStreets(st)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(st.TableID)
	s.gen++
	t := &task{
		gen:        s.gen,
		handID:     st.HandID,
		stage:      st.Stage,
		streets:    streets,
		multiBoard: multiBoard,
	}
	tableID := st.TableID
	for i := range streets {
		step := i
		t.timers = append(t.timers, s.clock.AfterFunc(time.Duration(step)*s.delay, func() {
			s.reveal(tableID, t.gen, step)
		}))
	}
	t.timers = append(t.timers, s.clock.AfterFunc(time.Duration(len(streets))*s.delay, func() {
		s.finalize(tableID, t.gen)
	}))
	s.tasks[tableID] = t
	schedulesStarted.Add(1)
	log.Debug().
		Str("table_id", tableID).
		Str("hand_id", st.HandID).
		Int("streets", len(streets)).
		Bool("multi_board", multiBoard).
		Msg("runout scheduled")
	return nil
}

// Cancel stops every pending reveal for the table. When it returns no
// further callbacks for the cancelled runout will publish anything.
func (s *Scheduler) Cancel(tableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(tableID)
}

func (s *Scheduler) cancelLocked(tableID string) bool {
	t, ok := s.tasks[tableID]
	if !ok {
		return false
	}
	t.stop()
	delete(s.tasks, tableID)
	schedulesCancelled.Add(1)
	return true
}

func (s *Scheduler) Pending(tableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[tableID]
	return ok
}

// Close cancels every table's runout.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.tasks {
		s.cancelLocked(id)
	}
}

// current returns the task if gen is still the table's live runout.
func (s *Scheduler) current(tableID string, gen uint64) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[tableID]
	if !ok || t.gen != gen {
		return nil
	}
	return t
}

func (s *Scheduler) drop(tableID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[tableID]; ok && t.gen == gen {
		t.stop()
		delete(s.tasks, tableID)
	}
}

func (s *Scheduler) abort(tableID string, gen uint64, err error) {
	s.drop(tableID, gen)
	schedulesAborted.Add(1)
	log.Error().Err(err).Str("table_id", tableID).Msg("runout aborted")
}

func (s *Scheduler) guard(tableID string, gen uint64) {
	if r := recover(); r != nil {
		s.abort(tableID, gen, fmt.Errorf("panic: %v", r))
	}
}

// stale reports whether the table moved on since the runout was planned.
func stale(t *task, st game.TableState) bool {
	return st.HandID != t.handID || st.Stage != t.stage || !IsAutoRunoutEligible(st)
}

func (s *Scheduler) reveal(tableID string, gen uint64, step int) {
	defer s.guard(tableID, gen)
	err := s.host.WithTable(tableID, func(eng game.TableEngine) error {
		t := s.current(tableID, gen)
		if t == nil {
			return nil
		}
		if stale(t, eng.State()) {
			s.drop(tableID, gen)
			log.Debug().Str("table_id", tableID).Msg("runout no longer applies")
			return nil
		}
		staged, err := Staged(eng, t.streets[:step+1])
		if err != nil {
			return err
		}
		s.host.PublishReveal(tableID, staged)
		revealsPublished.Add(1)
		return nil
	})
	if err != nil {
		s.abort(tableID, gen, err)
	}
}

func (s *Scheduler) finalize(tableID string, gen uint64) {
	defer s.guard(tableID, gen)
	err := s.host.WithTable(tableID, func(eng game.TableEngine) error {
		t := s.current(tableID, gen)
		if t == nil {
			return nil
		}
		if stale(t, eng.State()) {
			s.drop(tableID, gen)
			return nil
		}
		var res game.HandResult
		var err error
		if t.multiBoard {
			res, err = eng.RunItTwiceNow()
		} else {
			res, err = eng.FinalizeToShowdown()
		}
		if err != nil {
			return err
		}
		s.drop(tableID, gen)
		runoutsFinalized.Add(1)
		s.host.FinishRunout(tableID, eng, res)
		return nil
	})
	if err != nil {
		s.abort(tableID, gen, err)
	}
}
