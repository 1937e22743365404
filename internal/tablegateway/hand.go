package tablegateway

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"holdem-server/internal/game"
	"holdem-server/internal/game/lifecycle"
	"holdem-server/internal/logging"
	"holdem-server/internal/reveal"
)

// StartNextHand deals a new hand. Only one start per table may be in flight;
// a concurrent attempt fails with ErrHandStartInProgress rather than waiting.
func (c *Coordinator) StartNextHand(ctx context.Context, tableID string) error {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return err
	}
	if !c.guards.HandStart.Acquire(tableID) {
		metricGuardContention.Add(1)
		return ErrHandStartInProgress
	}
	defer c.guards.HandStart.Release(tableID)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if c.guards.Rebuys.HasPending(tableID) {
		return ErrRebuyPending
	}
	if handInProgress(rt.engine.State()) || c.scheduler.Pending(tableID) {
		return game.ErrHandInProgress
	}
	if err := c.readyLocked(rt); err != nil {
		return err
	}
	if err := rt.machine.Transition(lifecycle.ActionStart); err != nil {
		return err
	}
	if err := rt.engine.StartNewHand(); err != nil {
		if abortErr := rt.machine.Transition(lifecycle.ActionAbortStart); abortErr != nil {
			log.Error().Err(abortErr).Str("table_id", tableID).Msg("abort start rejected")
		}
		return err
	}
	for _, a := range []lifecycle.Action{lifecycle.ActionDeal, lifecycle.ActionBeginBetting} {
		if err := rt.machine.Transition(a); err != nil {
			return err
		}
	}

	rt.staged = nil
	rt.manual = false
	c.scheduler.Cancel(tableID)
	c.guards.Advance.Forget(tableID)
	st := rt.engine.State()
	c.ledger.Snapshot(st)
	metricHandsStarted.Add(1)
	tlog := logging.ForTable(tableID)
	tlog.Info().
		Str("hand_id", st.HandID).
		Int64("hand_number", st.HandNumber).
		Int("players", len(st.InHand())).
		Msg("hand started")
	c.publishLocked(rt, "hand_started", map[string]any{"hand_id": st.HandID, "hand_number": st.HandNumber})

	// Blinds can put everyone all-in before anyone acts.
	if st.ActivePlayer == "" {
		c.roundClosedLocked(ctx, rt)
	}
	c.persistLocked(ctx, rt)
	return nil
}

// readyLocked walks the lifecycle to waitingForPlayers from wherever the
// last hand left it.
func (c *Coordinator) readyLocked(rt *tableRuntime) error {
	var path []lifecycle.Action
	switch rt.machine.State() {
	case lifecycle.StateWaitingForPlayers:
		return nil
	case lifecycle.StateFinished, lifecycle.StateInitializing:
		path = []lifecycle.Action{lifecycle.ActionPlayersReady}
	case lifecycle.StateShowdown:
		path = []lifecycle.Action{lifecycle.ActionFinish, lifecycle.ActionPlayersReady}
	case lifecycle.StateIdle, lifecycle.StateError:
		path = []lifecycle.Action{lifecycle.ActionInitialize, lifecycle.ActionPlayersReady}
	default:
		log.Warn().
			Str("table_id", rt.id).
			Str("lifecycle_state", string(rt.machine.State())).
			Msg("lifecycle stranded between hands, reinitializing")
		path = []lifecycle.Action{lifecycle.ActionError, lifecycle.ActionInitialize, lifecycle.ActionPlayersReady}
	}
	for _, a := range path {
		if err := rt.machine.Transition(a); err != nil {
			return err
		}
	}
	return nil
}

// SubmitAction applies one betting action and drives whatever follows from
// it: the next street, a runout or settlement.
func (c *Coordinator) SubmitAction(ctx context.Context, tableID string, req ActionRequest) (ActionResponse, error) {
	metricActionSubmitTotal.Add(1)
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return ActionResponse{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.engine.State().RunItTwicePrompt != nil {
		metricActionRejected.Add(1)
		return ActionResponse{}, reveal.ErrPromptPending
	}
	action := game.Action{PlayerID: req.PlayerID, Type: game.ActionType(req.Action), Amount: req.Amount}
	res, err := rt.engine.ApplyAction(action)
	if err != nil {
		metricActionRejected.Add(1)
		log.Debug().Err(err).
			Str("table_id", tableID).
			Str("player_id", req.PlayerID).
			Str("action", req.Action).
			Msg("action rejected")
		return ActionResponse{}, err
	}
	c.verifyLocked(rt)
	c.publishLocked(rt, "action_applied", map[string]any{
		"player_id": req.PlayerID,
		"action":    req.Action,
		"amount":    res.Paid,
	})

	switch {
	case res.HandComplete:
		c.finishHandLocked(rt, rt.engine.LastResult())
	case res.RoundComplete:
		c.roundClosedLocked(ctx, rt)
	}
	c.persistLocked(ctx, rt)
	return ActionResponse{
		Accepted:      true,
		RoundComplete: res.RoundComplete,
		HandComplete:  res.HandComplete,
		State:         c.viewLocked(rt, req.PlayerID),
	}, nil
}

// roundClosedLocked decides what follows a street on which nobody is left
// to act.
func (c *Coordinator) roundClosedLocked(ctx context.Context, rt *tableRuntime) {
	st := rt.engine.State()
	switch {
	case !handInProgress(st):
		return
	case rt.manual:
		if game.NextStreet(st.Stage) == "" {
			c.showdownLocked(rt)
		}
	case reveal.IsAutoRunoutEligible(st):
		c.beginRunoutLocked(rt)
	case st.Variant.IsStud():
		return
	case game.NextStreet(st.Stage) == "":
		c.showdownLocked(rt)
	case rt.settings.autoAdvance:
		next := game.NextStreet(st.Stage)
		if !c.guards.Advance.Begin(rt.id, next) {
			metricGuardContention.Add(1)
			return
		}
		if err := c.advanceLocked(ctx, rt, next); err != nil {
			log.Error().Err(err).Str("table_id", rt.id).Str("stage", string(next)).Msg("auto advance failed")
		}
	}
}

// AdvanceStreet deals the next street on a table whose betting round has
// closed. A repeat of the same advance inside the duplicate window fails
// with ErrDuplicateAdvance.
func (c *Coordinator) AdvanceStreet(ctx context.Context, tableID string, req AdvanceRequest) error {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return err
	}
	target := req.Stage
	if target == "" {
		rt.mu.Lock()
		target = defaultTargetLocked(rt)
		rt.mu.Unlock()
	}
	if target == "" {
		return game.ErrInvalidStreet
	}
	if !c.guards.Advance.Begin(tableID, target) {
		metricGuardContention.Add(1)
		return ErrDuplicateAdvance
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := c.advanceLocked(ctx, rt, target); err != nil {
		// Let a corrected request through without waiting out the window.
		c.guards.Advance.Forget(tableID)
		return err
	}
	c.persistLocked(ctx, rt)
	return nil
}

// defaultTargetLocked is the street after the one viewers currently see.
// Once a runout has shown the river, the target is the river itself, which
// settles the hand.
func defaultTargetLocked(rt *tableRuntime) game.Stage {
	shown := rt.engine.State().Stage
	if rt.staged != nil {
		shown = rt.staged.Stage
		if game.NextStreet(shown) == "" {
			return shown
		}
	}
	return game.NextStreet(shown)
}

// advanceLocked deals streets up to and including target. While a runout
// is showing previewed streets, a player may ask for the street after the
// last one shown (or the last one shown itself): the runout stops for good,
// the shown streets are committed as they were displayed and the rest of
// the hand is dealt on request only.
func (c *Coordinator) advanceLocked(ctx context.Context, rt *tableRuntime, target game.Stage) error {
	st := rt.engine.State()
	shown := st.Stage
	if rt.staged != nil {
		shown = rt.staged.Stage
	}
	switch {
	case st.Variant.IsStud():
		return game.ErrNotApplicable
	case !handInProgress(st):
		return game.ErrNoHandInProgress
	case st.RunItTwicePrompt != nil:
		return reveal.ErrPromptPending
	case game.NextStreet(shown) != target && (rt.staged == nil || target != shown):
		return game.ErrInvalidStreet
	case st.ActivePlayer != "":
		return ErrBettingRoundOpen
	}

	if c.scheduler.Pending(rt.id) || rt.staged != nil {
		c.scheduler.Cancel(rt.id)
		rt.staged = nil
		rt.manual = true
		log.Info().
			Str("table_id", rt.id).
			Str("hand_id", st.HandID).
			Str("stage", string(target)).
			Msg("runout taken over by manual advance")
	}
	for street := game.NextStreet(st.Stage); street != ""; street = game.NextStreet(street) {
		if err := c.dealStreetLocked(rt, st.HandID, street); err != nil {
			return err
		}
		if street == target {
			break
		}
	}

	if rt.engine.State().ActivePlayer == "" {
		c.roundClosedLocked(ctx, rt)
	}
	return nil
}

func (c *Coordinator) dealStreetLocked(rt *tableRuntime, handID string, street game.Stage) error {
	cards, err := rt.engine.PreviewStreet(street)
	if err != nil {
		return err
	}
	if !machineReached(rt.machine, street) {
		if err := rt.machine.Transition(lifecycle.ActionAdvance); err != nil {
			return err
		}
	}
	if err := rt.engine.CommitStreet(street); err != nil {
		_ = rt.machine.Transition(lifecycle.ActionError)
		log.Error().Err(err).Str("table_id", rt.id).Str("stage", string(street)).Msg("commit street failed")
		return err
	}
	c.verifyLocked(rt)
	log.Debug().
		Str("table_id", rt.id).
		Str("hand_id", handID).
		Str("stage", string(street)).
		Int("cards", len(cards)).
		Msg("street dealt")
	c.publishLocked(rt, "street_dealt", map[string]any{"stage": street})
	return nil
}

// beginRunoutLocked starts the reveal of the remaining board. With run it
// twice enabled and no run count agreed yet, the weakest hand is asked
// first and the reveal waits for ChooseRunCount.
func (c *Coordinator) beginRunoutLocked(rt *tableRuntime) {
	st := rt.engine.State()
	if n := rt.engine.RunCount(); n > 0 {
		c.scheduleLocked(rt, st, n > 1)
		return
	}
	if c.cfg.RunItTwiceEnabled {
		prompt, err := reveal.SelectRunItTwicePlayer(st, c.intn, c.clock.Now())
		if err == nil {
			rt.engine.SetRunItTwicePrompt(prompt)
			log.Info().
				Str("table_id", rt.id).
				Str("hand_id", st.HandID).
				Str("player_id", prompt.PlayerID).
				Str("hand", prompt.HandDescription).
				Msg("run it twice offered")
			c.publishLocked(rt, "run_it_twice_prompt", prompt)
			return
		}
		if !errors.Is(err, reveal.ErrNoContenders) {
			log.Warn().Err(err).Str("table_id", rt.id).Msg("run it twice selection failed")
		}
	}
	c.scheduleLocked(rt, st, false)
}

func (c *Coordinator) scheduleLocked(rt *tableRuntime, st game.TableState, multiBoard bool) {
	if err := c.scheduler.Schedule(st, multiBoard); err != nil {
		log.Error().Err(err).Str("table_id", rt.id).Str("hand_id", st.HandID).Msg("schedule runout failed")
	}
}

// ChooseRunCount records the prompted player's answer and starts the runout.
func (c *Coordinator) ChooseRunCount(ctx context.Context, tableID string, req RunCountRequest) error {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	st := rt.engine.State()
	prompt := st.RunItTwicePrompt
	if prompt == nil {
		return ErrNoRunItTwicePrompt
	}
	if prompt.PlayerID != req.PlayerID {
		return game.ErrNotYourTurn
	}
	if err := rt.engine.SetRunCount(req.Runs); err != nil {
		return err
	}
	rt.engine.SetRunItTwicePrompt(nil)
	log.Info().
		Str("table_id", tableID).
		Str("hand_id", st.HandID).
		Str("player_id", req.PlayerID).
		Int("runs", req.Runs).
		Msg("run count chosen")
	c.publishLocked(rt, "run_count_chosen", map[string]any{"player_id": req.PlayerID, "runs": req.Runs})
	c.scheduleLocked(rt, rt.engine.State(), req.Runs > 1)
	c.persistLocked(ctx, rt)
	return nil
}

func (c *Coordinator) showdownLocked(rt *tableRuntime) {
	if err := rt.machine.Transition(lifecycle.ActionShowdown); err != nil {
		log.Error().Err(err).Str("table_id", rt.id).Msg("lifecycle rejected showdown")
		return
	}
	res, err := rt.engine.FinalizeToShowdown()
	if err != nil {
		_ = rt.machine.Transition(lifecycle.ActionError)
		log.Error().Err(err).Str("table_id", rt.id).Msg("finalize to showdown failed")
		return
	}
	c.finishHandLocked(rt, &res)
}

// finishHandLocked closes out a settled hand: lifecycle to finished, the
// result broadcast and rebuys offered to anyone who busted.
func (c *Coordinator) finishHandLocked(rt *tableRuntime, res *game.HandResult) {
	rt.manual = false
	if rt.machine.State() != lifecycle.StateShowdown {
		if err := rt.machine.Transition(lifecycle.ActionShowdown); err != nil {
			log.Error().Err(err).Str("table_id", rt.id).Msg("lifecycle rejected showdown")
		}
	}
	if rt.machine.State() == lifecycle.StateShowdown {
		if err := rt.machine.Transition(lifecycle.ActionFinish); err != nil {
			log.Error().Err(err).Str("table_id", rt.id).Msg("lifecycle rejected finish")
		}
	}
	c.verifyLocked(rt)
	metricHandsFinished.Add(1)
	tlog := logging.ForTable(rt.id)
	ev := tlog.Info()
	if res != nil {
		ev = ev.Str("hand_id", res.HandID).Int("boards", len(res.Boards)).Bool("uncontested", res.Uncontested)
	}
	ev.Msg("hand finished")
	c.publishLocked(rt, "hand_finished", res)
	c.offerRebuysLocked(rt)
}
