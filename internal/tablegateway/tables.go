package tablegateway

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"holdem-server/internal/game"
	"holdem-server/internal/game/lifecycle"
	"holdem-server/internal/reveal"
	"holdem-server/internal/store"
	"holdem-server/internal/tableguard"
)

// CreateTable builds a new table and brings its lifecycle to
// waitingForPlayers.
func (c *Coordinator) CreateTable(ctx context.Context, req CreateTableRequest) (string, error) {
	req.TableID = strings.TrimSpace(req.TableID)
	if req.SmallBlind <= 0 || req.BigBlind < req.SmallBlind {
		return "", ErrInvalidRequest
	}
	if req.TableID == "" {
		req.TableID = store.NewID()
	}
	eng, err := game.New(game.EngineConfig{
		TableID:     req.TableID,
		SmallBlind:  req.SmallBlind,
		BigBlind:    req.BigBlind,
		Variant:     req.Variant,
		BettingMode: req.BettingMode,
	}, c.engineOpts...)
	if err != nil {
		return "", err
	}

	if _, err := c.runtime(ctx, req.TableID); err == nil {
		return "", ErrTableExists
	} else if !errors.Is(err, ErrTableNotFound) {
		return "", err
	}

	settings := defaultSettings(eng.State(), c.cfg)
	if req.BuyIn > 0 {
		settings.buyIn = req.BuyIn
	}
	if req.RebuyLimit != nil {
		settings.rebuyLimit = *req.RebuyLimit
	}
	settings.autoAdvance = !req.ManualAdvance

	c.mu.Lock()
	if _, ok := c.tables[req.TableID]; ok {
		c.mu.Unlock()
		return "", ErrTableExists
	}
	rt := c.newRuntime(req.TableID, eng, settings, lifecycle.StateIdle)
	c.tables[req.TableID] = rt
	c.mu.Unlock()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, a := range []lifecycle.Action{lifecycle.ActionInitialize, lifecycle.ActionPlayersReady} {
		if err := rt.machine.Transition(a); err != nil {
			return "", err
		}
	}
	c.ledger.Snapshot(eng.State())
	c.persistLocked(ctx, rt)
	metricTablesCreated.Add(1)
	log.Info().
		Str("table_id", rt.id).
		Str("variant", string(eng.State().Variant)).
		Int64("big_blind", req.BigBlind).
		Msg("table created")
	return rt.id, nil
}

// SeatPlayer adds a player. Without a stack the table's buy-in is used.
// Players seated mid-hand sit out until the next deal.
func (c *Coordinator) SeatPlayer(ctx context.Context, tableID string, req SeatRequest) error {
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.PlayerID == "" || req.Seat < 0 || req.Stack < 0 {
		return ErrInvalidRequest
	}
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	stack := req.Stack
	if stack == 0 {
		stack = rt.settings.buyIn
	}
	name := req.Name
	if name == "" {
		name = req.PlayerID
	}
	if err := rt.engine.SeatPlayer(game.Player{ID: req.PlayerID, Name: name, Seat: req.Seat, Stack: stack}); err != nil {
		return err
	}
	c.ledger.Snapshot(rt.engine.State())
	c.publishLocked(rt, "player_seated", map[string]any{"player_id": req.PlayerID, "seat": req.Seat})
	c.persistLocked(ctx, rt)
	return nil
}

// LeaveTable removes a player who is not live in the current hand. Any open
// rebuy decision for them is dropped.
func (c *Coordinator) LeaveTable(ctx context.Context, tableID, playerID string) error {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.engine.RemovePlayer(playerID); err != nil {
		return err
	}
	if _, err := c.guards.Rebuys.Resolve(tableID, playerID, false); err != nil && !errors.Is(err, tableguard.ErrNoPendingRebuy) {
		log.Warn().Err(err).Str("table_id", tableID).Str("player_id", playerID).Msg("drop rebuy on leave")
	}
	c.ledger.Snapshot(rt.engine.State())
	c.publishLocked(rt, "player_left", map[string]any{"player_id": playerID})
	c.persistLocked(ctx, rt)
	return nil
}

// ResolveRebuy answers a busted player's pending decision: rebuy for the
// table's buy-in, or stand up.
func (c *Coordinator) ResolveRebuy(ctx context.Context, tableID string, req RebuyRequest) (RebuyResponse, error) {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return RebuyResponse{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	pending, ok := c.guards.Rebuys.Get(tableID, req.PlayerID)
	if !ok {
		return RebuyResponse{}, tableguard.ErrNoPendingRebuy
	}
	if req.Rebuy && !pending.CanRebuy() {
		return RebuyResponse{}, tableguard.ErrRebuyLimitReached
	}
	// The engine goes first so a failed rebuy leaves the decision open and
	// unspent.
	if req.Rebuy {
		err = rt.engine.Rebuy(req.PlayerID, rt.settings.buyIn)
	} else {
		err = rt.engine.RemovePlayer(req.PlayerID)
	}
	if err != nil {
		return RebuyResponse{}, err
	}
	entry, err := c.guards.Rebuys.Resolve(tableID, req.PlayerID, req.Rebuy)
	if err != nil {
		return RebuyResponse{}, err
	}
	c.ledger.Snapshot(rt.engine.State())
	kind := "player_rebought"
	if !req.Rebuy {
		kind = "player_left"
	}
	c.publishLocked(rt, kind, map[string]any{"player_id": req.PlayerID, "rebuys_used": entry.RebuysUsed})
	c.persistLocked(ctx, rt)
	log.Info().
		Str("table_id", tableID).
		Str("player_id", req.PlayerID).
		Bool("rebuy", req.Rebuy).
		Int("rebuys_used", entry.RebuysUsed).
		Msg("rebuy resolved")
	return RebuyResponse{Rebuy: entry, State: c.viewLocked(rt, req.PlayerID)}, nil
}

// offerRebuysLocked opens a decision for every busted player. Players out of
// rebuys are stood up at once.
func (c *Coordinator) offerRebuysLocked(rt *tableRuntime) {
	for _, p := range rt.engine.State().Players {
		if p.Stack > 0 {
			continue
		}
		entry, err := c.guards.Rebuys.Add(rt.id, p.ID, rt.settings.rebuyLimit)
		if errors.Is(err, tableguard.ErrRebuyAlreadyIssued) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("table_id", rt.id).Str("player_id", p.ID).Msg("rebuy offer failed")
			continue
		}
		if entry.CanRebuy() {
			c.publishLocked(rt, "rebuy_offered", entry)
			continue
		}
		if _, err := c.guards.Rebuys.Resolve(rt.id, p.ID, false); err != nil {
			log.Warn().Err(err).Str("table_id", rt.id).Str("player_id", p.ID).Msg("close exhausted rebuy")
		}
		if err := rt.engine.RemovePlayer(p.ID); err != nil {
			log.Warn().Err(err).Str("table_id", rt.id).Str("player_id", p.ID).Msg("remove busted player")
			continue
		}
		c.ledger.Snapshot(rt.engine.State())
		c.publishLocked(rt, "player_left", map[string]any{"player_id": p.ID, "reason": "rebuy_limit_reached"})
	}
}

// Recover rolls the table back to its newest recovery point, cancelling any
// runout in flight.
func (c *Coordinator) Recover(ctx context.Context, tableID string) (lifecycle.RecoveryPoint, error) {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return lifecycle.RecoveryPoint{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	p, ok := rt.machine.LastRecoveryPoint()
	if !ok {
		return lifecycle.RecoveryPoint{}, ErrNoRecoveryPoint
	}
	c.scheduler.Cancel(tableID)
	rt.staged = nil
	rt.manual = false
	if err := rt.machine.ResetToRecoveryPoint(p); err != nil {
		return lifecycle.RecoveryPoint{}, err
	}
	c.guards.Advance.Forget(tableID)
	c.ledger.Snapshot(rt.engine.State())
	log.Warn().
		Str("table_id", tableID).
		Str("lifecycle_state", string(p.State)).
		Uint64("recovery_seq", p.Seq).
		Msg("table reset to recovery point")
	c.publishLocked(rt, "table_recovered", map[string]any{"lifecycle_state": p.State, "recovery_seq": p.Seq})
	c.resumeLocked(ctx, rt)
	c.persistLocked(ctx, rt)
	return p, nil
}

// resumeLocked carries a table reset to a recovery point forward to where
// its lifecycle says it is. Points are captured as a stage is entered, before
// the engine deals it, so the engine may trail by a street, or by a whole
// runout. The deck was rewound with the state, so the same cards come out.
func (c *Coordinator) resumeLocked(ctx context.Context, rt *tableRuntime) {
	st := rt.engine.State()
	if !handInProgress(st) {
		return
	}
	machineState := rt.machine.State()
	engineState := lifecycleStateFor(st)
	switch {
	case machineState == engineState:
		if st.ActivePlayer == "" {
			c.roundClosedLocked(ctx, rt)
		}
	case machineState == lifecycle.StateShowdown || reveal.IsAutoRunoutEligible(st):
		res, err := rt.engine.RunItTwiceNow()
		if err != nil {
			_ = rt.machine.Transition(lifecycle.ActionError)
			log.Error().Err(err).Str("table_id", rt.id).Msg("settle after recovery failed")
			return
		}
		c.finishHandLocked(rt, &res)
	default:
		street := game.NextStreet(st.Stage)
		if street == "" || st.ActivePlayer != "" {
			return
		}
		if err := rt.engine.CommitStreet(street); err != nil {
			_ = rt.machine.Transition(lifecycle.ActionError)
			log.Error().Err(err).Str("table_id", rt.id).Str("stage", string(street)).Msg("redeal after recovery failed")
			return
		}
		c.verifyLocked(rt)
		c.publishLocked(rt, "street_dealt", map[string]any{"stage": street})
		if rt.engine.State().ActivePlayer == "" {
			c.roundClosedLocked(ctx, rt)
		}
	}
}

func (c *Coordinator) Lifecycle(ctx context.Context, tableID string) (LifecycleView, error) {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return LifecycleView{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return LifecycleView{
		TableID:        tableID,
		State:          rt.machine.State(),
		History:        rt.machine.History(),
		RecoveryPoints: len(rt.machine.RecoveryPoints()),
		PendingRebuys:  c.guards.Rebuys.Pending(tableID),
		RunoutPending:  c.scheduler.Pending(tableID),
	}, nil
}

// DeleteTable closes a table: runouts stop, guards and the ledger forget it
// and its durable snapshot is removed.
func (c *Coordinator) DeleteTable(ctx context.Context, tableID string) error {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if handInProgress(rt.engine.State()) {
		return game.ErrHandInProgress
	}
	c.scheduler.Cancel(tableID)
	c.guards.Forget(tableID)
	c.ledger.Forget(tableID)
	c.mu.Lock()
	delete(c.tables, tableID)
	c.mu.Unlock()
	c.publishLocked(rt, "table_closed", nil)
	if tp, ok := c.publisher.(*TopicPublisher); ok {
		tp.CloseTable(tableID)
	}
	if err := c.recovery.Delete(ctx, tableID); err != nil {
		return err
	}
	log.Info().Str("table_id", tableID).Msg("table deleted")
	return nil
}
