package tablegateway

import (
	"errors"

	"holdem-server/internal/game"
	"holdem-server/internal/game/lifecycle"
	"holdem-server/internal/game/viewmodel"
	"holdem-server/internal/reconcile"
	"holdem-server/internal/tableguard"
)

var (
	ErrTableNotFound       = errors.New("table_not_found")
	ErrTableExists         = errors.New("table_exists")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrHandStartInProgress = errors.New("hand_start_in_progress")
	ErrDuplicateAdvance    = errors.New("duplicate_advance")
	ErrBettingRoundOpen    = errors.New("betting_round_open")
	ErrRebuyPending        = errors.New("rebuy_pending")
	ErrNoRunItTwicePrompt  = errors.New("no_run_it_twice_prompt")
	ErrNoRecoveryPoint     = errors.New("no_recovery_point")
	ErrPlayerNotSeated     = errors.New("player_not_seated")
)

type CreateTableRequest struct {
	TableID       string           `json:"table_id,omitempty"`
	SmallBlind    int64            `json:"small_blind"`
	BigBlind      int64            `json:"big_blind"`
	Variant       game.Variant     `json:"variant,omitempty"`
	BettingMode   game.BettingMode `json:"betting_mode,omitempty"`
	BuyIn         int64            `json:"buy_in,omitempty"`
	RebuyLimit    *int             `json:"rebuy_limit,omitempty"`
	ManualAdvance bool             `json:"manual_advance,omitempty"`
}

type SeatRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	Seat     int    `json:"seat"`
	Stack    int64  `json:"stack,omitempty"`
}

type ActionRequest struct {
	PlayerID string `json:"player_id"`
	Action   string `json:"action"`
	Amount   int64  `json:"amount,omitempty"`
}

type ActionResponse struct {
	Accepted      bool                `json:"accepted"`
	RoundComplete bool                `json:"round_complete"`
	HandComplete  bool                `json:"hand_complete"`
	State         viewmodel.TableView `json:"state"`
}

type AdvanceRequest struct {
	Stage game.Stage `json:"stage"`
}

type RunCountRequest struct {
	PlayerID string `json:"player_id"`
	Runs     int    `json:"runs"`
}

type RebuyRequest struct {
	PlayerID string `json:"player_id"`
	Rebuy    bool   `json:"rebuy"`
}

type RebuyResponse struct {
	Rebuy tableguard.PendingRebuy `json:"rebuy"`
	State viewmodel.TableView     `json:"state"`
}

// SyncRequest carries what a client last applied. PlayerID selects the
// sanitized view; empty means the spectator view.
type SyncRequest struct {
	PlayerID string                  `json:"player_id,omitempty"`
	Version  uint64                  `json:"version"`
	Checksum string                  `json:"checksum,omitempty"`
	Changes  []reconcile.StateChange `json:"changes,omitempty"`
}

// SyncResponse holds either a delta from the client's version or, when that
// history is gone, the full view.
type SyncResponse struct {
	Version   uint64               `json:"version"`
	Checksum  string               `json:"checksum"`
	UpToDate  bool                 `json:"up_to_date"`
	Delta     []reconcile.Change   `json:"delta,omitempty"`
	State     *viewmodel.TableView `json:"state,omitempty"`
	Conflicts []reconcile.Conflict `json:"conflicts,omitempty"`
}

type LifecycleView struct {
	TableID        string                    `json:"table_id"`
	State          lifecycle.State           `json:"state"`
	History        []lifecycle.HistoryEntry  `json:"history"`
	RecoveryPoints int                       `json:"recovery_points"`
	PendingRebuys  []tableguard.PendingRebuy `json:"pending_rebuys"`
	RunoutPending  bool                      `json:"runout_pending"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
