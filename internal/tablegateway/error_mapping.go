package tablegateway

import (
	"errors"
	"net/http"

	"holdem-server/internal/game"
	"holdem-server/internal/game/lifecycle"
	"holdem-server/internal/reveal"
	"holdem-server/internal/tableguard"
)

func mapErr(err error) (int, string) {
	var actionErr *game.ActionError
	switch {
	case errors.Is(err, ErrTableNotFound):
		return http.StatusNotFound, "table_not_found"
	case errors.Is(err, ErrPlayerNotSeated), errors.Is(err, game.ErrPlayerNotFound):
		return http.StatusNotFound, "player_not_found"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &actionErr):
		return http.StatusBadRequest, actionErr.Code
	case errors.Is(err, game.ErrInvalidStreet),
		errors.Is(err, game.ErrInvalidRunCount),
		errors.Is(err, game.ErrUnsupportedVariant),
		errors.Is(err, game.ErrNotApplicable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrTableExists),
		errors.Is(err, game.ErrSeatTaken),
		errors.Is(err, game.ErrTableFull),
		errors.Is(err, game.ErrHandInProgress),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, ErrBettingRoundOpen),
		errors.Is(err, ErrRebuyPending),
		errors.Is(err, ErrNoRunItTwicePrompt),
		errors.Is(err, ErrNoRecoveryPoint),
		errors.Is(err, reveal.ErrPromptPending),
		errors.Is(err, tableguard.ErrNoPendingRebuy),
		errors.Is(err, tableguard.ErrRebuyLimitReached):
		return http.StatusConflict, err.Error()
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, ErrHandStartInProgress), errors.Is(err, ErrDuplicateAdvance):
		return http.StatusTooManyRequests, err.Error()
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
