package game

import "errors"

// ActionError is an action rejected on betting-legality grounds. Every
// ActionError matches ErrInvalidAction with errors.Is.
type ActionError struct {
	Code string
}

func (e *ActionError) Error() string {
	return e.Code
}

func (e *ActionError) Unwrap() error {
	if e == ErrInvalidAction {
		return nil
	}
	return ErrInvalidAction
}

var ErrInvalidAction = &ActionError{Code: "invalid_action"}

var (
	ErrNotYourTurn       error = &ActionError{Code: "not_your_turn"}
	ErrInvalidRaise      error = &ActionError{Code: "invalid_raise"}
	ErrInsufficientStack error = &ActionError{Code: "insufficient_stack"}
	ErrNoHandInProgress  error = &ActionError{Code: "no_hand_in_progress"}
)

var (
	ErrNotApplicable      = errors.New("not_applicable")
	ErrDeckExhausted      = errors.New("deck_exhausted")
	ErrInvalidStreet      = errors.New("invalid_street")
	ErrHandInProgress     = errors.New("hand_in_progress")
	ErrNotEnoughPlayers   = errors.New("not_enough_players")
	ErrPlayerNotFound     = errors.New("player_not_found")
	ErrSeatTaken          = errors.New("seat_taken")
	ErrTableFull          = errors.New("table_full")
	ErrUnsupportedVariant = errors.New("unsupported_variant")
	ErrInvalidRunCount    = errors.New("invalid_run_count")
	ErrInvalidSnapshot    = errors.New("invalid_snapshot")
)

// IsBettingStage reports stages in which players act.
func IsBettingStage(s Stage) bool {
	switch s {
	case StagePreflop, StageFlop, StageTurn, StageRiver:
		return true
	default:
		return false
	}
}

func ValidateAction(s *TableState, a Action) error {
	if s.HandID == "" || !IsBettingStage(s.Stage) {
		return ErrNoHandInProgress
	}
	if s.ActivePlayer == "" || a.PlayerID != s.ActivePlayer {
		return ErrNotYourTurn
	}
	me, _ := s.Player(a.PlayerID)
	if me == nil || me.IsFolded || me.IsAllIn || me.SittingOut {
		return ErrInvalidAction
	}
	toCall := max64(0, s.CurrentBet-me.CurrentBet)
	switch a.Type {
	case ActionFold:
		return nil
	case ActionCheck:
		if toCall != 0 {
			return ErrInvalidAction
		}
		return nil
	case ActionCall:
		if toCall == 0 {
			return ErrInvalidAction
		}
		return nil
	case ActionAllIn:
		if me.Stack <= 0 {
			return ErrInsufficientStack
		}
		if limit := PotLimitMax(s, me); limit > 0 && me.CurrentBet+me.Stack > limit {
			return ErrInvalidRaise
		}
		return nil
	case ActionBet:
		if s.CurrentBet != 0 {
			return ErrInvalidAction
		}
		if a.Amount > me.Stack {
			return ErrInsufficientStack
		}
		if a.Amount < s.MinRaise && a.Amount != me.Stack {
			return ErrInvalidRaise
		}
		if a.Amount <= 0 {
			return ErrInvalidRaise
		}
		if limit := PotLimitMax(s, me); limit > 0 && a.Amount > limit {
			return ErrInvalidRaise
		}
		return nil
	case ActionRaise:
		if s.CurrentBet == 0 {
			return ErrInvalidAction
		}
		need := a.Amount - me.CurrentBet
		if need > me.Stack {
			return ErrInsufficientStack
		}
		allIn := need == me.Stack
		if a.Amount <= s.CurrentBet {
			return ErrInvalidRaise
		}
		if a.Amount < s.CurrentBet+s.MinRaise && !allIn {
			return ErrInvalidRaise
		}
		if limit := PotLimitMax(s, me); limit > 0 && a.Amount > limit {
			return ErrInvalidRaise
		}
		return nil
	default:
		return ErrInvalidAction
	}
}

// PotLimitMax is the largest total street bet p may make under pot-limit
// rules, or 0 when the table is not pot-limit.
func PotLimitMax(s *TableState, p *Player) int64 {
	if s.BettingMode != BettingPotLimit {
		return 0
	}
	toCall := max64(0, s.CurrentBet-p.CurrentBet)
	live := s.Pot
	for _, o := range s.Players {
		live += o.CurrentBet
	}
	return s.CurrentBet + live + toCall
}
