package game

import "time"

type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionBet   ActionType = "bet"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "all_in"
)

type Stage string

const (
	StagePreflop              Stage = "preflop"
	StageFlop                 Stage = "flop"
	StageTurn                 Stage = "turn"
	StageRiver                Stage = "river"
	StageShowdown             Stage = "showdown"
	StageAwaitingDealerChoice Stage = "awaiting-dealer-choice"
)

// Streets lists the board-revealing stages in deal order.
var Streets = []Stage{StageFlop, StageTurn, StageRiver}

// StreetCardCount is how many community cards each street reveals.
func StreetCardCount(s Stage) int {
	switch s {
	case StageFlop:
		return 3
	case StageTurn, StageRiver:
		return 1
	default:
		return 0
	}
}

// NextStreet returns the street dealt after s, or "" when s is the river or
// not a betting stage.
func NextStreet(s Stage) Stage {
	switch s {
	case StagePreflop:
		return StageFlop
	case StageFlop:
		return StageTurn
	case StageTurn:
		return StageRiver
	default:
		return ""
	}
}

// StageForBoard maps a community card count to the stage that shows it.
func StageForBoard(n int) Stage {
	switch {
	case n >= 5:
		return StageRiver
	case n == 4:
		return StageTurn
	case n >= 3:
		return StageFlop
	default:
		return StagePreflop
	}
}

type Variant string

const (
	VariantTexasHoldem   Variant = "texas-holdem"
	VariantOmaha         Variant = "omaha"
	VariantSevenCardStud Variant = "seven-card-stud"
)

// IsStud reports variants dealt without a community board.
func (v Variant) IsStud() bool {
	return v == VariantSevenCardStud
}

// HoleCardCount is how many private cards each player needs for the variant.
func (v Variant) HoleCardCount() int {
	switch v {
	case VariantOmaha:
		return 4
	case VariantSevenCardStud:
		return 3
	default:
		return 2
	}
}

type BettingMode string

const (
	BettingNoLimit  BettingMode = "no-limit"
	BettingPotLimit BettingMode = "pot-limit"
)

type Player struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Seat       int        `json:"seat"`
	Stack      int64      `json:"stack"`
	CurrentBet int64      `json:"current_bet"`
	TotalBet   int64      `json:"total_bet"`
	HoleCards  []Card     `json:"hole_cards,omitempty"`
	HasActed   bool       `json:"has_acted"`
	IsFolded   bool       `json:"is_folded"`
	IsAllIn    bool       `json:"is_all_in"`
	SittingOut bool       `json:"sitting_out,omitempty"`
	LastAction ActionType `json:"last_action,omitempty"`
	TimeBankMS int64      `json:"time_bank_ms"`
}

// StudCards holds a stud player's face-down and face-up cards.
type StudCards struct {
	Down []Card `json:"down,omitempty"`
	Up   []Card `json:"up"`
}

const RunItTwiceReasonLowestHand = "lowest-hand"

type RunItTwicePrompt struct {
	PlayerID               string    `json:"player_id"`
	Reason                 string    `json:"reason"`
	CreatedAt              time.Time `json:"created_at"`
	BoardCardsCount        int       `json:"board_cards_count"`
	HandDescription        string    `json:"hand_description"`
	HighestHandDescription string    `json:"highest_hand_description"`
	EligiblePlayerIDs      []string  `json:"eligible_player_ids"`
	TiedPlayerIDs          []string  `json:"tied_player_ids,omitempty"`
}

type TableState struct {
	TableID          string               `json:"table_id"`
	HandID           string               `json:"hand_id,omitempty"`
	HandNumber       int64                `json:"hand_number"`
	Players          []Player             `json:"players"`
	CommunityCards   []Card               `json:"community_cards"`
	Pot              int64                `json:"pot"`
	CurrentBet       int64                `json:"current_bet"`
	MinRaise         int64                `json:"min_raise"`
	Stage            Stage                `json:"stage"`
	DealerPos        int                  `json:"dealer_pos"`
	SmallBlind       int64                `json:"small_blind"`
	BigBlind         int64                `json:"big_blind"`
	ActivePlayer     string               `json:"active_player"`
	Variant          Variant              `json:"variant,omitempty"`
	BettingMode      BettingMode          `json:"betting_mode,omitempty"`
	RunItTwicePrompt *RunItTwicePrompt    `json:"run_it_twice_prompt,omitempty"`
	StudCards        map[string]StudCards `json:"stud_cards,omitempty"`
}

// Clone returns a deep copy; callers may mutate the result freely.
func (s TableState) Clone() TableState {
	out := s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.HoleCards = cloneCards(p.HoleCards)
		out.Players[i] = p
	}
	out.CommunityCards = cloneCards(s.CommunityCards)
	if s.RunItTwicePrompt != nil {
		prompt := *s.RunItTwicePrompt
		prompt.EligiblePlayerIDs = append([]string(nil), prompt.EligiblePlayerIDs...)
		prompt.TiedPlayerIDs = append([]string(nil), prompt.TiedPlayerIDs...)
		out.RunItTwicePrompt = &prompt
	}
	if s.StudCards != nil {
		out.StudCards = make(map[string]StudCards, len(s.StudCards))
		for id, sc := range s.StudCards {
			out.StudCards[id] = StudCards{Down: cloneCards(sc.Down), Up: cloneCards(sc.Up)}
		}
	}
	return out
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	return append([]Card{}, cards...)
}

// Player returns the player with the given id.
func (s *TableState) Player(id string) (*Player, int) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], i
		}
	}
	return nil, -1
}

// InHand reports players dealt into the current hand who have not folded.
func (s *TableState) InHand() []Player {
	out := []Player{}
	for _, p := range s.Players {
		if !p.IsFolded && !p.SittingOut {
			out = append(out, p)
		}
	}
	return out
}

// ChipTotal is the conserved quantity of a table: stacks plus the collected
// pot plus bets on the current street.
func (s TableState) ChipTotal() int64 {
	total := s.Pot
	for _, p := range s.Players {
		total += p.Stack + p.CurrentBet
	}
	return total
}

type Action struct {
	PlayerID string     `json:"player_id"`
	Type     ActionType `json:"action"`
	Amount   int64      `json:"amount,omitempty"`
}

// ActionResult tells the caller what the action did to the betting round.
type ActionResult struct {
	Paid          int64 `json:"paid"`
	RoundComplete bool  `json:"round_complete"`
	HandComplete  bool  `json:"hand_complete"`
}

type Payout struct {
	PlayerID    string `json:"player_id"`
	Amount      int64  `json:"amount"`
	Board       int    `json:"board"`
	Description string `json:"description,omitempty"`
}

type HandResult struct {
	HandID  string   `json:"hand_id"`
	Boards  [][]Card `json:"boards"`
	Pots    []Pot    `json:"pots"`
	Payouts []Payout `json:"payouts"`
	// Uncontested is set when everyone but one player folded.
	Uncontested bool `json:"uncontested"`
}

// Won sums what a player collected across pots and boards.
func (r HandResult) Won(playerID string) int64 {
	var total int64
	for _, p := range r.Payouts {
		if p.PlayerID == playerID {
			total += p.Amount
		}
	}
	return total
}
