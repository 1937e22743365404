package viewmodel

import "holdem-server/internal/game"

type SeatView struct {
	Seat       int      `json:"seat"`
	PlayerID   string   `json:"player_id"`
	Name       string   `json:"name,omitempty"`
	Stack      int64    `json:"stack"`
	CurrentBet int64    `json:"current_bet"`
	ToCall     int64    `json:"to_call"`
	LastAction string   `json:"last_action,omitempty"`
	IsFolded   bool     `json:"is_folded"`
	IsAllIn    bool     `json:"is_all_in"`
	SittingOut bool     `json:"sitting_out,omitempty"`
	IsActive   bool     `json:"is_active"`
	HoleCards  []string `json:"hole_cards,omitempty"`
	UpCards    []string `json:"up_cards,omitempty"`
	DownCards  []string `json:"down_cards,omitempty"`
}

type PromptView struct {
	PlayerID               string `json:"player_id"`
	Reason                 string `json:"reason"`
	BoardCardsCount        int    `json:"board_cards_count"`
	HandDescription        string `json:"hand_description"`
	HighestHandDescription string `json:"highest_hand_description"`
}

// TableView is the wire projection of an already sanitized TableState.
type TableView struct {
	TableID        string      `json:"table_id"`
	HandID         string      `json:"hand_id,omitempty"`
	HandNumber     int64       `json:"hand_number"`
	Stage          string      `json:"stage"`
	Variant        string      `json:"variant,omitempty"`
	BettingMode    string      `json:"betting_mode,omitempty"`
	Pot            int64       `json:"pot"`
	CurrentBet     int64       `json:"current_bet"`
	MinRaise       int64       `json:"min_raise"`
	SmallBlind     int64       `json:"small_blind"`
	BigBlind       int64       `json:"big_blind"`
	DealerSeat     int         `json:"dealer_seat"`
	ActivePlayer   string      `json:"active_player"`
	CommunityCards []string    `json:"community_cards"`
	Seats          []SeatView  `json:"seats"`
	Prompt         *PromptView `json:"run_it_twice_prompt,omitempty"`
	Sequence       uint64      `json:"seq,omitempty"`
}

// BuildTableView flattens st for clients. It copies whatever cards st
// carries, so st must come from SanitizeForViewer or SanitizeForBroadcast.
func BuildTableView(st game.TableState) TableView {
	seats := make([]SeatView, 0, len(st.Players))
	for _, p := range st.Players {
		toCall := st.CurrentBet - p.CurrentBet
		if toCall < 0 || p.IsFolded || p.IsAllIn {
			toCall = 0
		}
		seat := SeatView{
			Seat:       p.Seat,
			PlayerID:   p.ID,
			Name:       p.Name,
			Stack:      p.Stack,
			CurrentBet: p.CurrentBet,
			ToCall:     toCall,
			LastAction: string(p.LastAction),
			IsFolded:   p.IsFolded,
			IsAllIn:    p.IsAllIn,
			SittingOut: p.SittingOut,
			IsActive:   p.ID == st.ActivePlayer,
			HoleCards:  cardStrings(p.HoleCards),
		}
		if sc, ok := st.StudCards[p.ID]; ok {
			seat.UpCards = cardStrings(sc.Up)
			seat.DownCards = cardStrings(sc.Down)
		}
		seats = append(seats, seat)
	}
	community := cardStrings(st.CommunityCards)
	if community == nil {
		community = []string{}
	}
	view := TableView{
		TableID:        st.TableID,
		HandID:         st.HandID,
		HandNumber:     st.HandNumber,
		Stage:          string(st.Stage),
		Variant:        string(st.Variant),
		BettingMode:    string(st.BettingMode),
		Pot:            st.Pot,
		CurrentBet:     st.CurrentBet,
		MinRaise:       st.MinRaise,
		SmallBlind:     st.SmallBlind,
		BigBlind:       st.BigBlind,
		DealerSeat:     st.DealerPos,
		ActivePlayer:   st.ActivePlayer,
		CommunityCards: community,
		Seats:          seats,
	}
	if p := st.RunItTwicePrompt; p != nil {
		view.Prompt = &PromptView{
			PlayerID:               p.PlayerID,
			Reason:                 p.Reason,
			BoardCardsCount:        p.BoardCardsCount,
			HandDescription:        p.HandDescription,
			HighestHandDescription: p.HighestHandDescription,
		}
	}
	return view
}

func cardStrings(cards []game.Card) []string {
	if len(cards) == 0 {
		return nil
	}
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.String())
	}
	return out
}
