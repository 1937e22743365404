// Package reveal runs out the board once betting is closed by an all-in,
// either street by street on a timer or by handing one player the choice to
// run it more than once.
package reveal

import (
	"holdem-server/internal/game"
	"holdem-server/internal/game/viewmodel"
)

// IsAutoRunoutEligible reports whether the rest of the board can be dealt
// without further betting: an all-in situation on a community-card table
// with a hand in progress and at least one card still hidden.
func IsAutoRunoutEligible(st game.TableState) bool {
	if st.Variant.IsStud() || st.HandID == "" {
		return false
	}
	if st.Stage == game.StageShowdown || len(st.CommunityCards) >= 5 {
		return false
	}
	return viewmodel.IsAllInSituation(st)
}

// RemainingStreets lists the streets still to be revealed from st, in order.
func RemainingStreets(st game.TableState) []game.Stage {
	out := []game.Stage{}
	cards := len(st.CommunityCards)
	for street := game.NextStreet(st.Stage); street != ""; street = game.NextStreet(street) {
		cards += game.StreetCardCount(street)
		if cards > 5 {
			break
		}
		out = append(out, street)
	}
	return out
}

// Staged previews streets on top of the engine's state without committing
// them. The result is what viewers are shown during a runout.
func Staged(eng game.TableEngine, streets []game.Stage) (game.TableState, error) {
	st := eng.State()
	for _, street := range streets {
		cards, err := eng.PreviewStreet(street)
		if err != nil {
			return game.TableState{}, err
		}
		st.CommunityCards = append(st.CommunityCards, cards...)
		st.Stage = street
	}
	st.ActivePlayer = ""
	return st, nil
}
