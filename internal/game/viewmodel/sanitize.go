// Package viewmodel derives what each audience may see of a table. Every
// function here is pure: the output depends only on the TableState passed in.
package viewmodel

import "holdem-server/internal/game"

// IsAllInSituation reports a table where no further voluntary betting is
// possible: at least two players are still in the hand, at least one is
// all-in, and either everyone left is all-in or the single player who is not
// has already matched the current bet.
//
// The matched-bet case assumes that player cannot act again this street.
// That holds for the engine here because a round closes as soon as the last
// player able to bet has matched; callers with other betting rules must
// guarantee it themselves.
func IsAllInSituation(st game.TableState) bool {
	inHand := st.InHand()
	if len(inHand) < 2 {
		return false
	}
	allIn := 0
	var notAllIn []game.Player
	for _, p := range inHand {
		if p.IsAllIn {
			allIn++
		} else {
			notAllIn = append(notAllIn, p)
		}
	}
	if allIn == 0 {
		return false
	}
	switch len(notAllIn) {
	case 0:
		return true
	case 1:
		return notAllIn[0].CurrentBet >= st.CurrentBet
	default:
		return false
	}
}

// ShouldRevealHoleCards reports whether every player's private cards may be
// shown to everyone.
func ShouldRevealHoleCards(st game.TableState) bool {
	return st.Stage == game.StageShowdown || IsAllInSituation(st)
}

// SanitizeForViewer returns a copy of st in which only viewerID's private
// cards are present, unless reveal conditions hold.
func SanitizeForViewer(st game.TableState, viewerID string) game.TableState {
	return sanitize(st, viewerID)
}

// SanitizeForBroadcast returns a copy of st safe to send to every
// subscriber: no private cards unless reveal conditions hold.
func SanitizeForBroadcast(st game.TableState) game.TableState {
	return sanitize(st, "")
}

func sanitize(st game.TableState, viewerID string) game.TableState {
	out := st.Clone()
	if ShouldRevealHoleCards(st) {
		return out
	}
	for i := range out.Players {
		if viewerID == "" || out.Players[i].ID != viewerID {
			out.Players[i].HoleCards = nil
		}
	}
	for id, sc := range out.StudCards {
		if viewerID != "" && id == viewerID {
			continue
		}
		sc.Down = nil
		out.StudCards[id] = sc
	}
	return out
}
