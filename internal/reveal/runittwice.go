package reveal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"holdem-server/internal/game"
)

var (
	ErrNotEligible   = errors.New("not_eligible_for_runout")
	ErrNoContenders  = errors.New("no_run_it_twice_contenders")
	ErrPromptPending = errors.New("run_it_twice_prompt_pending")
)

// IntN returns a uniformly distributed integer in [0, n).
type IntN func(n int) (int, error)

// CryptoIntN draws from crypto/rand.
func CryptoIntN(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

type contender struct {
	id   string
	rank game.HandRank
}

// SelectRunItTwicePlayer finds the weakest hand against the board revealed
// so far and returns a prompt giving that player the run count choice.
// Players tied for weakest are drawn between with intn.
func SelectRunItTwicePlayer(st game.TableState, intn IntN, now time.Time) (*game.RunItTwicePrompt, error) {
	if !IsAutoRunoutEligible(st) {
		return nil, ErrNotEligible
	}
	need := st.Variant.HoleCardCount()
	contenders := []contender{}
	for _, p := range st.InHand() {
		if len(p.HoleCards) < need {
			continue
		}
		contenders = append(contenders, contender{
			id:   p.ID,
			rank: game.EvaluateFor(st.Variant, p.HoleCards, st.CommunityCards),
		})
	}
	if len(contenders) < 2 {
		return nil, ErrNoContenders
	}

	weakest, strongest := contenders[0], contenders[0]
	for _, c := range contenders[1:] {
		if c.rank.Compare(weakest.rank) < 0 {
			weakest = c
		}
		if c.rank.Compare(strongest.rank) > 0 {
			strongest = c
		}
	}
	eligible := make([]string, 0, len(contenders))
	tied := []string{}
	for _, c := range contenders {
		eligible = append(eligible, c.id)
		if c.rank.Compare(weakest.rank) == 0 {
			tied = append(tied, c.id)
		}
	}

	chosen := tied[0]
	if len(tied) > 1 {
		if intn == nil {
			intn = CryptoIntN
		}
		i, err := intn(len(tied))
		if err != nil {
			return nil, err
		}
		chosen = tied[i]
	}
	return &game.RunItTwicePrompt{
		PlayerID:               chosen,
		Reason:                 game.RunItTwiceReasonLowestHand,
		CreatedAt:              now,
		BoardCardsCount:        len(st.CommunityCards),
		HandDescription:        weakest.rank.Describe(),
		HighestHandDescription: strongest.rank.Describe(),
		EligiblePlayerIDs:      eligible,
		TiedPlayerIDs:          tied,
	}, nil
}

// Present applies the presentation lock of a pending prompt: the board and
// stage stay where they were when the prompt was raised and the prompted
// player is shown as the one to act. The engine state is not touched.
func Present(st game.TableState) game.TableState {
	p := st.RunItTwicePrompt
	if p == nil {
		return st
	}
	out := st.Clone()
	if p.BoardCardsCount < len(out.CommunityCards) {
		out.CommunityCards = out.CommunityCards[:p.BoardCardsCount]
	}
	out.Stage = game.StageForBoard(p.BoardCardsCount)
	out.ActivePlayer = p.PlayerID
	return out
}
