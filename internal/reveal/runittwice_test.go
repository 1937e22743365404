package reveal

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"holdem-server/internal/game"
)

func allInTable(board string, holes ...string) game.TableState {
	st := game.TableState{
		TableID:        "t1",
		HandID:         "h1",
		Stage:          game.StageForBoard(len(game.MustCards(board))),
		CommunityCards: game.MustCards(board),
		CurrentBet:     100,
	}
	for i, h := range holes {
		st.Players = append(st.Players, game.Player{
			ID:         []string{"a", "b", "c", "d"}[i],
			Seat:       i,
			CurrentBet: 100,
			IsAllIn:    true,
			HasActed:   true,
			HoleCards:  game.MustCards(h),
		})
	}
	return st
}

func TestAutoRunoutEligibility(t *testing.T) {
	st := allInTable("2c 7d 9h", "As Ad", "Kh Kd")
	if !IsAutoRunoutEligible(st) {
		t.Fatal("two all-in players on the flop should run out")
	}

	covering := st.Clone()
	covering.Players[1].IsAllIn = false
	covering.Players[1].Stack = 500
	if !IsAutoRunoutEligible(covering) {
		t.Fatal("a single covering player who matched the bet should run out")
	}
	covering.Players[1].CurrentBet = 50
	if IsAutoRunoutEligible(covering) {
		t.Fatal("a player still owing chips blocks the runout")
	}

	full := allInTable("2c 7d 9h Ts Js", "As Ad", "Kh Kd")
	if IsAutoRunoutEligible(full) {
		t.Fatal("nothing left to reveal")
	}
	showdown := st.Clone()
	showdown.Stage = game.StageShowdown
	if IsAutoRunoutEligible(showdown) {
		t.Fatal("showdown is not eligible")
	}
	stud := st.Clone()
	stud.Variant = game.VariantSevenCardStud
	if IsAutoRunoutEligible(stud) {
		t.Fatal("stud has no board to run out")
	}
}

func TestSelectRunItTwicePlayerPicksWeakestHand(t *testing.T) {
	st := allInTable("2c 7d 9h", "As Ad", "Kh Kd", "3s 4s")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := SelectRunItTwicePlayer(st, nil, now)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if p.PlayerID != "c" || p.Reason != game.RunItTwiceReasonLowestHand {
		t.Fatalf("expected the nine-high hand to choose, got %+v", p)
	}
	if p.BoardCardsCount != 3 || !p.CreatedAt.Equal(now) {
		t.Fatalf("unexpected prompt header %+v", p)
	}
	if p.HighestHandDescription != "Pair of Aces" || p.HandDescription != "Nine high" {
		t.Fatalf("unexpected descriptions %q / %q", p.HandDescription, p.HighestHandDescription)
	}
	if !reflect.DeepEqual(p.EligiblePlayerIDs, []string{"a", "b", "c"}) || !reflect.DeepEqual(p.TiedPlayerIDs, []string{"c"}) {
		t.Fatalf("unexpected player sets %+v", p)
	}
}

func TestSelectRunItTwicePlayerBreaksTiesWithRandomSource(t *testing.T) {
	st := allInTable("2c 7d 9h", "As Ad", "3h 4h", "3d 4d")
	var asked int
	pick := func(n int) (int, error) {
		asked = n
		return 1, nil
	}
	p, err := SelectRunItTwicePlayer(st, pick, time.Now())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if asked != 2 || p.PlayerID != "c" || len(p.TiedPlayerIDs) != 2 {
		t.Fatalf("tie not resolved through the random source: asked=%d prompt=%+v", asked, p)
	}

	for i := 0; i < 20; i++ {
		p, err := SelectRunItTwicePlayer(st, CryptoIntN, time.Now())
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if p.PlayerID != "b" && p.PlayerID != "c" {
			t.Fatalf("picked a player outside the tie group: %s", p.PlayerID)
		}
	}
}

func TestSelectRunItTwicePlayerRequiresRunout(t *testing.T) {
	st := allInTable("2c 7d 9h", "As Ad", "Kh Kd")
	st.Players[0].IsAllIn = false
	st.Players[1].IsAllIn = false
	if _, err := SelectRunItTwicePlayer(st, nil, time.Now()); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestPresentLocksBoardWhilePromptPending(t *testing.T) {
	st := allInTable("2c 7d 9h Ts", "As Ad", "Kh Kd")
	st.Stage = game.StageTurn
	st.RunItTwicePrompt = &game.RunItTwicePrompt{PlayerID: "b", BoardCardsCount: 3}
	out := Present(st)
	if len(out.CommunityCards) != 3 || out.Stage != game.StageFlop || out.ActivePlayer != "b" {
		t.Fatalf("presentation lock not applied: %+v", out)
	}
	if len(st.CommunityCards) != 4 {
		t.Fatal("present must not mutate its input")
	}
	st.RunItTwicePrompt = nil
	if out := Present(st); !reflect.DeepEqual(out, st) {
		t.Fatal("no prompt means no change")
	}
}
