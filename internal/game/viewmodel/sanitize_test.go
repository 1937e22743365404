package viewmodel

import (
	"reflect"
	"testing"

	"holdem-server/internal/game"
)

func midHandState() game.TableState {
	return game.TableState{
		TableID:        "t1",
		HandID:         "h1",
		Stage:          game.StageFlop,
		CurrentBet:     40,
		CommunityCards: game.MustCards("2c 7d 9h"),
		Players: []game.Player{
			{ID: "a", Seat: 0, Stack: 500, CurrentBet: 40, HoleCards: game.MustCards("As Ad"), HasActed: true},
			{ID: "b", Seat: 1, Stack: 300, CurrentBet: 20, HoleCards: game.MustCards("Kh Kd")},
			{ID: "c", Seat: 2, Stack: 100, HoleCards: game.MustCards("3c 4c"), IsFolded: true},
		},
		ActivePlayer: "b",
	}
}

func TestSanitizeForViewerHidesOthers(t *testing.T) {
	st := midHandState()
	out := SanitizeForViewer(st, "a")
	for _, p := range out.Players {
		if p.ID == "a" && len(p.HoleCards) != 2 {
			t.Fatalf("viewer should keep own cards")
		}
		if p.ID != "a" && p.HoleCards != nil {
			t.Fatalf("player %s cards leaked: %v", p.ID, p.HoleCards)
		}
	}
	if len(st.Players[1].HoleCards) != 2 {
		t.Fatal("sanitizing must not mutate the input")
	}
	if twice := SanitizeForViewer(out, "a"); !reflect.DeepEqual(twice, out) {
		t.Fatalf("sanitize is not idempotent")
	}
}

func TestSanitizeForBroadcastHidesEveryone(t *testing.T) {
	out := SanitizeForBroadcast(midHandState())
	for _, p := range out.Players {
		if p.HoleCards != nil {
			t.Fatalf("player %s cards leaked", p.ID)
		}
	}
}

func TestShowdownRevealsAll(t *testing.T) {
	st := midHandState()
	st.Stage = game.StageShowdown
	out := SanitizeForBroadcast(st)
	for _, p := range out.Players {
		if len(p.HoleCards) != 2 {
			t.Fatalf("showdown should reveal %s", p.ID)
		}
	}
}

func TestAllInSituation(t *testing.T) {
	st := midHandState()
	if IsAllInSituation(st) {
		t.Fatal("nobody is all-in yet")
	}

	st.Players[1].IsAllIn = true
	st.Players[1].Stack = 0
	if !IsAllInSituation(st) {
		t.Fatal("one all-in and the other has matched: betting is closed")
	}
	if !ShouldRevealHoleCards(st) {
		t.Fatal("all-in situation should reveal")
	}

	st.Players[0].CurrentBet = 10
	if IsAllInSituation(st) {
		t.Fatal("the covering player still owes chips")
	}

	st.Players[0].CurrentBet = 40
	st.Players[2].IsFolded = false
	if IsAllInSituation(st) {
		t.Fatal("two players can still bet")
	}
}

func TestStudDownCardsFollowRevealRule(t *testing.T) {
	st := game.TableState{
		TableID: "stud",
		Stage:   game.StageFlop,
		Variant: game.VariantSevenCardStud,
		Players: []game.Player{
			{ID: "a", Seat: 0, Stack: 100, HoleCards: game.MustCards("As Ad")},
			{ID: "b", Seat: 1, Stack: 100, HoleCards: game.MustCards("Ks Kd")},
		},
		StudCards: map[string]game.StudCards{
			"a": {Down: game.MustCards("As Ad"), Up: game.MustCards("2c 3c")},
			"b": {Down: game.MustCards("Ks Kd"), Up: game.MustCards("4h 5h")},
		},
	}
	out := SanitizeForViewer(st, "a")
	if len(out.StudCards["a"].Down) != 2 {
		t.Fatal("viewer keeps own down cards")
	}
	if out.StudCards["b"].Down != nil || len(out.StudCards["b"].Up) != 2 {
		t.Fatalf("other player's down cards leaked or up cards lost: %+v", out.StudCards["b"])
	}
	if len(st.StudCards["b"].Down) != 2 {
		t.Fatal("input map mutated")
	}

	st.Stage = game.StageShowdown
	if out := SanitizeForBroadcast(st); len(out.StudCards["b"].Down) != 2 {
		t.Fatal("showdown reveals down cards")
	}
}

func TestBuildTableViewFromSanitizedState(t *testing.T) {
	view := BuildTableView(SanitizeForViewer(midHandState(), "b"))
	if view.Stage != "flop" || len(view.CommunityCards) != 3 || view.ActivePlayer != "b" {
		t.Fatalf("unexpected header %+v", view)
	}
	if view.Seats[0].HoleCards != nil || !reflect.DeepEqual(view.Seats[1].HoleCards, []string{"Kh", "Kd"}) {
		t.Fatalf("unexpected hole cards %+v", view.Seats)
	}
	if view.Seats[1].ToCall != 20 || !view.Seats[1].IsActive {
		t.Fatalf("unexpected seat %+v", view.Seats[1])
	}
}
