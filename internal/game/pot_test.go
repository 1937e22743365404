package game

import "testing"

func TestComputePotsEqualContributions(t *testing.T) {
	pots := ComputePots([]Contribution{{PlayerID: "a", Amount: 100}, {PlayerID: "b", Amount: 100}})
	if len(pots) != 1 || pots[0].Amount != 200 || len(pots[0].Eligible) != 2 {
		t.Fatalf("expected single 200 pot, got %+v", pots)
	}
}

func TestComputePotsSidePots(t *testing.T) {
	pots := ComputePots([]Contribution{
		{PlayerID: "short", Amount: 50},
		{PlayerID: "mid", Amount: 200},
		{PlayerID: "big", Amount: 500},
	})
	if len(pots) != 3 {
		t.Fatalf("expected 3 pots, got %+v", pots)
	}
	if pots[0].Amount != 150 || len(pots[0].Eligible) != 3 {
		t.Fatalf("unexpected main pot %+v", pots[0])
	}
	if pots[1].Amount != 300 || len(pots[1].Eligible) != 2 {
		t.Fatalf("unexpected side pot %+v", pots[1])
	}
	if pots[2].Amount != 300 || len(pots[2].Eligible) != 1 || pots[2].Eligible[0] != "big" {
		t.Fatalf("unexpected uncalled layer %+v", pots[2])
	}
}

func TestComputePotsFoldedChipsStayInPot(t *testing.T) {
	pots := ComputePots([]Contribution{
		{PlayerID: "a", Amount: 100},
		{PlayerID: "b", Amount: 100},
		{PlayerID: "c", Amount: 60, Folded: true},
	})
	if len(pots) != 1 || pots[0].Amount != 260 {
		t.Fatalf("expected one 260 pot, got %+v", pots)
	}
	for _, id := range pots[0].Eligible {
		if id == "c" {
			t.Fatal("folded player must not be eligible")
		}
	}
}
