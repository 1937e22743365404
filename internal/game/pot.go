package game

import "sort"

type Pot struct {
	Amount   int64    `json:"amount"`
	Eligible []string `json:"eligible"`
}

type Contribution struct {
	PlayerID string
	Amount   int64
	Folded   bool
}

// ComputePots splits per-hand contributions into a main pot and side pots.
// Chips put in by folded players stay in the pots but those players are
// never eligible. A layer nobody live can win (every contributor at that
// level folded) is merged into the layer below it.
func ComputePots(contribs []Contribution) []Pot {
	levels := []int64{}
	seen := map[int64]bool{}
	for _, c := range contribs {
		if c.Amount > 0 && !seen[c.Amount] {
			seen[c.Amount] = true
			levels = append(levels, c.Amount)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := []Pot{}
	prev := int64(0)
	for _, level := range levels {
		amount := int64(0)
		eligible := []string{}
		for _, c := range contribs {
			amount += min64(c.Amount, level) - min64(c.Amount, prev)
			if !c.Folded && c.Amount >= level {
				eligible = append(eligible, c.PlayerID)
			}
		}
		prev = level
		if amount == 0 {
			continue
		}
		if len(eligible) == 0 && len(pots) > 0 {
			pots[len(pots)-1].Amount += amount
			continue
		}
		if len(pots) > 0 && sameIDs(pots[len(pots)-1].Eligible, eligible) {
			pots[len(pots)-1].Amount += amount
			continue
		}
		pots = append(pots, Pot{Amount: amount, Eligible: eligible})
	}
	return pots
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
