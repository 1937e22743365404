package game

import (
	"fmt"
	"sort"

	"github.com/paulhankin/poker"
)

const (
	CategoryHighCard = iota
	CategoryPair
	CategoryTwoPair
	CategoryTrips
	CategoryStraight
	CategoryFlush
	CategoryFullHouse
	CategoryQuads
	CategoryStraightFlush
)

type HandRank struct {
	Category int
	Ranks    []int
}

func (h HandRank) BetterThan(o HandRank) bool {
	return h.Compare(o) > 0
}

// Compare returns 1 when h beats o, -1 when o beats h and 0 on a tie.
func (h HandRank) Compare(o HandRank) int {
	if h.Category != o.Category {
		if h.Category > o.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(h.Ranks) && i < len(o.Ranks); i++ {
		if h.Ranks[i] != o.Ranks[i] {
			if h.Ranks[i] > o.Ranks[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

var rankNames = map[int]string{
	2: "Two", 3: "Three", 4: "Four", 5: "Five", 6: "Six", 7: "Seven", 8: "Eight",
	9: "Nine", 10: "Ten", 11: "Jack", 12: "Queen", 13: "King", 14: "Ace",
}

func plural(r int) string {
	if r == 6 {
		return "Sixes"
	}
	return rankNames[r] + "s"
}

// Describe renders the rank the way it is shown to players, e.g.
// "Pair of Kings" or "Ace-high Straight".
func (h HandRank) Describe() string {
	if len(h.Ranks) == 0 {
		return "No hand"
	}
	top := h.Ranks[0]
	switch h.Category {
	case CategoryStraightFlush:
		if top == 14 {
			return "Royal Flush"
		}
		return rankNames[top] + "-high Straight Flush"
	case CategoryQuads:
		return "Four " + plural(top)
	case CategoryFullHouse:
		return plural(top) + " full of " + plural(h.Ranks[1])
	case CategoryFlush:
		return rankNames[top] + "-high Flush"
	case CategoryStraight:
		return rankNames[top] + "-high Straight"
	case CategoryTrips:
		return "Three " + plural(top)
	case CategoryTwoPair:
		return "Two Pair, " + plural(top) + " and " + plural(h.Ranks[1])
	case CategoryPair:
		return "Pair of " + plural(top)
	default:
		return rankNames[top] + " high"
	}
}

// Evaluate ranks the best hand available in cards. Fewer than five cards are
// ranked on made groups only (no straights or flushes), which is what is
// needed to compare hands against a partially revealed board.
func Evaluate(cards []Card) HandRank {
	if len(cards) < 5 {
		return evalPartial(cards)
	}
	best := HandRank{Category: -1}
	n := len(cards)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				for d := c + 1; d < n; d++ {
					for e := d + 1; e < n; e++ {
						h := eval5(cards[a], cards[b], cards[c], cards[d], cards[e])
						if h.BetterThan(best) {
							best = h
						}
					}
				}
			}
		}
	}
	return best
}

func Evaluate7(cards []Card) HandRank {
	return Evaluate(cards)
}

// EvaluateOmaha uses exactly two hole cards and three board cards once the
// board has three or more cards; before that every available card counts.
func EvaluateOmaha(hole, board []Card) HandRank {
	if len(board) < 3 {
		return Evaluate(append(append([]Card{}, hole...), board...))
	}
	best := HandRank{Category: -1}
	for a := 0; a < len(hole); a++ {
		for b := a + 1; b < len(hole); b++ {
			for c := 0; c < len(board); c++ {
				for d := c + 1; d < len(board); d++ {
					for e := d + 1; e < len(board); e++ {
						h := eval5(hole[a], hole[b], board[c], board[d], board[e])
						if h.BetterThan(best) {
							best = h
						}
					}
				}
			}
		}
	}
	return best
}

// EvaluateFor ranks a player's hand for the given variant.
func EvaluateFor(v Variant, hole, board []Card) HandRank {
	if v == VariantOmaha {
		return EvaluateOmaha(hole, board)
	}
	return Evaluate(append(append([]Card{}, hole...), board...))
}

type rankCount struct {
	rank  int
	count int
}

func groupRanks(cards []Card) ([]rankCount, []int) {
	counts := map[int]int{}
	ranks := make([]int, 0, len(cards))
	for _, c := range cards {
		counts[int(c.Rank)]++
		ranks = append(ranks, int(c.Rank))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))
	groups := make([]rankCount, 0, len(counts))
	for r, c := range counts {
		groups = append(groups, rankCount{rank: r, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})
	return groups, ranks
}

func evalPartial(cards []Card) HandRank {
	if len(cards) == 0 {
		return HandRank{Category: CategoryHighCard}
	}
	groups, ranks := groupRanks(cards)
	switch {
	case groups[0].count == 4:
		return HandRank{Category: CategoryQuads, Ranks: []int{groups[0].rank}}
	case groups[0].count == 3:
		return HandRank{Category: CategoryTrips, Ranks: append([]int{groups[0].rank}, topKickers(ranks, []int{groups[0].rank}, 1)...)}
	case groups[0].count == 2 && len(groups) > 1 && groups[1].count == 2:
		return HandRank{Category: CategoryTwoPair, Ranks: []int{groups[0].rank, groups[1].rank}}
	case groups[0].count == 2:
		return HandRank{Category: CategoryPair, Ranks: append([]int{groups[0].rank}, topKickers(ranks, []int{groups[0].rank}, 2)...)}
	default:
		return HandRank{Category: CategoryHighCard, Ranks: ranks}
	}
}

func eval5(c1, c2, c3, c4, c5 Card) HandRank {
	cards := []Card{c1, c2, c3, c4, c5}
	suits := map[Suit]int{}
	for _, c := range cards {
		suits[c.Suit]++
	}
	groups, ranks := groupRanks(cards)
	isFlush := false
	for _, v := range suits {
		if v == 5 {
			isFlush = true
			break
		}
	}
	isStraight, highStraight := straightHigh(ranks)
	if isFlush && isStraight {
		return HandRank{Category: CategoryStraightFlush, Ranks: []int{highStraight}}
	}
	if groups[0].count == 4 {
		kicker := highestExcluding(ranks, groups[0].rank)
		return HandRank{Category: CategoryQuads, Ranks: []int{groups[0].rank, kicker}}
	}
	if groups[0].count == 3 && groups[1].count == 2 {
		return HandRank{Category: CategoryFullHouse, Ranks: []int{groups[0].rank, groups[1].rank}}
	}
	if isFlush {
		return HandRank{Category: CategoryFlush, Ranks: ranks}
	}
	if isStraight {
		return HandRank{Category: CategoryStraight, Ranks: []int{highStraight}}
	}
	if groups[0].count == 3 {
		kickers := topKickers(ranks, []int{groups[0].rank}, 2)
		return HandRank{Category: CategoryTrips, Ranks: append([]int{groups[0].rank}, kickers...)}
	}
	if groups[0].count == 2 && groups[1].count == 2 {
		highPair := groups[0].rank
		lowPair := groups[1].rank
		kicker := highestExcluding(ranks, highPair, lowPair)
		return HandRank{Category: CategoryTwoPair, Ranks: []int{highPair, lowPair, kicker}}
	}
	if groups[0].count == 2 {
		kickers := topKickers(ranks, []int{groups[0].rank}, 3)
		return HandRank{Category: CategoryPair, Ranks: append([]int{groups[0].rank}, kickers...)}
	}
	return HandRank{Category: CategoryHighCard, Ranks: ranks}
}

func straightHigh(ranks []int) (bool, int) {
	unique := uniqueRanks(ranks)
	sort.Sort(sort.Reverse(sort.IntSlice(unique)))
	if len(unique) < 5 {
		return false, 0
	}
	for i := 0; i <= len(unique)-5; i++ {
		if unique[i]-unique[i+4] == 4 {
			return true, unique[i]
		}
	}
	// Wheel A-5
	if contains(unique, 14) && contains(unique, 5) && contains(unique, 4) && contains(unique, 3) && contains(unique, 2) {
		return true, 5
	}
	return false, 0
}

func uniqueRanks(ranks []int) []int {
	m := map[int]bool{}
	out := make([]int, 0, len(ranks))
	for _, r := range ranks {
		if !m[r] {
			m[r] = true
			out = append(out, r)
		}
	}
	return out
}

func contains(arr []int, v int) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}

func highestExcluding(ranks []int, exclude ...int) int {
	for _, r := range ranks {
		if !contains(exclude, r) {
			return r
		}
	}
	return 0
}

func topKickers(ranks []int, exclude []int, n int) []int {
	out := []int{}
	for _, r := range ranks {
		if contains(exclude, r) {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}

// toLibCard converts to the table-driven evaluator's representation, which
// numbers suits clubs-first and ranks aces low.
func toLibCard(c Card) (poker.Card, error) {
	var zero poker.Card
	var s poker.Suit
	switch c.Suit {
	case Clubs:
		s = poker.Suit(0)
	case Diamonds:
		s = poker.Suit(1)
	case Hearts:
		s = poker.Suit(2)
	case Spades:
		s = poker.Suit(3)
	default:
		return zero, fmt.Errorf("%w: suit %d", ErrInvalidCard, c.Suit)
	}
	r := poker.Rank(c.Rank)
	if c.Rank == Ace {
		r = poker.Rank(1)
	}
	return poker.MakeCard(s, r)
}

func toLibHand7(hole, board []Card) ([7]poker.Card, error) {
	var out [7]poker.Card
	all := append(append([]Card{}, board...), hole...)
	if len(all) != 7 {
		return out, fmt.Errorf("%w: need 7 cards, have %d", ErrInvalidCard, len(all))
	}
	for i, c := range all {
		lc, err := toLibCard(c)
		if err != nil {
			return out, err
		}
		out[i] = lc
	}
	return out, nil
}

// showdownScore ranks a full seven-card hold'em hand with the lookup-table
// evaluator. Higher is better.
func showdownScore(hole, board []Card) (int16, string, error) {
	hand, err := toLibHand7(hole, board)
	if err != nil {
		return 0, "", err
	}
	score := poker.Eval7(&hand)
	desc, err := poker.Describe(hand[:])
	if err != nil {
		desc = Evaluate(append(append([]Card{}, hole...), board...)).Describe()
	}
	return score, desc, nil
}
