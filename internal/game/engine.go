package game

import (
	"sort"

	"holdem-server/internal/store"
)

// TableEngine is the capability set the rest of the server needs from a
// table's betting engine. Engines for variants without a community board
// return ErrNotApplicable from the board operations.
type TableEngine interface {
	State() TableState
	ApplyAction(a Action) (ActionResult, error)
	StartNewHand() error
	PreviewStreet(street Stage) ([]Card, error)
	CommitStreet(street Stage) error
	RunItTwiceNow() (HandResult, error)
	FinalizeToShowdown() (HandResult, error)

	SetRunItTwicePrompt(p *RunItTwicePrompt)
	SetRunCount(n int) error
	RunCount() int
	LastResult() *HandResult

	SeatPlayer(p Player) error
	RemovePlayer(playerID string) error
	Rebuy(playerID string, amount int64) error
	ResetState(st TableState)

	Serialize() ([]byte, error)
}

const MaxRunCount = 3

type EngineConfig struct {
	TableID     string
	SmallBlind  int64
	BigBlind    int64
	Variant     Variant
	BettingMode BettingMode
}

type Option func(*Engine)

// WithDeckSource replaces the shuffled deck used for each new hand.
func WithDeckSource(fn func() (*Deck, error)) Option {
	return func(e *Engine) { e.newDeck = fn }
}

// WithHandIDs replaces the hand id generator.
func WithHandIDs(fn func() string) Option {
	return func(e *Engine) { e.newHandID = fn }
}

// Engine plays community-card variants (hold'em and omaha).
type Engine struct {
	state            TableState
	deck             *Deck
	handDeck         []Card
	removedPlayerIDs []string
	previewCount     int
	runCount         int
	lastResult       *HandResult

	newDeck   func() (*Deck, error)
	newHandID func() string
}

var _ TableEngine = (*Engine)(nil)

// NewEngine builds a community-card engine. Stud tables use NewStudEngine.
func NewEngine(cfg EngineConfig, opts ...Option) (*Engine, error) {
	if cfg.Variant == "" {
		cfg.Variant = VariantTexasHoldem
	}
	if cfg.Variant.IsStud() {
		return nil, ErrUnsupportedVariant
	}
	return newEngine(cfg, opts...), nil
}

// New picks the engine implementation for cfg.Variant.
func New(cfg EngineConfig, opts ...Option) (TableEngine, error) {
	switch cfg.Variant {
	case "", VariantTexasHoldem, VariantOmaha:
		e, err := NewEngine(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	case VariantSevenCardStud:
		return NewStudEngine(cfg, opts...), nil
	default:
		return nil, ErrUnsupportedVariant
	}
}

func newEngine(cfg EngineConfig, opts ...Option) *Engine {
	if cfg.BettingMode == "" {
		cfg.BettingMode = BettingNoLimit
	}
	e := &Engine{
		state: TableState{
			TableID:        cfg.TableID,
			Players:        []Player{},
			CommunityCards: []Card{},
			SmallBlind:     cfg.SmallBlind,
			BigBlind:       cfg.BigBlind,
			MinRaise:       cfg.BigBlind,
			DealerPos:      -1,
			Variant:        cfg.Variant,
			BettingMode:    cfg.BettingMode,
		},
		newDeck:   shuffledDeck,
		newHandID: store.NewID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func shuffledDeck() (*Deck, error) {
	d := NewDeck()
	if err := d.Shuffle(); err != nil {
		return nil, err
	}
	return d, nil
}

func (e *Engine) State() TableState {
	return e.state.Clone()
}

func (e *Engine) LastResult() *HandResult {
	if e.lastResult == nil {
		return nil
	}
	r := *e.lastResult
	return &r
}

func (e *Engine) RunCount() int {
	return e.runCount
}

// PreviewCount is how many street previews were computed this hand.
func (e *Engine) PreviewCount() int {
	return e.previewCount
}

func (e *Engine) handInProgress() bool {
	return e.state.HandID != "" && IsBettingStage(e.state.Stage)
}

func (e *Engine) SeatPlayer(p Player) error {
	for _, o := range e.state.Players {
		if o.ID == p.ID || o.Seat == p.Seat {
			return ErrSeatTaken
		}
	}
	p.CurrentBet, p.TotalBet = 0, 0
	p.HoleCards = nil
	p.HasActed, p.IsAllIn = false, false
	p.LastAction = ""
	if e.handInProgress() {
		p.SittingOut = true
		p.IsFolded = true
	}
	e.state.Players = append(e.state.Players, p)
	sort.SliceStable(e.state.Players, func(i, j int) bool {
		return e.state.Players[i].Seat < e.state.Players[j].Seat
	})
	return nil
}

func (e *Engine) RemovePlayer(playerID string) error {
	p, idx := e.state.Player(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if e.handInProgress() && !p.IsFolded && !p.SittingOut {
		return ErrHandInProgress
	}
	if e.state.ActivePlayer == playerID {
		e.state.ActivePlayer = ""
	}
	// Chips already committed this hand stay in the pot.
	e.state.Pot += p.CurrentBet
	e.state.Players = append(e.state.Players[:idx], e.state.Players[idx+1:]...)
	e.removedPlayerIDs = append(e.removedPlayerIDs, playerID)
	return nil
}

func (e *Engine) Rebuy(playerID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAction
	}
	p, _ := e.state.Player(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if e.handInProgress() && !p.IsFolded && !p.SittingOut {
		return ErrHandInProgress
	}
	p.Stack += amount
	p.SittingOut = false
	return nil
}

// ResetState replaces the table state, typically with a recovery point
// snapshot. When st belongs to the hand in progress the deck is rewound so
// the cards still to come are the ones that followed st when it was taken.
func (e *Engine) ResetState(st TableState) {
	sameHand := st.HandID != "" && st.HandID == e.state.HandID
	e.state = st.Clone()
	if !sameHand || e.handDeck == nil {
		return
	}
	if dealt := dealtCount(st); dealt <= len(e.handDeck) {
		e.deck = NewDeckFrom(e.handDeck[dealt:])
	}
}

func dealtCount(st TableState) int {
	n := 0
	if st.StudCards != nil {
		for _, sc := range st.StudCards {
			n += len(sc.Down) + len(sc.Up)
		}
		return n
	}
	n = len(st.CommunityCards)
	for _, p := range st.Players {
		n += len(p.HoleCards)
	}
	return n
}

func (e *Engine) SetRunItTwicePrompt(p *RunItTwicePrompt) {
	if p == nil {
		e.state.RunItTwicePrompt = nil
		return
	}
	st := TableState{RunItTwicePrompt: p}.Clone()
	e.state.RunItTwicePrompt = st.RunItTwicePrompt
}

func (e *Engine) SetRunCount(n int) error {
	if n < 1 || n > MaxRunCount {
		return ErrInvalidRunCount
	}
	if !e.handInProgress() {
		return ErrNoHandInProgress
	}
	missing := 5 - len(e.state.CommunityCards)
	if e.deck == nil || e.deck.Len() < missing*n {
		return ErrDeckExhausted
	}
	e.runCount = n
	return nil
}

// clockwise returns player indexes ordered by seat, starting with the first
// seat after fromSeat.
func (e *Engine) clockwise(fromSeat int) []int {
	n := len(e.state.Players)
	start := 0
	for start < n && e.state.Players[start].Seat <= fromSeat {
		start++
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, (start+i)%n)
	}
	return out
}

func (e *Engine) StartNewHand() error {
	order, dealerIdx, err := e.beginHand()
	if err != nil {
		return err
	}
	s := &e.state
	var sbIdx, bbIdx int
	if len(order) == 2 {
		sbIdx, bbIdx = dealerIdx, order[0]
		if sbIdx == bbIdx {
			bbIdx = order[1]
		}
	} else {
		sbIdx, bbIdx = order[0], order[1]
	}
	e.post(&s.Players[sbIdx], s.SmallBlind)
	e.post(&s.Players[bbIdx], s.BigBlind)
	s.CurrentBet = s.BigBlind

	holes := s.Variant.HoleCardCount()
	for round := 0; round < holes; round++ {
		for _, i := range order {
			c, err := e.deck.Deal()
			if err != nil {
				return err
			}
			s.Players[i].HoleCards = append(s.Players[i].HoleCards, c)
		}
	}

	s.ActivePlayer = e.nextToAct(s.Players[bbIdx].Seat)
	return nil
}

// beginHand clears per-hand fields, loads a fresh deck and moves the button.
// It returns the dealt-in player indexes clockwise from the new button and
// the button's index.
func (e *Engine) beginHand() ([]int, int, error) {
	if e.handInProgress() {
		return nil, 0, ErrHandInProgress
	}
	s := &e.state
	dealtIn := 0
	for i := range s.Players {
		p := &s.Players[i]
		p.CurrentBet, p.TotalBet = 0, 0
		p.HoleCards = nil
		p.HasActed, p.IsFolded, p.IsAllIn = false, false, false
		p.LastAction = ""
		p.SittingOut = p.Stack <= 0
		if p.SittingOut {
			p.IsFolded = true
		} else {
			dealtIn++
		}
	}
	if dealtIn < 2 {
		return nil, 0, ErrNotEnoughPlayers
	}
	deck, err := e.newDeck()
	if err != nil {
		return nil, 0, err
	}

	e.deck = deck
	e.handDeck = deck.Remaining()
	e.runCount = 0
	e.previewCount = 0
	e.lastResult = nil
	e.removedPlayerIDs = nil
	s.CommunityCards = []Card{}
	s.Pot = 0
	s.CurrentBet = 0
	s.MinRaise = s.BigBlind
	s.RunItTwicePrompt = nil
	s.StudCards = nil
	s.Stage = StagePreflop
	s.HandNumber++
	s.HandID = e.newHandID()

	// Rotate the button to the next dealt-in seat.
	dealerIdx := e.live(e.clockwise(s.DealerPos))[0]
	s.DealerPos = s.Players[dealerIdx].Seat
	return e.live(e.clockwise(s.DealerPos)), dealerIdx, nil
}

func (e *Engine) live(order []int) []int {
	out := []int{}
	for _, i := range order {
		if !e.state.Players[i].SittingOut {
			out = append(out, i)
		}
	}
	return out
}

func (e *Engine) post(p *Player, amount int64) {
	pay := min64(amount, p.Stack)
	e.pay(p, pay)
}

func (e *Engine) pay(p *Player, amount int64) {
	p.Stack -= amount
	p.CurrentBet += amount
	p.TotalBet += amount
	if p.Stack == 0 {
		p.IsAllIn = true
	}
}

func needsAction(s *TableState, p *Player) bool {
	if p.IsFolded || p.IsAllIn || p.SittingOut {
		return false
	}
	return !p.HasActed || p.CurrentBet < s.CurrentBet
}

// nextToAct returns the first player clockwise after afterSeat who still
// owes an action this round, or "" when the round is closed.
func (e *Engine) nextToAct(afterSeat int) string {
	s := &e.state
	canAct := 0
	for i := range s.Players {
		p := &s.Players[i]
		if !p.IsFolded && !p.IsAllIn && !p.SittingOut {
			canAct++
		}
	}
	for _, i := range e.clockwise(afterSeat) {
		p := &s.Players[i]
		if !needsAction(s, p) {
			continue
		}
		// A lone player who already matches the bet has nobody to act against.
		if canAct < 2 && p.CurrentBet >= s.CurrentBet {
			return ""
		}
		return p.ID
	}
	return ""
}

func (e *Engine) ApplyAction(a Action) (ActionResult, error) {
	s := &e.state
	if err := ValidateAction(s, a); err != nil {
		return ActionResult{}, err
	}
	p, _ := s.Player(a.PlayerID)
	before := p.Stack

	switch a.Type {
	case ActionFold:
		p.IsFolded = true
	case ActionCheck:
	case ActionCall:
		e.pay(p, min64(s.CurrentBet-p.CurrentBet, p.Stack))
	case ActionBet:
		e.pay(p, a.Amount)
		s.CurrentBet = p.CurrentBet
		s.MinRaise = max64(a.Amount, s.BigBlind)
	case ActionRaise:
		e.raiseTo(p, a.Amount)
	case ActionAllIn:
		e.raiseTo(p, p.CurrentBet+p.Stack)
	}
	p.HasActed = true
	p.LastAction = a.Type
	res := ActionResult{Paid: before - p.Stack}

	if len(s.InHand()) == 1 {
		r := e.awardUncontested()
		e.lastResult = &r
		res.RoundComplete = true
		res.HandComplete = true
		return res, nil
	}
	s.ActivePlayer = e.nextToAct(p.Seat)
	res.RoundComplete = s.ActivePlayer == ""
	return res, nil
}

func (e *Engine) raiseTo(p *Player, to int64) {
	s := &e.state
	e.pay(p, to-p.CurrentBet)
	if to > s.CurrentBet {
		if inc := to - s.CurrentBet; inc >= s.MinRaise {
			s.MinRaise = inc
		}
		s.CurrentBet = to
	}
}

func (e *Engine) collectBets() {
	s := &e.state
	for i := range s.Players {
		s.Pot += s.Players[i].CurrentBet
		s.Players[i].CurrentBet = 0
	}
	s.CurrentBet = 0
	s.MinRaise = s.BigBlind
}

// streetOffset counts the cards belonging to streets strictly between the
// current stage and target, i.e. cards a preview of target must skip.
func (e *Engine) streetOffset(target Stage) (int, error) {
	offset := 0
	for st := NextStreet(e.state.Stage); st != ""; st = NextStreet(st) {
		if st == target {
			if len(e.state.CommunityCards)+offset+StreetCardCount(target) > 5 {
				return 0, ErrInvalidStreet
			}
			return offset, nil
		}
		offset += StreetCardCount(st)
	}
	return 0, ErrInvalidStreet
}

func (e *Engine) PreviewStreet(street Stage) ([]Card, error) {
	if e.state.Variant.IsStud() {
		return nil, ErrNotApplicable
	}
	if !e.handInProgress() || e.deck == nil {
		return nil, ErrNoHandInProgress
	}
	offset, err := e.streetOffset(street)
	if err != nil {
		return nil, err
	}
	cards, err := e.deck.Peek(offset, StreetCardCount(street))
	if err != nil {
		return nil, err
	}
	e.previewCount++
	return cards, nil
}

func (e *Engine) CommitStreet(street Stage) error {
	if e.state.Variant.IsStud() {
		return ErrNotApplicable
	}
	if !e.handInProgress() || e.deck == nil {
		return ErrNoHandInProgress
	}
	if NextStreet(e.state.Stage) != street {
		return ErrInvalidStreet
	}
	if _, err := e.streetOffset(street); err != nil {
		return err
	}
	s := &e.state
	for i := 0; i < StreetCardCount(street); i++ {
		c, err := e.deck.Deal()
		if err != nil {
			return err
		}
		s.CommunityCards = append(s.CommunityCards, c)
	}
	e.collectBets()
	for i := range s.Players {
		s.Players[i].HasActed = false
	}
	s.Stage = street
	s.ActivePlayer = e.nextToAct(s.DealerPos)
	e.closeIfNoAction()
	return nil
}

// closeIfNoAction marks a freshly dealt street as acted on when nobody is
// left who can bet on it.
func (e *Engine) closeIfNoAction() {
	s := &e.state
	if s.ActivePlayer != "" {
		return
	}
	for i := range s.Players {
		if !s.Players[i].IsFolded && !s.Players[i].SittingOut {
			s.Players[i].HasActed = true
		}
	}
}

func (e *Engine) FinalizeToShowdown() (HandResult, error) {
	if !e.handInProgress() {
		return HandResult{}, ErrNoHandInProgress
	}
	if len(e.state.InHand()) == 1 {
		r := e.awardUncontested()
		e.lastResult = &r
		return r, nil
	}
	boards, err := e.dealBoards(1)
	if err != nil {
		return HandResult{}, err
	}
	r := e.settle(boards)
	e.lastResult = &r
	return r, nil
}

// RunItTwiceNow deals the remaining board once per agreed run and splits
// every pot evenly across the boards. Without an agreed run count above one
// it is the same as FinalizeToShowdown.
func (e *Engine) RunItTwiceNow() (HandResult, error) {
	if e.runCount < 2 {
		return e.FinalizeToShowdown()
	}
	if !e.handInProgress() {
		return HandResult{}, ErrNoHandInProgress
	}
	if len(e.state.InHand()) == 1 {
		r := e.awardUncontested()
		e.lastResult = &r
		return r, nil
	}
	boards, err := e.dealBoards(e.runCount)
	if err != nil {
		return HandResult{}, err
	}
	r := e.settle(boards)
	e.lastResult = &r
	return r, nil
}

func (e *Engine) dealBoards(runs int) ([][]Card, error) {
	base := cloneCards(e.state.CommunityCards)
	missing := 5 - len(base)
	if e.deck == nil || e.deck.Len() < missing*runs {
		return nil, ErrDeckExhausted
	}
	boards := make([][]Card, 0, runs)
	for r := 0; r < runs; r++ {
		board := cloneCards(base)
		for i := 0; i < missing; i++ {
			c, _ := e.deck.Deal()
			board = append(board, c)
		}
		boards = append(boards, board)
	}
	return boards, nil
}

func (e *Engine) awardUncontested() HandResult {
	e.collectBets()
	s := &e.state
	winner := s.InHand()[0]
	p, _ := s.Player(winner.ID)
	res := HandResult{
		HandID:      s.HandID,
		Boards:      [][]Card{cloneCards(s.CommunityCards)},
		Pots:        []Pot{{Amount: s.Pot, Eligible: []string{winner.ID}}},
		Payouts:     []Payout{{PlayerID: winner.ID, Amount: s.Pot}},
		Uncontested: true,
	}
	p.Stack += s.Pot
	s.Pot = 0
	e.endHand()
	return res
}

func (e *Engine) endHand() {
	s := &e.state
	s.Stage = StageShowdown
	s.ActivePlayer = ""
	s.RunItTwicePrompt = nil
	for i := range s.Players {
		s.Players[i].IsAllIn = s.Players[i].IsAllIn && s.Players[i].Stack == 0
	}
}

type rankedHand struct {
	playerID string
	useLib   bool
	lib      int16
	rank     HandRank
	desc     string
}

func (a rankedHand) compare(b rankedHand) int {
	if a.useLib && b.useLib {
		switch {
		case a.lib > b.lib:
			return 1
		case a.lib < b.lib:
			return -1
		}
		return 0
	}
	return a.rank.Compare(b.rank)
}

func (e *Engine) rankHand(p Player, board []Card) rankedHand {
	if e.state.Variant.IsStud() {
		sc := e.state.StudCards[p.ID]
		r := Evaluate(append(cloneCards(sc.Down), sc.Up...))
		return rankedHand{playerID: p.ID, rank: r, desc: r.Describe()}
	}
	if e.state.Variant == VariantTexasHoldem && len(p.HoleCards)+len(board) == 7 {
		if score, desc, err := showdownScore(p.HoleCards, board); err == nil {
			return rankedHand{playerID: p.ID, useLib: true, lib: score, desc: desc}
		}
	}
	r := EvaluateFor(e.state.Variant, p.HoleCards, board)
	return rankedHand{playerID: p.ID, rank: r, desc: r.Describe()}
}

func (e *Engine) settle(boards [][]Card) HandResult {
	e.collectBets()
	s := &e.state
	s.CommunityCards = cloneCards(boards[0])

	contribs := make([]Contribution, 0, len(s.Players))
	for _, p := range s.Players {
		contribs = append(contribs, Contribution{PlayerID: p.ID, Amount: p.TotalBet, Folded: p.IsFolded || p.SittingOut})
	}
	pots := ComputePots(contribs)
	// Chips left behind by players removed mid-hand belong to the main pot.
	var potted int64
	for _, pot := range pots {
		potted += pot.Amount
	}
	if len(pots) > 0 && s.Pot > potted {
		pots[0].Amount += s.Pot - potted
	}
	res := HandResult{HandID: s.HandID, Boards: boards, Pots: pots}

	seatOrder := map[string]int{}
	for rank, i := range e.clockwise(s.DealerPos) {
		seatOrder[s.Players[i].ID] = rank
	}

	runs := int64(len(boards))
	for _, pot := range pots {
		share := pot.Amount / runs
		for b, board := range boards {
			amount := share
			if b == 0 {
				amount += pot.Amount - share*runs
			}
			hands := make([]rankedHand, 0, len(pot.Eligible))
			for _, id := range pot.Eligible {
				p, _ := s.Player(id)
				hands = append(hands, e.rankHand(*p, board))
			}
			winners := bestHands(hands)
			sort.Slice(winners, func(i, j int) bool {
				return seatOrder[winners[i].playerID] < seatOrder[winners[j].playerID]
			})
			each := amount / int64(len(winners))
			odd := amount - each*int64(len(winners))
			for i, w := range winners {
				won := each
				if int64(i) < odd {
					won++
				}
				p, _ := s.Player(w.playerID)
				p.Stack += won
				res.Payouts = append(res.Payouts, Payout{PlayerID: w.playerID, Amount: won, Board: b, Description: w.desc})
			}
		}
	}
	s.Pot = 0
	e.endHand()
	return res
}

func bestHands(hands []rankedHand) []rankedHand {
	if len(hands) == 0 {
		return nil
	}
	best := []rankedHand{hands[0]}
	for _, h := range hands[1:] {
		switch c := h.compare(best[0]); {
		case c > 0:
			best = []rankedHand{h}
		case c == 0:
			best = append(best, h)
		}
	}
	return best
}
