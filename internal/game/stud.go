package game

// MaxStudPlayers keeps a full seven-card deal inside one deck.
const MaxStudPlayers = 7

// StudEngine plays seven-card stud. There is no community board, so the
// street preview and run-it-twice operations report ErrNotApplicable and the
// engine deals each street itself once a betting round closes.
//
// Third street (two down, one up) is bet as preflop, fourth and fifth street
// as flop and turn, and sixth and seventh street are dealt together and bet
// as the river.
type StudEngine struct {
	Engine
}

var _ TableEngine = (*StudEngine)(nil)

func NewStudEngine(cfg EngineConfig, opts ...Option) *StudEngine {
	cfg.Variant = VariantSevenCardStud
	return &StudEngine{Engine: *newEngine(cfg, opts...)}
}

func (e *StudEngine) SeatPlayer(p Player) error {
	if len(e.state.Players) >= MaxStudPlayers {
		return ErrTableFull
	}
	return e.Engine.SeatPlayer(p)
}

// StartNewHand collects an ante of one small blind from everyone dealt in and
// deals third street.
func (e *StudEngine) StartNewHand() error {
	order, _, err := e.beginHand()
	if err != nil {
		return err
	}
	s := &e.state
	for _, i := range order {
		e.post(&s.Players[i], s.SmallBlind)
	}
	e.collectBets()

	s.StudCards = make(map[string]StudCards, len(order))
	for _, i := range order {
		s.StudCards[s.Players[i].ID] = StudCards{Up: []Card{}}
	}
	for _, up := range []bool{false, false, true} {
		if err := e.dealRound(order, up); err != nil {
			return err
		}
	}
	e.openRound()
	_, err = e.advance()
	return err
}

func (e *StudEngine) dealRound(order []int, up bool) error {
	s := &e.state
	for _, i := range order {
		p := &s.Players[i]
		if p.IsFolded {
			continue
		}
		c, err := e.deck.Deal()
		if err != nil {
			return err
		}
		sc := s.StudCards[p.ID]
		if up {
			sc.Up = append(sc.Up, c)
		} else {
			sc.Down = append(sc.Down, c)
			p.HoleCards = append(p.HoleCards, c)
		}
		s.StudCards[p.ID] = sc
	}
	return nil
}

// openRound hands the action to the best visible board. When fewer than two
// players can still bet, the remaining streets are dealt straight away.
func (e *StudEngine) openRound() {
	s := &e.state
	s.ActivePlayer = ""
	var best *Player
	var bestRank HandRank
	canAct := 0
	for _, i := range e.clockwise(s.DealerPos) {
		p := &s.Players[i]
		if p.IsFolded || p.IsAllIn || p.SittingOut {
			continue
		}
		canAct++
		r := Evaluate(s.StudCards[p.ID].Up)
		if best == nil || r.BetterThan(bestRank) {
			best, bestRank = p, r
		}
	}
	if canAct >= 2 {
		s.ActivePlayer = best.ID
	}
}

func (e *StudEngine) ApplyAction(a Action) (ActionResult, error) {
	res, err := e.Engine.ApplyAction(a)
	if err != nil || res.HandComplete || !res.RoundComplete {
		return res, err
	}
	done, err := e.advance()
	if err != nil {
		return res, err
	}
	res.HandComplete = done
	return res, nil
}

// advance deals streets until someone has an action to make or the hand is
// settled, and reports whether it was settled.
func (e *StudEngine) advance() (bool, error) {
	s := &e.state
	for s.ActivePlayer == "" {
		if s.Stage == StageRiver {
			r := e.settle([][]Card{{}})
			e.lastResult = &r
			return true, nil
		}
		if err := e.dealStreet(); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (e *StudEngine) dealStreet() error {
	s := &e.state
	next := NextStreet(s.Stage)
	order := e.live(e.clockwise(s.DealerPos))
	if err := e.dealRound(order, true); err != nil {
		return err
	}
	if next == StageRiver {
		if err := e.dealRound(order, false); err != nil {
			return err
		}
	}
	e.collectBets()
	for i := range s.Players {
		s.Players[i].HasActed = false
	}
	s.Stage = next
	e.openRound()
	e.closeIfNoAction()
	return nil
}

// FinalizeToShowdown deals every remaining street without further betting and
// settles the hand.
func (e *StudEngine) FinalizeToShowdown() (HandResult, error) {
	if !e.handInProgress() {
		return HandResult{}, ErrNoHandInProgress
	}
	if len(e.state.InHand()) == 1 {
		r := e.awardUncontested()
		e.lastResult = &r
		return r, nil
	}
	e.state.ActivePlayer = ""
	for e.state.Stage != StageRiver {
		if err := e.dealStreet(); err != nil {
			return HandResult{}, err
		}
		e.state.ActivePlayer = ""
	}
	r := e.settle([][]Card{{}})
	e.lastResult = &r
	return r, nil
}

func (e *StudEngine) RunItTwiceNow() (HandResult, error) {
	return HandResult{}, ErrNotApplicable
}

func (e *StudEngine) SetRunCount(int) error {
	return ErrNotApplicable
}

func (e *StudEngine) SetRunItTwicePrompt(*RunItTwicePrompt) {}
