package tablegateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"holdem-server/internal/game"
	"holdem-server/internal/game/lifecycle"
	"holdem-server/internal/game/viewmodel"
	"holdem-server/internal/ledger"
	"holdem-server/internal/reconcile"
	"holdem-server/internal/recovery"
	"holdem-server/internal/reveal"
	"holdem-server/internal/tableguard"
)

type tableSettings struct {
	buyIn       int64
	rebuyLimit  int
	autoAdvance bool
}

type tableRuntime struct {
	mu       sync.Mutex
	id       string
	engine   game.TableEngine
	machine  *lifecycle.Machine
	settings tableSettings
	staged   *game.TableState
	// manual is set once a player advances streets during a runout; the
	// rest of that hand is dealt only on request.
	manual     bool
	views      map[string]reconcile.VersionedState[viewmodel.TableView]
	lastActive time.Time
}

type Option func(*Coordinator)

func WithClock(clock reveal.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithRandom replaces the draw used to break run-it-twice ties.
func WithRandom(intn reveal.IntN) Option {
	return func(c *Coordinator) { c.intn = intn }
}

// WithEngineOptions applies to engines built for new tables.
func WithEngineOptions(opts ...game.Option) Option {
	return func(c *Coordinator) { c.engineOpts = opts }
}

// Coordinator is the server-lifetime registry of tables. It owns the
// working set, the guards, the reveal scheduler and the broadcast path, and
// serializes every mutation of a table behind that table's mutex.
type Coordinator struct {
	cfg        Config
	recovery   *recovery.Manager
	guards     *tableguard.Guards
	scheduler  *reveal.Scheduler
	ledger     *ledger.Ledger
	publisher  Publisher
	seq        *Sequencer
	clock      reveal.Clock
	intn       reveal.IntN
	engineOpts []game.Option
	reconciler *reconcile.Reconciler[viewmodel.TableView]

	mu     sync.Mutex
	tables map[string]*tableRuntime
}

func NewCoordinator(rec *recovery.Manager, cfg Config, opts ...Option) *Coordinator {
	if rec == nil {
		rec = recovery.New(nil)
	}
	c := &Coordinator{
		cfg:      cfg,
		recovery: rec,
		ledger:   ledger.New(),
		seq:      NewSequencer(),
		tables:   map[string]*tableRuntime{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = reveal.RealClock{}
	}
	if c.intn == nil {
		c.intn = reveal.CryptoIntN
	}
	if c.publisher == nil {
		c.publisher = NewTopicPublisher(cfg.EventBufferSize)
	}
	c.guards = tableguard.New(cfg.DuplicateAdvanceWindow, c.clock.Now)
	c.scheduler = reveal.NewScheduler(c, c.clock, cfg.RevealDelay)
	c.reconciler = reconcile.NewReconciler[viewmodel.TableView]()
	c.reconciler.Register(reconcile.ConflictOverride, func(client, current reconcile.VersionedState[viewmodel.TableView], cf reconcile.Conflict) (reconcile.VersionedState[viewmodel.TableView], error) {
		metricSyncOverrides.Add(1)
		log.Debug().Str("change_id", cf.ChangeID).Msg("client change superseded by server")
		return current, nil
	})
	return c
}

// Publisher returns the broadcast sink, e.g. for mounting SSE streams.
func (c *Coordinator) Publisher() Publisher {
	return c.publisher
}

// Close stops every pending runout.
func (c *Coordinator) Close() {
	c.scheduler.Close()
}

func (c *Coordinator) loaded(tableID string) *tableRuntime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables[tableID]
}

// runtime returns the table's runtime, restoring it from durable storage
// when this process has not seen it yet.
func (c *Coordinator) runtime(ctx context.Context, tableID string) (*tableRuntime, error) {
	if tableID == "" {
		return nil, ErrTableNotFound
	}
	if rt := c.loaded(tableID); rt != nil {
		return rt, nil
	}
	eng, err := c.recovery.GetOrRestore(ctx, tableID)
	if errors.Is(err, recovery.ErrNotFound) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rt := c.tables[tableID]; rt != nil {
		return rt, nil
	}
	st := eng.State()
	rt := c.newRuntime(tableID, eng, defaultSettings(st, c.cfg), lifecycleStateFor(st))
	c.tables[tableID] = rt
	c.ledger.Snapshot(st)
	metricTablesRestored.Add(1)
	log.Info().
		Str("table_id", tableID).
		Str("hand_id", st.HandID).
		Str("lifecycle_state", string(rt.machine.State())).
		Msg("table restored")
	return rt, nil
}

func (c *Coordinator) newRuntime(tableID string, eng game.TableEngine, settings tableSettings, state lifecycle.State) *tableRuntime {
	return &tableRuntime{
		id:       tableID,
		engine:   eng,
		settings: settings,
		machine: lifecycle.Resume(eng, state,
			lifecycle.WithRecoveryLimit(c.cfg.RecoveryPointLimit),
			lifecycle.WithClock(c.clock.Now),
		),
		views:      map[string]reconcile.VersionedState[viewmodel.TableView]{},
		lastActive: c.clock.Now(),
	}
}

func defaultSettings(st game.TableState, cfg Config) tableSettings {
	return tableSettings{
		buyIn:       st.BigBlind * DefaultBuyInBigBlinds,
		rebuyLimit:  cfg.DefaultRebuyLimit,
		autoAdvance: true,
	}
}

// lifecycleStateFor places a restored table in the lifecycle.
func lifecycleStateFor(st game.TableState) lifecycle.State {
	switch {
	case st.HandID == "":
		return lifecycle.StateWaitingForPlayers
	case st.Stage == game.StageShowdown:
		return lifecycle.StateFinished
	case st.Variant.IsStud():
		return lifecycle.StatePreFlop
	}
	return streetState(st.Stage)
}

var streetOrder = []lifecycle.State{lifecycle.StatePreFlop, lifecycle.StateFlop, lifecycle.StateTurn, lifecycle.StateRiver}

func streetState(stage game.Stage) lifecycle.State {
	switch stage {
	case game.StageFlop:
		return lifecycle.StateFlop
	case game.StageTurn:
		return lifecycle.StateTurn
	case game.StageRiver:
		return lifecycle.StateRiver
	default:
		return lifecycle.StatePreFlop
	}
}

// machineReached reports whether the machine already stands on street or a
// later one, as it does after staged runout reveals.
func machineReached(m *lifecycle.Machine, street game.Stage) bool {
	at, want := -1, -1
	for i, s := range streetOrder {
		if s == m.State() {
			at = i
		}
		if s == streetState(street) {
			want = i
		}
	}
	return at >= 0 && at >= want
}

func handInProgress(st game.TableState) bool {
	return st.HandID != "" && game.IsBettingStage(st.Stage)
}

func (c *Coordinator) persistLocked(ctx context.Context, rt *tableRuntime) {
	rt.lastActive = c.clock.Now()
	c.recovery.Persist(ctx, rt.id, rt.engine)
}

func (c *Coordinator) verifyLocked(rt *tableRuntime) {
	// Logged and counted inside the ledger; play is not interrupted.
	_ = c.ledger.Verify(rt.id, rt.engine.State())
}

// WithTable runs fn holding the table. It is the reveal scheduler's only way
// in, so timer callbacks and requests never mutate a table concurrently.
func (c *Coordinator) WithTable(tableID string, fn func(eng game.TableEngine) error) error {
	rt := c.loaded(tableID)
	if rt == nil {
		return ErrTableNotFound
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return fn(rt.engine)
}

// PublishReveal is called by the scheduler, holding the table, for each
// street of a runout.
func (c *Coordinator) PublishReveal(tableID string, staged game.TableState) {
	rt := c.loaded(tableID)
	if rt == nil {
		return
	}
	st := staged.Clone()
	rt.staged = &st
	if err := rt.machine.Transition(lifecycle.ActionAdvance); err != nil {
		log.Warn().Err(err).Str("table_id", tableID).Str("stage", string(staged.Stage)).Msg("lifecycle rejected runout street")
	}
	c.publishStateLocked(rt, "street_revealed", staged, map[string]any{"stage": staged.Stage})
}

// FinishRunout is called by the scheduler, holding the table, once the
// engine has settled the runout.
func (c *Coordinator) FinishRunout(tableID string, eng game.TableEngine, res game.HandResult) {
	rt := c.loaded(tableID)
	if rt == nil {
		return
	}
	rt.staged = nil
	c.finishHandLocked(rt, &res)
	c.persistLocked(context.Background(), rt)
}

// currentStateLocked is the state viewers should see: the staged runout
// projection while one is in flight, the engine state otherwise.
func (c *Coordinator) currentStateLocked(rt *tableRuntime) game.TableState {
	if rt.staged != nil && c.scheduler.Pending(rt.id) {
		return rt.staged.Clone()
	}
	return rt.engine.State()
}

func (c *Coordinator) viewLocked(rt *tableRuntime, viewerID string) viewmodel.TableView {
	st := reveal.Present(c.currentStateLocked(rt))
	if viewerID == "" {
		st = viewmodel.SanitizeForBroadcast(st)
	} else {
		st = viewmodel.SanitizeForViewer(st, viewerID)
	}
	view := viewmodel.BuildTableView(st)
	view.Sequence = c.seq.Current(rt.id)
	return view
}

func (c *Coordinator) publishLocked(rt *tableRuntime, kind string, data any) {
	c.publishStateLocked(rt, kind, c.currentStateLocked(rt), data)
}

// publishStateLocked sends st to the table topic and to each seated player's
// topic, sanitized per audience and stamped with the next sequence number.
func (c *Coordinator) publishStateLocked(rt *tableRuntime, kind string, st game.TableState, data any) {
	seq := c.seq.Next(rt.id)
	st = reveal.Present(st)

	public := viewmodel.BuildTableView(viewmodel.SanitizeForBroadcast(st))
	public.Sequence = seq
	c.emit(PublicTopic(rt.id), Event{Type: kind, TableID: rt.id, Seq: seq, State: &public, Data: data})

	for _, p := range st.Players {
		view := viewmodel.BuildTableView(viewmodel.SanitizeForViewer(st, p.ID))
		view.Sequence = seq
		c.emit(PlayerTopic(rt.id, p.ID), Event{Type: kind, TableID: rt.id, Seq: seq, State: &view, Data: data})
	}
}

func (c *Coordinator) emit(topic string, ev Event) {
	if err := c.publisher.Publish(topic, ev); err != nil {
		metricPublishFailures.Add(1)
		log.Warn().Err(err).Str("table_id", ev.TableID).Str("topic", topic).Str("event", ev.Type).Msg("publish failed")
		return
	}
	metricEventsPublished.Add(1)
}

// StartJanitor periodically evicts idle tables from memory.
func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.EvictIdle(ctx, c.clock.Now())
			}
		}
	}()
}

// EvictIdle drops tables untouched for longer than the idle TTL from the
// working set after a final persist. Nothing is evicted without durable
// storage, since eviction would then lose the table. Tables with a runout or
// a rebuy decision outstanding stay.
func (c *Coordinator) EvictIdle(ctx context.Context, now time.Time) int {
	if !c.recovery.Durable() || c.cfg.IdleTableTTL <= 0 {
		return 0
	}
	c.mu.Lock()
	candidates := make([]*tableRuntime, 0, len(c.tables))
	for _, rt := range c.tables {
		candidates = append(candidates, rt)
	}
	c.mu.Unlock()

	evicted := 0
	for _, rt := range candidates {
		rt.mu.Lock()
		idle := now.Sub(rt.lastActive) > c.cfg.IdleTableTTL
		busy := c.scheduler.Pending(rt.id) || c.guards.Rebuys.HasPending(rt.id) || c.guards.HandStart.Held(rt.id)
		if idle && !busy {
			c.recovery.Persist(ctx, rt.id, rt.engine)
			c.recovery.Evict(rt.id)
			c.guards.Advance.Forget(rt.id)
			c.ledger.Forget(rt.id)
			c.mu.Lock()
			delete(c.tables, rt.id)
			c.mu.Unlock()
			evicted++
			metricTablesEvicted.Add(1)
			log.Info().Str("table_id", rt.id).Msg("idle table evicted")
		}
		rt.mu.Unlock()
	}
	return evicted
}

// Preload restores the given tables into the working set, typically the ones
// active shortly before a restart. Tables that cannot be restored are skipped.
func (c *Coordinator) Preload(ctx context.Context, tableIDs []string) int {
	loaded := 0
	for _, id := range tableIDs {
		if _, err := c.runtime(ctx, id); err != nil {
			log.Warn().Err(err).Str("table_id", id).Msg("preload table failed")
			continue
		}
		loaded++
	}
	return loaded
}
