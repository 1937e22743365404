// Package recovery keeps the process's working set of table engines and
// backs it with durable snapshots, so a table can be picked up by whichever
// process next receives a request for it.
package recovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"holdem-server/internal/game"
	"holdem-server/internal/store"
)

var ErrNotFound = errors.New("table_not_found")

// BlobStore is the durable key-value store for engine snapshots.
// *store.Store satisfies it.
type BlobStore interface {
	GetTableState(ctx context.Context, tableID string) (store.TableStateRow, error)
	PutTableState(ctx context.Context, tableID string, schemaVersion int, blob []byte) error
	DeleteTableState(ctx context.Context, tableID string) error
}

type Option func(*Manager)

// WithTimeout bounds each durable store call.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithEngineOptions are passed to game.RestoreEngine.
func WithEngineOptions(opts ...game.Option) Option {
	return func(m *Manager) { m.engineOpts = opts }
}

// Manager owns the working set. A nil BlobStore keeps tables in memory only.
type Manager struct {
	blobs      BlobStore
	timeout    time.Duration
	engineOpts []game.Option

	mu     sync.Mutex
	active map[string]game.TableEngine
	group  singleflight.Group
}

func New(blobs BlobStore, opts ...Option) *Manager {
	m := &Manager{
		blobs:   blobs,
		timeout: 2 * time.Second,
		active:  map[string]game.TableEngine{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Durable reports whether snapshots reach a durable store.
func (m *Manager) Durable() bool {
	return m.blobs != nil
}

func (m *Manager) lookup(tableID string) game.TableEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[tableID]
}

// Persist makes eng the working copy for tableID and writes its snapshot.
// Storage failures are logged and counted, never returned: play carries on
// from memory.
func (m *Manager) Persist(ctx context.Context, tableID string, eng game.TableEngine) {
	m.mu.Lock()
	m.active[tableID] = eng
	m.mu.Unlock()

	if m.blobs == nil {
		return
	}
	blob, err := eng.Serialize()
	if err != nil {
		persistFailures.Add(1)
		log.Error().Err(err).Str("table_id", tableID).Msg("serialize table state failed")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.blobs.PutTableState(ctx, tableID, game.SnapshotSchemaVersion, blob); err != nil {
		persistFailures.Add(1)
		log.Error().Err(err).Str("table_id", tableID).Int("bytes", len(blob)).Msg("persist table state failed")
		return
	}
	persisted.Add(1)
}

// Restore loads and validates the last snapshot for tableID. Anything short
// of a valid snapshot for that table, including store errors, is reported as
// ErrNotFound.
func (m *Manager) Restore(ctx context.Context, tableID string) (game.TableEngine, error) {
	if m.blobs == nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	row, err := m.blobs.GetTableState(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		restoreFailures.Add(1)
		log.Error().Err(err).Str("table_id", tableID).Msg("load table state failed")
		return nil, ErrNotFound
	}
	if row.SchemaVersion != game.SnapshotSchemaVersion {
		invalidSnapshots.Add(1)
		log.Warn().Str("table_id", tableID).Int("schema_version", row.SchemaVersion).Msg("table state schema mismatch")
		return nil, ErrNotFound
	}
	eng, err := game.RestoreEngine(row.StateBlob, m.engineOpts...)
	if err != nil {
		invalidSnapshots.Add(1)
		log.Warn().Err(err).Str("table_id", tableID).Msg("table state failed validation")
		return nil, ErrNotFound
	}
	if got := eng.State().TableID; got != tableID {
		invalidSnapshots.Add(1)
		log.Warn().Str("table_id", tableID).Str("snapshot_table_id", got).Msg("table state belongs to another table")
		return nil, ErrNotFound
	}
	restored.Add(1)
	return eng, nil
}

// GetOrRestore returns the working copy for tableID, restoring it on a miss.
// Concurrent misses for one table share a single restore so only one engine
// ever enters the working set.
func (m *Manager) GetOrRestore(ctx context.Context, tableID string) (game.TableEngine, error) {
	if eng := m.lookup(tableID); eng != nil {
		return eng, nil
	}
	v, err, _ := m.group.Do(tableID, func() (any, error) {
		if eng := m.lookup(tableID); eng != nil {
			return eng, nil
		}
		eng, err := m.Restore(ctx, tableID)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.active[tableID]; ok {
			return existing, nil
		}
		m.active[tableID] = eng
		return eng, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(game.TableEngine), nil
}

// Evict drops the working copy. The durable snapshot is kept.
func (m *Manager) Evict(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, tableID)
}

// Delete drops the table from memory and from durable storage.
func (m *Manager) Delete(ctx context.Context, tableID string) error {
	m.Evict(tableID)
	if m.blobs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.blobs.DeleteTableState(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// Active lists table ids in the working set.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
