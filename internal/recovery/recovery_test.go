package recovery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"holdem-server/internal/game"
	"holdem-server/internal/store"
)

type memBlobs struct {
	mu      sync.Mutex
	rows    map[string]store.TableStateRow
	gets    atomic.Int32
	failPut bool
	failGet bool
	delay   time.Duration
}

func newMemBlobs() *memBlobs {
	return &memBlobs{rows: map[string]store.TableStateRow{}}
}

func (b *memBlobs) GetTableState(ctx context.Context, tableID string) (store.TableStateRow, error) {
	b.gets.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet {
		return store.TableStateRow{}, errors.New("connection refused")
	}
	row, ok := b.rows[tableID]
	if !ok {
		return store.TableStateRow{}, store.ErrNotFound
	}
	return row, nil
}

func (b *memBlobs) PutTableState(ctx context.Context, tableID string, version int, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return errors.New("connection refused")
	}
	b.rows[tableID] = store.TableStateRow{TableID: tableID, StateBlob: blob, SchemaVersion: version, UpdatedAt: time.Now()}
	return nil
}

func (b *memBlobs) DeleteTableState(ctx context.Context, tableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rows[tableID]; !ok {
		return store.ErrNotFound
	}
	delete(b.rows, tableID)
	return nil
}

func startedEngine(t *testing.T, tableID string) *game.Engine {
	t.Helper()
	eng, err := game.NewEngine(game.EngineConfig{TableID: tableID, SmallBlind: 5, BigBlind: 10})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for i, id := range []string{"p1", "p2"} {
		if err := eng.SeatPlayer(game.Player{ID: id, Seat: i, Stack: 1000}); err != nil {
			t.Fatalf("seat: %v", err)
		}
	}
	if err := eng.StartNewHand(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return eng
}

func TestPersistThenRestoreInFreshProcess(t *testing.T) {
	blobs := newMemBlobs()
	eng := startedEngine(t, "t1")
	New(blobs).Persist(context.Background(), "t1", eng)

	fresh := New(blobs)
	got, err := fresh.GetOrRestore(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get or restore: %v", err)
	}
	if got.State().HandID != eng.State().HandID || got.State().ChipTotal() != 2000 {
		t.Fatalf("restored state differs: %+v", got.State())
	}
	if ids := fresh.Active(); len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("restored engine not in working set: %v", ids)
	}

	again, _ := fresh.GetOrRestore(context.Background(), "t1")
	if again != got || blobs.gets.Load() != 1 {
		t.Fatalf("second lookup should hit the working set (gets=%d)", blobs.gets.Load())
	}
}

func TestRestoreMissingOrInvalidIsNotFound(t *testing.T) {
	blobs := newMemBlobs()
	m := New(blobs)
	if _, err := m.Restore(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	blobs.rows["bad"] = store.TableStateRow{TableID: "bad", StateBlob: []byte(`{"schema_version":1,"state":{"table_id":""}}`), SchemaVersion: game.SnapshotSchemaVersion}
	if _, err := m.GetOrRestore(context.Background(), "bad"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("invalid blob should be not found, got %v", err)
	}

	old := startedEngine(t, "old")
	blob, _ := old.Serialize()
	blobs.rows["old"] = store.TableStateRow{TableID: "old", StateBlob: blob, SchemaVersion: 0}
	if _, err := m.Restore(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("schema mismatch should be not found, got %v", err)
	}

	blobs.rows["other"] = store.TableStateRow{TableID: "other", StateBlob: blob, SchemaVersion: game.SnapshotSchemaVersion}
	if _, err := m.Restore(context.Background(), "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("snapshot for another table should be not found, got %v", err)
	}

	blobs.failGet = true
	if _, err := m.Restore(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("store failure should be not found, got %v", err)
	}
	if len(m.Active()) != 0 {
		t.Fatalf("nothing should enter the working set: %v", m.Active())
	}
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	blobs := newMemBlobs()
	blobs.failPut = true
	m := New(blobs)
	eng := startedEngine(t, "t1")
	m.Persist(context.Background(), "t1", eng)

	got, err := m.GetOrRestore(context.Background(), "t1")
	if err != nil || got != eng {
		t.Fatalf("engine should stay in memory after a failed write: %v", err)
	}
}

func TestInMemoryOnlyManager(t *testing.T) {
	m := New(nil)
	if m.Durable() {
		t.Fatal("nil store is not durable")
	}
	if _, err := m.GetOrRestore(context.Background(), "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	eng := startedEngine(t, "t1")
	m.Persist(context.Background(), "t1", eng)
	got, err := m.GetOrRestore(context.Background(), "t1")
	if err != nil || got != eng {
		t.Fatalf("expected working copy, got %v", err)
	}
	m.Evict("t1")
	if _, err := m.GetOrRestore(context.Background(), "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("evicted in-memory table is gone, got %v", err)
	}
}

func TestConcurrentMissesShareOneRestore(t *testing.T) {
	blobs := newMemBlobs()
	New(blobs).Persist(context.Background(), "t1", startedEngine(t, "t1"))
	blobs.delay = 50 * time.Millisecond

	m := New(blobs)
	var wg sync.WaitGroup
	engines := make([]game.TableEngine, 8)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, err := m.GetOrRestore(context.Background(), "t1")
			if err != nil {
				t.Errorf("get or restore: %v", err)
				return
			}
			engines[i] = eng
		}(i)
	}
	wg.Wait()
	for _, eng := range engines[1:] {
		if eng != engines[0] {
			t.Fatal("concurrent restores produced divergent engines")
		}
	}
}

func TestDeleteRemovesDurableCopy(t *testing.T) {
	blobs := newMemBlobs()
	m := New(blobs)
	m.Persist(context.Background(), "t1", startedEngine(t, "t1"))
	if err := m.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetOrRestore(context.Background(), "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := m.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("deleting a missing table is not an error: %v", err)
	}
}
