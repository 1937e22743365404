package tablegateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"holdem-server/internal/game/viewmodel"
	"holdem-server/internal/reconcile"
)

// PlayerState is the table as playerID may see it.
func (c *Coordinator) PlayerState(ctx context.Context, tableID, playerID string) (viewmodel.TableView, error) {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return viewmodel.TableView{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !seated(rt, playerID) {
		return viewmodel.TableView{}, ErrPlayerNotSeated
	}
	return c.viewLocked(rt, playerID), nil
}

// PublicState is the spectator view.
func (c *Coordinator) PublicState(ctx context.Context, tableID string) (viewmodel.TableView, error) {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return viewmodel.TableView{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return c.viewLocked(rt, ""), nil
}

// SyncState brings a client's copy of its view up to date. The server keeps
// a versioned copy per viewer, advanced on every sync; the client gets the
// delta from its version, or the full view when that history was compacted.
// Client-side changes never win: conflicts are reported and run through the
// reconciler, but its result is only checked against the server copy and
// never returned. The response always describes the server's version.
func (c *Coordinator) SyncState(ctx context.Context, tableID string, req SyncRequest) (SyncResponse, error) {
	rt, err := c.runtime(ctx, tableID)
	if err != nil {
		return SyncResponse{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if req.PlayerID != "" {
		if !seated(rt, req.PlayerID) {
			return SyncResponse{}, ErrPlayerNotSeated
		}
	}

	view := c.viewLocked(rt, req.PlayerID)
	// The broadcast sequence changes on every event; it is not table state.
	view.Sequence = 0

	server, ok := rt.views[req.PlayerID]
	if !ok {
		server, err = reconcile.NewVersioned(view)
	} else {
		server, _, err = server.Commit(view, "server", c.clock.Now())
	}
	if err != nil {
		return SyncResponse{}, err
	}
	server = server.Compact(c.cfg.SyncHistory)
	rt.views[req.PlayerID] = server

	resp := SyncResponse{Version: server.Version, Checksum: server.Checksum}
	if len(req.Changes) > 0 {
		client := reconcile.VersionedState[viewmodel.TableView]{
			Version:  req.Version,
			Checksum: req.Checksum,
			Changes:  req.Changes,
		}
		resp.Conflicts = reconcile.DetectConflicts(client, server)
		resolved, err := c.reconciler.ResolveConflicts(client, server, resp.Conflicts)
		if err != nil {
			return SyncResponse{}, err
		}
		if resolved.Checksum != server.Checksum {
			log.Warn().Str("table_id", tableID).Msg("sync resolution diverged from server copy")
		}
	}

	if req.Version == server.Version && req.Checksum == server.Checksum {
		resp.UpToDate = true
		return resp, nil
	}
	if delta, ok := server.DeltaSince(req.Version); ok && req.Version != server.Version {
		resp.Delta = delta
		return resp, nil
	}
	state := server.State
	resp.State = &state
	return resp, nil
}

func seated(rt *tableRuntime, playerID string) bool {
	st := rt.engine.State()
	p, _ := st.Player(playerID)
	return p != nil
}
