package reconcile

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

type ConflictType string

const (
	ConflictMerge    ConflictType = "merge"
	ConflictOverride ConflictType = "override"
)

type Resolution string

const (
	ResolveClient Resolution = "client"
	ResolveServer Resolution = "server"
	ResolveMerge  Resolution = "merge"
)

type Conflict struct {
	Type          ConflictType `json:"type"`
	ChangeID      string       `json:"change_id,omitempty"`
	ClientVersion uint64       `json:"client_version"`
	ServerVersion uint64       `json:"server_version"`
	Resolution    Resolution   `json:"resolution"`
}

// DetectConflicts reports a merge conflict when the versions differ and an
// override conflict for every client change the server also holds with a
// strictly later timestamp.
func DetectConflicts[T any](client, server VersionedState[T]) []Conflict {
	var out []Conflict
	if client.Version != server.Version {
		out = append(out, Conflict{
			Type:          ConflictMerge,
			ClientVersion: client.Version,
			ServerVersion: server.Version,
			Resolution:    ResolveServer,
		})
	}
	serverChanges := indexChanges(server.Changes)
	for _, c := range client.Changes {
		sc, ok := serverChanges[c.ID]
		if ok && sc.Timestamp.After(c.Timestamp) {
			out = append(out, Conflict{
				Type:          ConflictOverride,
				ChangeID:      c.ID,
				ClientVersion: client.Version,
				ServerVersion: server.Version,
				Resolution:    ResolveServer,
			})
		}
	}
	return out
}

func indexChanges(changes []StateChange) map[string]StateChange {
	out := make(map[string]StateChange, len(changes))
	for _, c := range changes {
		out[c.ID] = c
	}
	return out
}

// Handler resolves one conflict given the client copy and the result so far.
type Handler[T any] func(client, current VersionedState[T], c Conflict) (VersionedState[T], error)

// Reconciler applies conflicts in order. Handlers registered for a conflict
// type take precedence over the conflict's declared resolution.
type Reconciler[T any] struct {
	handlers map[ConflictType]Handler[T]
}

func NewReconciler[T any]() *Reconciler[T] {
	return &Reconciler[T]{handlers: map[ConflictType]Handler[T]{}}
}

func (r *Reconciler[T]) Register(t ConflictType, h Handler[T]) {
	r.handlers[t] = h
}

// ResolveConflicts folds conflicts over the server copy. The result depends
// only on its inputs, so resolving the same set twice gives the same state.
func (r *Reconciler[T]) ResolveConflicts(client, server VersionedState[T], conflicts []Conflict) (VersionedState[T], error) {
	current := server
	for _, c := range conflicts {
		if h, ok := r.handlers[c.Type]; ok {
			next, err := h(client, current, c)
			if err != nil {
				return server, fmt.Errorf("resolve %s conflict: %w", c.Type, err)
			}
			current = next
			continue
		}
		switch c.Resolution {
		case ResolveClient:
			current = client
		case ResolveServer:
			current = server
		case ResolveMerge:
			merged, err := Merge(client, current)
			if err != nil {
				return server, err
			}
			current = merged
		default:
			return server, fmt.Errorf("unknown resolution %q", c.Resolution)
		}
	}
	return current, nil
}

// Merge takes server as the base and replays each client change the server
// lacks, or holds with an older timestamp. Changes that no longer address a
// valid path on the server tree are skipped.
func Merge[T any](client, server VersionedState[T]) (VersionedState[T], error) {
	tree, err := ToTree(server.State)
	if err != nil {
		return server, err
	}
	serverChanges := indexChanges(server.Changes)
	changes := append([]StateChange(nil), server.Changes...)
	replayed := 0
	for _, c := range client.Changes {
		sc, ok := serverChanges[c.ID]
		if ok && !sc.Timestamp.Before(c.Timestamp) {
			continue
		}
		next, err := ApplyDelta(tree, c.Delta)
		if err != nil {
			log.Debug().Err(err).Str("change_id", c.ID).Msg("skip client change on merge")
			continue
		}
		tree = next
		replayed++
		if ok {
			for i := range changes {
				if changes[i].ID == c.ID {
					changes[i] = c
				}
			}
		} else {
			changes = append(changes, c)
		}
	}
	if replayed == 0 {
		return server, nil
	}
	state, err := FromTree[T](tree)
	if err != nil {
		return server, err
	}
	sum, err := Checksum(state)
	if err != nil {
		return server, err
	}
	return VersionedState[T]{
		Version:  max(client.Version, server.Version) + 1,
		Checksum: sum,
		State:    state,
		Changes:  changes,
	}, nil
}
