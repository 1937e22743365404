package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StateChange is one committed step of a VersionedState.
type StateChange struct {
	ID        string    `json:"id"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author,omitempty"`
	Delta     []Change  `json:"delta"`
}

type VersionedState[T any] struct {
	Version  uint64        `json:"version"`
	Checksum string        `json:"checksum"`
	State    T             `json:"state"`
	Changes  []StateChange `json:"changes,omitempty"`
}

// Checksum hashes the canonical JSON of v. encoding/json writes map keys in
// sorted order, so equal trees hash equally.
func Checksum(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func NewVersioned[T any](state T) (VersionedState[T], error) {
	sum, err := Checksum(state)
	if err != nil {
		return VersionedState[T]{}, err
	}
	return VersionedState[T]{Version: 1, Checksum: sum, State: state}, nil
}

// Commit records next as a new version. A next whose checksum matches the
// current one is not a change and returns v untouched.
func (v VersionedState[T]) Commit(next T, author string, at time.Time) (VersionedState[T], bool, error) {
	sum, err := Checksum(next)
	if err != nil {
		return v, false, err
	}
	if sum == v.Checksum {
		return v, false, nil
	}
	before, err := ToTree(v.State)
	if err != nil {
		return v, false, err
	}
	after, err := ToTree(next)
	if err != nil {
		return v, false, err
	}
	out := VersionedState[T]{
		Version:  v.Version + 1,
		Checksum: sum,
		State:    next,
		Changes: append(append([]StateChange(nil), v.Changes...), StateChange{
			ID:        uuid.NewString(),
			Version:   v.Version + 1,
			Timestamp: at,
			Author:    author,
			Delta:     CalculateDelta(before, after),
		}),
	}
	return out, true, nil
}

// Compact keeps only the newest keep changes.
func (v VersionedState[T]) Compact(keep int) VersionedState[T] {
	if keep < 0 {
		keep = 0
	}
	if len(v.Changes) <= keep {
		return v
	}
	v.Changes = append([]StateChange(nil), v.Changes[len(v.Changes)-keep:]...)
	return v
}

// DeltaSince concatenates the deltas that take a holder of version to the
// current version. It reports false when the needed changes were compacted
// away or version is from the future; the caller then sends the full state.
func (v VersionedState[T]) DeltaSince(version uint64) ([]Change, bool) {
	if version == v.Version {
		return nil, true
	}
	if version > v.Version || version == 0 {
		return nil, false
	}
	start := -1
	for i, c := range v.Changes {
		if c.Version == version+1 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	var out []Change
	for _, c := range v.Changes[start:] {
		out = append(out, c.Delta...)
	}
	return out, true
}
