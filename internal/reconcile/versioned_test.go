package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

type view struct {
	Stage string   `json:"stage"`
	Board []string `json:"board"`
	Pot   int64    `json:"pot"`
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestCommitRecordsDeltaAndVersion(t *testing.T) {
	v, err := NewVersioned(view{Stage: "preflop", Board: []string{}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), v.Version)

	next, changed, err := v.Commit(view{Stage: "flop", Board: []string{"As", "Kd", "7c"}, Pot: 20}, "server", t0)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, uint64(2), next.Version)
	require.Len(t, next.Changes, 1)
	require.NotEmpty(t, next.Changes[0].ID)
	require.NotEqual(t, v.Checksum, next.Checksum)

	same, changed, err := next.Commit(next.State, "server", t0)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, next.Version, same.Version)
}

func TestDeltaSinceCatchesUpOldCopy(t *testing.T) {
	v, _ := NewVersioned(view{Stage: "preflop", Board: []string{}})
	old := v
	v, _, _ = v.Commit(view{Stage: "flop", Board: []string{"As", "Kd", "7c"}}, "", t0)
	v, _, _ = v.Commit(view{Stage: "turn", Board: []string{"As", "Kd", "7c", "2h"}, Pot: 40}, "", t0)

	delta, ok := v.DeltaSince(old.Version)
	require.True(t, ok)
	before, err := ToTree(old.State)
	require.NoError(t, err)
	after, err := ApplyDelta(before, delta)
	require.NoError(t, err)
	got, err := FromTree[view](after)
	require.NoError(t, err)
	require.Equal(t, v.State, got)

	_, ok = v.Compact(1).DeltaSince(old.Version)
	require.False(t, ok, "compacted history cannot serve an old version")

	delta, ok = v.DeltaSince(v.Version)
	require.True(t, ok)
	require.Empty(t, delta)

	_, ok = v.DeltaSince(v.Version + 3)
	require.False(t, ok)
}

func TestCompactKeepsNewest(t *testing.T) {
	v, _ := NewVersioned(view{})
	for i := 1; i <= 4; i++ {
		v, _, _ = v.Commit(view{Pot: int64(i)}, "", t0)
	}
	c := v.Compact(2)
	require.Len(t, c.Changes, 2)
	require.Equal(t, uint64(5), c.Changes[1].Version)
	require.Len(t, v.Changes, 4, "compact must not alter the receiver's history")
}
