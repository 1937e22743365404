package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tree(t *testing.T, js string) any {
	t.Helper()
	var raw any
	require.NoError(t, jsonUnmarshal(js, &raw))
	return raw
}

func TestCalculateDeltaScopesArrayElements(t *testing.T) {
	a := tree(t, `{"players":[{"id":"p1","stack":100},{"id":"p2","stack":200}],"pot":0}`)
	b := tree(t, `{"players":[{"id":"p1","stack":90},{"id":"p2","stack":200}],"pot":10}`)

	delta := CalculateDelta(a, b)
	require.Len(t, delta, 2)
	require.Equal(t, []string{"players", "0", "stack"}, delta[0].Path)
	require.Equal(t, float64(100), delta[0].Old)
	require.Equal(t, float64(90), delta[0].New)
	require.Equal(t, []string{"pot"}, delta[1].Path)
}

func TestCalculateDeltaIdenticalIsEmpty(t *testing.T) {
	a := tree(t, `{"a":[1,2,{"b":null}],"c":"x"}`)
	require.Empty(t, CalculateDelta(a, tree(t, `{"a":[1,2,{"b":null}],"c":"x"}`)))
}

func TestApplyDeltaRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"scalar change", `{"x":1}`, `{"x":2}`},
		{"key added and removed", `{"x":1,"y":2}`, `{"y":2,"z":[1]}`},
		{"array grows", `{"cards":["As"]}`, `{"cards":["As","Kd","7c"]}`},
		{"array shrinks", `{"cards":["As","Kd","7c"]}`, `{"cards":["Qh"]}`},
		{"type change", `{"x":{"y":1}}`, `{"x":[1,2]}`},
		{"null leaf", `{"x":1}`, `{"x":null}`},
		{"nested arrays", `[[1,2],[3]]`, `[[1],[3,4,5],[]]`},
		{"root replace", `1`, `{"a":1}`},
		{"empty to full", `{}`, `{"a":{"b":{"c":[true,false]}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := tree(t, tc.a), tree(t, tc.b)
			got, err := ApplyDelta(a, CalculateDelta(a, b))
			require.NoError(t, err)
			require.Equal(t, b, got)
			require.Equal(t, tree(t, tc.a), a, "input must not be mutated")
		})
	}
}

func TestApplyDeltaRejectsBadPath(t *testing.T) {
	_, err := ApplyDelta(tree(t, `{"a":[1]}`), []Change{{Path: []string{"a", "5"}, New: 1.0}})
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = ApplyDelta(tree(t, `{"a":1}`), []Change{{Path: []string{"a", "b"}, New: 1.0}})
	require.ErrorIs(t, err, ErrInvalidPath)
}
