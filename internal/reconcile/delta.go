// Package reconcile computes path-scoped deltas between JSON-like trees and
// resolves divergent client and server copies of a versioned state.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidPath = errors.New("invalid_delta_path")

// Change addresses one leaf. Array indices are path segments in decimal.
// Deleted distinguishes removal from setting a null value.
type Change struct {
	Path    []string `json:"path"`
	Old     any      `json:"old,omitempty"`
	New     any      `json:"new,omitempty"`
	Deleted bool     `json:"deleted,omitempty"`
}

func (c Change) String() string {
	return "/" + strings.Join(c.Path, "/")
}

// CalculateDelta deep-compares two trees built from map[string]any, []any
// and scalars. Map keys are visited in sorted order so equal inputs always
// give the same delta. Array elements past the end of the new array are
// deleted from the highest index down.
func CalculateDelta(oldState, newState any) []Change {
	var out []Change
	diff(nil, oldState, newState, &out)
	return out
}

func childPath(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func diff(path []string, a, b any, out *[]Change) {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			*out = append(*out, Change{Path: path, Old: a, New: b})
			return
		}
		keys := make([]string, 0, len(av)+len(bv))
		for k := range av {
			keys = append(keys, k)
		}
		for k := range bv {
			if _, ok := av[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			ao, inA := av[k]
			bo, inB := bv[k]
			switch {
			case inA && inB:
				diff(childPath(path, k), ao, bo, out)
			case inB:
				*out = append(*out, Change{Path: childPath(path, k), New: bo})
			default:
				*out = append(*out, Change{Path: childPath(path, k), Old: ao, Deleted: true})
			}
		}
	case []any:
		bv, ok := b.([]any)
		if !ok {
			*out = append(*out, Change{Path: path, Old: a, New: b})
			return
		}
		n := min(len(av), len(bv))
		for i := 0; i < n; i++ {
			diff(childPath(path, strconv.Itoa(i)), av[i], bv[i], out)
		}
		for i := n; i < len(bv); i++ {
			*out = append(*out, Change{Path: childPath(path, strconv.Itoa(i)), New: bv[i]})
		}
		for i := len(av) - 1; i >= len(bv); i-- {
			*out = append(*out, Change{Path: childPath(path, strconv.Itoa(i)), Old: av[i], Deleted: true})
		}
	default:
		if !reflect.DeepEqual(a, b) {
			*out = append(*out, Change{Path: path, Old: a, New: b})
		}
	}
}

// ApplyDelta replays delta in order against a copy of state.
func ApplyDelta(state any, delta []Change) (any, error) {
	root := deepCopy(state)
	for _, c := range delta {
		next, err := applyChange(root, c.Path, c)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, c, err)
		}
		root = next
	}
	return root, nil
}

func applyChange(node any, path []string, c Change) (any, error) {
	if len(path) == 0 {
		if c.Deleted {
			return nil, nil
		}
		return deepCopy(c.New), nil
	}
	seg, rest := path[0], path[1:]
	switch n := node.(type) {
	case nil:
		return applyChange(map[string]any{}, path, c)
	case map[string]any:
		if len(rest) == 0 && c.Deleted {
			delete(n, seg)
			return n, nil
		}
		child, err := applyChange(n[seg], rest, c)
		if err != nil {
			return nil, err
		}
		n[seg] = child
		return n, nil
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i > len(n) {
			return nil, fmt.Errorf("index %q out of range for length %d", seg, len(n))
		}
		if len(rest) == 0 && c.Deleted {
			if i == len(n) {
				return nil, fmt.Errorf("index %d out of range for length %d", i, len(n))
			}
			return append(n[:i:i], n[i+1:]...), nil
		}
		if i == len(n) {
			child, err := applyChange(nil, rest, c)
			if err != nil {
				return nil, err
			}
			return append(n, child), nil
		}
		child, err := applyChange(n[i], rest, c)
		if err != nil {
			return nil, err
		}
		n[i] = child
		return n, nil
	default:
		return nil, fmt.Errorf("segment %q addresses a scalar", seg)
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

// ToTree converts a typed value into its JSON tree form.
func ToTree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// FromTree decodes a JSON tree back into T.
func FromTree[T any](tree any) (T, error) {
	var out T
	raw, err := json.Marshal(tree)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
