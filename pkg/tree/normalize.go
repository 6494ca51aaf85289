package tree

import (
	"fmt"
	"sort"
)

// FromAny converts a value already shaped like decoded JSON — bool,
// string, []interface{}, map[string]interface{}, or a Node itself —
// into a Node. This is the "small normalizer" a host can reach for
// when its parser hands back generic interface{} values instead of
// already producing the tagged-sum shape the evaluator wants; the
// core evaluator itself never calls this, it only ever walks a Node.
//
// A map[string]interface{} has no defined iteration order in Go, so
// the resulting KindMap's entry order is the (unstable) order
// returned by Go's map iteration, sorted by key for determinism
// across repeated calls with the same input. Callers that need the
// caller-supplied order preserved (spec §5) should decode with
// [FromJSON] or [FromYAML] instead, which read an ordered source.
func FromAny(v interface{}) (Node, error) {
	switch val := v.(type) {
	case Node:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case []interface{}:
		items := make([]Node, len(val))
		for i, c := range val {
			node, err := FromAny(c)
			if err != nil {
				return Node{}, fmt.Errorf("element %d: %w", i, err)
			}
			items[i] = node
		}
		return List(items...), nil
	case []Node:
		return List(val...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			node, err := FromAny(val[k])
			if err != nil {
				return Node{}, fmt.Errorf("key %q: %w", k, err)
			}
			entries = append(entries, Entry{Key: k, Value: node})
		}
		return Map(entries...), nil
	default:
		return Node{}, fmt.Errorf("tree: cannot normalize value of type %T into a permission tree node", v)
	}
}
