// Package tree implements the permission tree data model: a small,
// recursive, JSON-shaped expression language composed of boolean
// literals, permission-value strings, ordered lists, and ordered maps.
//
// A [Node] is a tagged sum over those four shapes. The evaluator in
// package engine walks a Node without ever type-switching on a raw
// interface{}; every constructor and accessor in this package keeps
// the Kind tag and payload in sync so the rest of the module can trust
// the shape it's handed.
package tree

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which of the four grammar shapes a Node holds.
type Kind int

const (
	// KindBool is a literal true/false node.
	KindBool Kind = iota
	// KindStr is a string node: either a boolean literal spelled as
	// text ("TRUE"/"FALSE", case-insensitive) or a permission value.
	KindStr
	// KindList is an ordered sequence of nodes, implicit OR when used
	// as a gate body.
	KindList
	// KindMap is an ordered sequence of key/value entries.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindStr:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is a single key/value pair inside a KindMap node. Entries are
// held in a slice, not a Go map, because the evaluator must walk map
// bodies in the caller's insertion order (see package engine).
type Entry struct {
	Key   string
	Value Node
}

// Node is a permission tree node: exactly one of a bool, a string, an
// ordered list of child nodes, or an ordered list of key/value
// entries, discriminated by Kind. The zero Node is KindBool(false).
type Node struct {
	Kind Kind
	Bool bool
	Str  string
	List []Node
	Map  []Entry
}

// Bool constructs a KindBool node.
func Bool(b bool) Node {
	return Node{Kind: KindBool, Bool: b}
}

// Str constructs a KindStr node.
func Str(s string) Node {
	return Node{Kind: KindStr, Str: s}
}

// List constructs a KindList node from the given children, in order.
func List(items ...Node) Node {
	return Node{Kind: KindList, List: items}
}

// Map constructs a KindMap node from the given entries, in order.
// Duplicate keys are preserved as separate entries; callers that mean
// to build a single-key gate body should pass exactly one entry.
func Map(entries ...Entry) Node {
	return Node{Kind: KindMap, Map: entries}
}

// Len returns the number of children for KindList and KindMap nodes,
// and 0 for KindBool and KindStr.
func (n Node) Len() int {
	switch n.Kind {
	case KindList:
		return len(n.List)
	case KindMap:
		return len(n.Map)
	default:
		return 0
	}
}

// Get returns the value associated with key in a KindMap node, and
// whether it was found. It is a linear scan; permission tree maps are
// small (gate bodies, single-key type dispatch), so this is not worth
// a secondary index.
func (n Node) Get(key string) (Node, bool) {
	for _, e := range n.Map {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Node{}, false
}

// MarshalJSON renders a Node the way it would have looked coming in:
// a bool, a string, an array, or an object — used by error messages
// (see [common.Marshal]) so a diagnostic shows the offending subtree
// in its original shape rather than exposing the Kind/Bool/Str/List/Map
// struct layout.
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindBool:
		return json.Marshal(n.Bool)
	case KindStr:
		return json.Marshal(n.Str)
	case KindList:
		return json.Marshal(n.List)
	case KindMap:
		obj := make(map[string]Node, len(n.Map))
		for _, e := range n.Map {
			obj[e.Key] = e.Value
		}
		return json.Marshal(obj)
	default:
		return json.Marshal(nil)
	}
}

// Clone deep-copies a Node so that mutating the copy (or its
// descendants) never observably affects the original. The evaluator
// itself clones via github.com/mohae/deepcopy, matching the wider
// module's cloning idiom; this typed variant exists for tests that
// need a cheap, reflection-free reference clone to assert I1 against.
func (n Node) Clone() Node {
	switch n.Kind {
	case KindList:
		out := make([]Node, len(n.List))
		for i, c := range n.List {
			out[i] = c.Clone()
		}
		return Node{Kind: KindList, List: out}
	case KindMap:
		out := make([]Entry, len(n.Map))
		for i, e := range n.Map {
			out[i] = Entry{Key: e.Key, Value: e.Value.Clone()}
		}
		return Node{Kind: KindMap, Map: out}
	default:
		return n
	}
}

// Equal reports whether n and o describe the same tree, recursively,
// preserving map/list order. It's used by tests asserting the
// non-mutation invariant (I1) and by the Clone tests.
func Equal(n, o Node) bool {
	if n.Kind != o.Kind {
		return false
	}
	switch n.Kind {
	case KindBool:
		return n.Bool == o.Bool
	case KindStr:
		return n.Str == o.Str
	case KindList:
		if len(n.List) != len(o.List) {
			return false
		}
		for i := range n.List {
			if !Equal(n.List[i], o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(n.Map) != len(o.Map) {
			return false
		}
		for i := range n.Map {
			if n.Map[i].Key != o.Map[i].Key || !Equal(n.Map[i].Value, o.Map[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
