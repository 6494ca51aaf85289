package tree

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a single YAML document into a Node, preserving
// mapping key order. Unlike json.Unmarshal into a Go map, yaml.v3's
// own *yaml.Node already keeps document order in its Content slice
// (that's how it round-trips comments and formatting), so this walks
// that tree directly instead of going through map[string]interface{}.
func FromYAML(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Node{}, err
	}
	if len(doc.Content) == 0 {
		return Map(), nil
	}
	return fromYAMLNode(doc.Content[0])
}

func fromYAMLNode(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	case yaml.SequenceNode:
		items := make([]Node, len(n.Content))
		for i, c := range n.Content {
			item, err := fromYAMLNode(c)
			if err != nil {
				return Node{}, fmt.Errorf("element %d: %w", i, err)
			}
			items[i] = item
		}
		return List(items...), nil
	case yaml.MappingNode:
		if len(n.Content)%2 != 0 {
			return Node{}, fmt.Errorf("tree: malformed YAML mapping")
		}
		entries := make([]Entry, 0, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return Node{}, fmt.Errorf("tree: YAML mapping key must be a scalar")
			}
			value, err := fromYAMLNode(valNode)
			if err != nil {
				return Node{}, fmt.Errorf("key %q: %w", keyNode.Value, err)
			}
			entries = append(entries, Entry{Key: keyNode.Value, Value: value})
		}
		return Map(entries...), nil
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)
	default:
		return Node{}, fmt.Errorf("tree: unsupported YAML node kind %v", n.Kind)
	}
}

func fromYAMLScalar(n *yaml.Node) (Node, error) {
	switch n.Tag {
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return Node{}, err
		}
		return Bool(b), nil
	default:
		return Str(n.Value), nil
	}
}
