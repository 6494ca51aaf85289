package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON decodes a single JSON value into a Node, preserving object
// key order. Plain json.Unmarshal into map[string]interface{} would
// discard that order (Go maps have none); this walks the token stream
// instead, the same trick a hand-rolled ordered-JSON reader uses.
func FromJSON(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	node, err := decodeValue(dec)
	if err != nil {
		return Node{}, err
	}
	if dec.More() {
		return Node{}, fmt.Errorf("tree: trailing data after JSON value")
	}
	return node, nil
}

func decodeValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Node, error) {
	switch t := tok.(type) {
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		return Str(t.String()), nil
	case float64:
		return Str(fmt.Sprintf("%g", t)), nil
	case nil:
		return Node{}, fmt.Errorf("tree: null is not a valid permission tree node")
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		default:
			return Node{}, fmt.Errorf("tree: unexpected JSON delimiter %q", t)
		}
	default:
		return Node{}, fmt.Errorf("tree: unsupported JSON token %v (%T)", tok, tok)
	}
}

func decodeArray(dec *json.Decoder) (Node, error) {
	var items []Node
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return Node{}, err
		}
		items = append(items, item)
	}
	// consume the closing ']'
	if _, err := dec.Token(); err != nil {
		return Node{}, err
	}
	return List(items...), nil
}

func decodeObject(dec *json.Decoder) (Node, error) {
	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Node{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Node{}, fmt.Errorf("tree: object key %v is not a string", keyTok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return Node{}, err
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	// consume the closing '}'
	if _, err := dec.Token(); err != nil {
		return Node{}, err
	}
	return Map(entries...), nil
}
