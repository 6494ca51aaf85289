package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONPreservesKeyOrder(t *testing.T) {
	// map[string]interface{} would sort or scramble these; FromJSON
	// must preserve the source's textual order.
	node, err := FromJSON([]byte(`{"zebra":"a","apple":"b","mango":"c"}`))
	require.NoError(t, err)

	require.Equal(t, KindMap, node.Kind)
	require.Len(t, node.Map, 3)
	assert.Equal(t, "zebra", node.Map[0].Key)
	assert.Equal(t, "apple", node.Map[1].Key)
	assert.Equal(t, "mango", node.Map[2].Key)
}

func TestFromJSONNestedShapes(t *testing.T) {
	node, err := FromJSON([]byte(`{"role":{"AND":["admin","editor"]}}`))
	require.NoError(t, err)

	role, ok := node.Get("role")
	require.True(t, ok)
	and, ok := role.Get("AND")
	require.True(t, ok)
	assert.Equal(t, List(Str("admin"), Str("editor")), and)
}

func TestFromJSONScalars(t *testing.T) {
	b, err := FromJSON([]byte(`true`))
	require.NoError(t, err)
	assert.Equal(t, Bool(true), b)

	s, err := FromJSON([]byte(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, Str("hello"), s)
}

func TestFromJSONRejectsNull(t *testing.T) {
	_, err := FromJSON([]byte(`null`))
	assert.Error(t, err)
}

func TestFromJSONRejectsTrailingData(t *testing.T) {
	_, err := FromJSON([]byte(`{"a":true} garbage`))
	assert.Error(t, err)
}

func TestFromJSONNumbersBecomeStrings(t *testing.T) {
	// the grammar has no numeric variant; a bare JSON number is only
	// useful here as a permission value or map key stand-in, so it's
	// rendered as its string form rather than rejected.
	node, err := FromJSON([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, Str("42"), node)
}
