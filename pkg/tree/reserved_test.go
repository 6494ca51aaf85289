package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReservedCaseInsensitive(t *testing.T) {
	for _, key := range []string{"and", "And", "AND", "no_bypass", "NO_BYPASS"} {
		assert.True(t, IsReserved(key), "expected %q to be reserved", key)
	}
	assert.False(t, IsReserved("role"))
	assert.False(t, IsReserved(""))
}

func TestLegacyNoBypassIsExactMatchOnly(t *testing.T) {
	assert.True(t, LegacyNoBypass("no_bypass"))
	assert.False(t, LegacyNoBypass("NO_BYPASS"), "canonical spelling is handled separately, not by this predicate")
	assert.False(t, LegacyNoBypass("No_Bypass"))
}

func TestIsBoolLiteral(t *testing.T) {
	v, ok := IsBoolLiteral("true")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = IsBoolLiteral("False")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = IsBoolLiteral("admin")
	assert.False(t, ok)
}

func TestGateArity(t *testing.T) {
	cases := map[string]int{And: 1, Nand: 1, Or: 1, Nor: 1, Xor: 2}
	for key, want := range cases {
		got, ok := GateArity(key)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := GateArity(Not)
	assert.False(t, ok, "NOT's arity rule is shape-based, not count-based")
}

func TestReservedKeysSorted(t *testing.T) {
	keys := ReservedKeys()
	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, keys[i-1], keys[i])
	}
	assert.Contains(t, keys, NoBypass)
	assert.Contains(t, keys, Xor)
}
