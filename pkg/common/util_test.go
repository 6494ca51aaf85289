package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarshal(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{name: "map", input: map[string]interface{}{"key": "value"}, want: `{"key":"value"}`},
		{name: "array", input: []string{"a", "b"}, want: `["a","b"]`},
		{name: "nil", input: nil, want: "null"},
		{name: "bool", input: true, want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Marshal(tt.input))
		})
	}
}

func TestMarshalFallsBackOnUnmarshalableData(t *testing.T) {
	// channels cannot be marshaled to JSON; Marshal must not panic or
	// return an empty string, it falls back to a %+v rendering.
	input := map[string]interface{}{"channel": make(chan int)}
	assert.Contains(t, Marshal(input), "channel")
}
