package mapsafe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	m := map[string]any{
		"idx_float":  2.0,
		"idx_frac":   2.5,
		"idx_number": json.Number("3"),
		"idx_string": "4",
		"url":        "https://example.com/a.png",
		"flag":       "true",
		"nested":     map[string]any{"k": "v"},
		"null":       nil,
	}

	assert.Equal(t, 2, Get(m, "idx_float", 1))
	assert.Equal(t, 1, Get(m, "idx_frac", 1))
	assert.Equal(t, 3, Get(m, "idx_number", 1))
	assert.Equal(t, 4, Get(m, "idx_string", 1))
	assert.Equal(t, 1, Get(m, "missing", 1))
	assert.Equal(t, 1, Get(m, "null", 1))
	assert.Equal(t, "https://example.com/a.png", Get(m, "url", ""))
	assert.Equal(t, "", Get(m, "idx_float", ""))
	assert.True(t, Get(m, "flag", false))
	assert.Equal(t, 2.5, Get(m, "idx_frac", 0.0))
	assert.Equal(t, map[string]any{"k": "v"}, Get[map[string]any](m, "nested", nil))
}

func TestLookup(t *testing.T) {
	m := map[string]any{"a": "x", "b": 1.0}

	_, ok := Lookup[int](m, "a")
	assert.False(t, ok)

	v, ok := Lookup[int](m, "b")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, Present(m, "a"))
	assert.False(t, Present(m, "c"))
	assert.False(t, Present(nil, "c"))
}
