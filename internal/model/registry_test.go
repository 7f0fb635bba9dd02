package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry([]string{"a.onnx", "b.onnx"})

	list := r.List()
	assert.Len(t, list, 2)
	assert.Equal(t, "a.onnx", list[0].Name)
	assert.Equal(t, StatusUnloaded, list[1].Status)

	now := time.Now()
	r.Update("b.onnx", func(vs *VariantStatus) {
		vs.Status = StatusLoaded
		vs.Attempts = 2
		vs.LoadedAt = now
	})
	r.Update("c.onnx", func(vs *VariantStatus) { vs.Status = StatusFailed })

	b, ok := r.Get("b.onnx")
	assert.True(t, ok)
	assert.Equal(t, StatusLoaded, b.Status)
	assert.Equal(t, 2, b.Attempts)
	assert.Len(t, r.List(), 3)

	r.Reset()
	b, _ = r.Get("b.onnx")
	assert.Equal(t, StatusUnloaded, b.Status)
	assert.Zero(t, b.Attempts)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}
