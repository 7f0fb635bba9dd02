package onnx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntime_NoLibrary(t *testing.T) {
	r := NewRuntime("")
	assert.ErrorIs(t, r.Initialize(), ErrNoLibrary)
	assert.NoError(t, r.Close())

	err := GraphValidator{Runtime: r}.Validate("model.onnx")
	assert.ErrorIs(t, err, ErrNoLibrary)
}

func TestRuntime_MissingLibrary(t *testing.T) {
	r := NewRuntime(filepath.Join(t.TempDir(), "libonnxruntime.so"))
	assert.Error(t, r.Initialize())
	assert.NoError(t, r.Close())
}
