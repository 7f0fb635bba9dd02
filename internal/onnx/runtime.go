// Package onnx wraps the ONNX Runtime environment used to introspect model graphs.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrNoLibrary is returned when no shared library path was configured.
var ErrNoLibrary = errors.New("onnx: runtime library path not configured")

// Runtime owns the process-wide ONNX Runtime environment.
type Runtime struct {
	libPath     string
	initialized bool
	mu          sync.Mutex
}

// NewRuntime returns a Runtime that loads the shared library at libPath on first use.
func NewRuntime(libPath string) *Runtime {
	return &Runtime{libPath: libPath}
}

// Initialize sets up the environment. Later calls are no-ops once it succeeds.
func (r *Runtime) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}
	if r.libPath == "" {
		return ErrNoLibrary
	}

	ort.SetSharedLibraryPath(r.libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	r.initialized = true
	slog.Info("ONNX Runtime initialized", "library", r.libPath)
	return nil
}

// Close destroys the environment if it was initialized.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	r.initialized = false
	return nil
}

// GraphValidator accepts a model only if ONNX Runtime can read its graph
// signature.
type GraphValidator struct {
	Runtime *Runtime
	// MinInputs is the number of graph inputs the model must declare.
	MinInputs int
}

// Validate implements model.Validator.
func (v GraphValidator) Validate(path string) error {
	if err := v.Runtime.Initialize(); err != nil {
		return err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("onnx: unreadable graph: %w", err)
	}

	want := max(v.MinInputs, 1)
	if len(inputs) < want {
		return fmt.Errorf("onnx: graph has %d inputs, want at least %d", len(inputs), want)
	}
	if len(outputs) == 0 {
		return errors.New("onnx: graph has no outputs")
	}

	slog.Debug("Model graph validated", "path", path, "inputs", len(inputs), "outputs", len(outputs))
	return nil
}
