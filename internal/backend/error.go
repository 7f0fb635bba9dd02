package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("provider not found in registry")
	ErrAlreadyRegistered = errors.New("provider is already registered in the registry")
	ErrModelRejected     = errors.New("engine rejected model file")
	ErrServerNotRunning  = errors.New("server is not running")
)
