package engine

import "errors"

// Error definitions for the engine package.
var (
	// ErrUnavailable wraps every initialization failure.
	ErrUnavailable = errors.New("engines unavailable")

	// ErrLocator marks a failure to prepare the face locator.
	ErrLocator = errors.New("face analysis initialization failed")

	// ErrNoVariant marks that every swapper variant exhausted its attempts.
	ErrNoVariant = errors.New("no swapper model variant could be loaded")

	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("engine library closed")
)
