package model

import (
	"errors"
	"fmt"
)

// Error definitions for the model package.
var (
	ErrNotFound     = errors.New("model file not found in any candidate location")
	ErrRepairFailed = errors.New("model repair failed")
	ErrFetchFailed  = errors.New("model fetch failed")
	ErrNoFetcher    = errors.New("no model source configured")
)

// InvalidError reports a model file that exists but cannot be used.
type InvalidError struct {
	Path   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid model file %s: %s", e.Path, e.Reason)
}

// IsInvalid reports whether err is an *InvalidError.
func IsInvalid(err error) bool {
	var inv *InvalidError
	return errors.As(err, &inv)
}
