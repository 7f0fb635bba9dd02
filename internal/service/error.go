package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekisa-team/swapface/internal/engine"
	"github.com/ekisa-team/swapface/internal/face"
	"github.com/ekisa-team/swapface/internal/ingest"
)

// Kind classifies a failed swap for the transport layer.
type Kind string

const (
	KindServiceUnavailable   Kind = "service_unavailable"
	KindBadInput             Kind = "bad_input"
	KindFaceIndexOutOfRange  Kind = "face_index_out_of_range"
	KindUpstreamModelCorrupt Kind = "upstream_model_corrupt"
	KindInternal             Kind = "internal_failure"
)

// Error is returned by every FaceSwap operation. Message is safe to show to
// callers; Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ClientFault reports whether the caller caused the failure.
func (e *Error) ClientFault() bool {
	return e.Kind == KindBadInput || e.Kind == KindFaceIndexOutOfRange
}

// KindOf returns the kind of err. Errors not produced by this package are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// AsError returns err as an *Error, classifying foreign errors as internal.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return internal(err)
}

func badInput(format string, args ...any) *Error {
	return &Error{Kind: KindBadInput, Message: fmt.Sprintf(format, args...)}
}

func unavailable(err error) *Error {
	msg := "Models not initialized"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "Models are still initializing, retry shortly"
	}
	return &Error{Kind: KindServiceUnavailable, Message: msg, Err: err}
}

func ingestFailed(url string, err error) *Error {
	reason := err
	if inner := errors.Unwrap(err); inner != nil {
		reason = inner
	}

	switch ingest.KindOf(err) {
	case ingest.KindTooLarge:
		return &Error{Kind: KindBadInput, Message: fmt.Sprintf("Image too large: %v", reason), Err: err}
	case ingest.KindDecodeFailed:
		return &Error{Kind: KindBadInput, Message: fmt.Sprintf("Error processing image from %s: %v", url, reason), Err: err}
	}
	return &Error{Kind: KindBadInput, Message: fmt.Sprintf("Failed to download image from %s: %v", url, reason), Err: err}
}

func indexOutOfRange(err *face.IndexError) *Error {
	return &Error{Kind: KindFaceIndexOutOfRange, Message: err.Error(), Err: err}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Face swap failed", Err: err}
}

func engineError(err error) *Error {
	if errors.Is(err, engine.ErrUnavailable) || errors.Is(err, engine.ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return unavailable(err)
	}
	return internal(err)
}
