package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies ingest failures. All of them are caused by the caller's input.
type Kind string

const (
	KindBadURL       Kind = "bad_url"
	KindTimeout      Kind = "timeout"
	KindTooLarge     Kind = "too_large"
	KindDecodeFailed Kind = "decode_failed"
	KindUnreachable  Kind = "unreachable"
)

// Error is returned by Fetch and Decode.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindBadURL:
		msg = "invalid image URL"
	case KindTimeout:
		msg = "timed out downloading image"
	case KindTooLarge:
		msg = "image too large"
	case KindDecodeFailed:
		msg = "could not decode image"
	default:
		msg = "failed to download image"
	}

	if e.URL != "" {
		msg = fmt.Sprintf("%s %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ingest kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}
