package service

import (
	"github.com/oklog/ulid/v2"

	"github.com/ekisa-team/swapface/internal/ingest"
)

// Request is a validated swap request. Indexes are 1-based, counted left to
// right.
type Request struct {
	ID          string
	SourceURL   string
	TargetURL   string
	SourceIndex int
	TargetIndex int
}

// NewRequest validates the caller's input before any engine is touched.
func NewRequest(sourceURL, targetURL string, sourceIndex, targetIndex int) (Request, error) {
	if sourceIndex < 1 {
		return Request{}, badInput("source_index must be 1 or greater, got %d", sourceIndex)
	}
	if targetIndex < 1 {
		return Request{}, badInput("target_index must be 1 or greater, got %d", targetIndex)
	}
	if err := ingest.CheckURL(sourceURL); err != nil {
		return Request{}, &Error{Kind: KindBadInput, Message: "Invalid source_url: " + sourceURL, Err: err}
	}
	if err := ingest.CheckURL(targetURL); err != nil {
		return Request{}, &Error{Kind: KindBadInput, Message: "Invalid target_url: " + targetURL, Err: err}
	}

	return Request{
		ID:          ulid.Make().String(),
		SourceURL:   sourceURL,
		TargetURL:   targetURL,
		SourceIndex: sourceIndex,
		TargetIndex: targetIndex,
	}, nil
}
