// Package source downloads model variants from the configured origin.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ekisa-team/swapface/internal/config"
)

const huggingFaceBaseURL = "https://huggingface.co"

// ErrNoSource is returned when the models section has no usable source.
var ErrNoSource = errors.New("source: no model source configured")

// Fetcher downloads a single variant into dest.
type Fetcher interface {
	Fetch(ctx context.Context, variant, dest string) error
}

// ProgressFunc returns a writer that observes the downloaded bytes of a
// variant. total is -1 when the origin does not declare a length.
type ProgressFunc func(variant string, total int64) io.Writer

// Option configures fetchers built by New.
type Option func(*options)

type options struct {
	client    *http.Client
	userAgent string
	progress  ProgressFunc
}

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithUserAgent sets the User-Agent header sent to HTTP origins.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithProgress reports download progress.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// New returns the fetcher for the active models source.
func New(cfg config.ModelsConfig, opts ...Option) (Fetcher, error) {
	o := options{client: http.DefaultClient, userAgent: config.DefaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}

	src, err := cfg.GetSource()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSource, err)
	}

	switch s := src.(type) {
	case config.HTTPSource:
		base := strings.TrimRight(s.BaseURL, "/")
		return &HTTPFetcher{
			Client:    o.client,
			UserAgent: o.userAgent,
			Token:     s.Token,
			Progress:  o.progress,
			URLFor: func(variant string) string {
				return base + "/" + variant
			},
		}, nil

	case config.HuggingFaceSource:
		if strings.TrimSpace(s.Repo) == "" {
			return nil, fmt.Errorf("%w: empty huggingface repo", ErrNoSource)
		}
		if s.UseCLI {
			return NewHuggingFaceFetcher(s), nil
		}
		return &HTTPFetcher{
			Client:    o.client,
			UserAgent: o.userAgent,
			Token:     s.Token,
			Progress:  o.progress,
			URLFor: func(variant string) string {
				return ResolveURL(s.Repo, s.Revision, variant)
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: unsupported source type %T", ErrNoSource, src)
}

// ResolveURL builds the Hugging Face download URL for a file in a repo.
func ResolveURL(repo, revision, file string) string {
	if revision == "" {
		revision = "main"
	}

	return fmt.Sprintf("%s/%s/resolve/%s/%s", huggingFaceBaseURL, strings.Trim(repo, "/"), revision, file)
}
