// Package ingest downloads remote images and normalizes them for inference.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/ekisa-team/swapface/internal/config"
)

// Limits bounds a single fetch.
type Limits struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int64
	UserAgent    string
}

// LimitsFrom maps the ingest section of the service config.
func LimitsFrom(cfg config.IngestConfig) Limits {
	return Limits{
		Timeout:      cfg.Timeout,
		MaxBytes:     cfg.MaxBytes,
		MaxDimension: cfg.MaxDimension,
		MaxPixels:    cfg.MaxPixels,
		UserAgent:    cfg.UserAgent,
	}
}

// DefaultLimits returns the limits of the default configuration.
func DefaultLimits() Limits {
	return LimitsFrom(config.Default().Ingest)
}

// Fetcher downloads images. It is safe for concurrent use and its limits
// can be swapped at runtime.
type Fetcher struct {
	client *http.Client
	limits atomic.Pointer[Limits]
}

// NewFetcher creates a Fetcher. A nil client uses a dedicated default client.
func NewFetcher(limits Limits, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}

	f := &Fetcher{client: client}
	f.SetLimits(limits)
	return f
}

// SetLimits replaces the limits for subsequent fetches.
func (f *Fetcher) SetLimits(l Limits) {
	f.limits.Store(&l)
}

// Limits returns the current limits.
func (f *Fetcher) Limits() Limits {
	return *f.limits.Load()
}

// Fetch downloads rawURL and returns the decoded, normalized image.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*image.RGBA, error) {
	limits := f.Limits()

	if err := CheckURL(rawURL); err != nil {
		return nil, err
	}

	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &Error{Kind: KindBadURL, URL: rawURL, Err: err}
	}
	if limits.UserAgent != "" {
		req.Header.Set("User-Agent", limits.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindUnreachable, URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if limits.MaxBytes > 0 && resp.ContentLength > limits.MaxBytes {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL, Err: fmt.Errorf("declared %d bytes exceeds limit of %d", resp.ContentLength, limits.MaxBytes)}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var body io.Reader = resp.Body
	if limits.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, limits.MaxBytes+1)
	}
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, transportError(rawURL, err)
	}
	if limits.MaxBytes > 0 && int64(buf.Len()) > limits.MaxBytes {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL, Err: fmt.Errorf("body exceeds limit of %d bytes", limits.MaxBytes)}
	}

	img, err := Decode(buf.B, limits.MaxDimension, limits.MaxPixels)
	if err != nil {
		var ie *Error
		if errors.As(err, &ie) {
			ie.URL = rawURL
		}
		return nil, err
	}

	slog.Debug("Image ingested", "url", rawURL, "bytes", buf.Len(), "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// CheckURL accepts absolute http and https URLs only.
func CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &Error{Kind: KindBadURL, URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Kind: KindBadURL, URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &Error{Kind: KindBadURL, URL: rawURL, Err: errors.New("missing host")}
	}

	return nil
}

func transportError(rawURL string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}

	return &Error{Kind: KindUnreachable, URL: rawURL, Err: err}
}
