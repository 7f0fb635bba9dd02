package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// HTTPFetcher downloads variants with a GET request.
type HTTPFetcher struct {
	Client    *http.Client
	URLFor    func(variant string) string
	Token     string
	UserAgent string
	Progress  ProgressFunc
}

// Fetch downloads variant into dest. dest is truncated first and removed on failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, variant, dest string) error {
	url := f.URLFor(variant)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("source: failed to build request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	slog.Info("Downloading model", "variant", variant, "url", url)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("source: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source: unexpected status %d for %s", resp.StatusCode, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("source: failed to create %s: %w", dest, err)
	}

	var w io.Writer = out
	if f.Progress != nil {
		if pw := f.Progress(variant, resp.ContentLength); pw != nil {
			w = io.MultiWriter(out, pw)
		}
	}

	n, err := io.Copy(w, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("source: failed to download %s: %w", variant, err)
	}

	slog.Info("Model downloaded", "variant", variant, "bytes", n, "path", dest)
	return nil
}
