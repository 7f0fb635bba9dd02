package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/config"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	defaultBinary     = "hf"
)

// HuggingFaceFetcher downloads single files with the Hugging Face CLI.
type HuggingFaceFetcher struct {
	source     config.HuggingFaceSource
	executor   *backend.Executor
	maxRetries int
	retryDelay time.Duration
}

// NewHuggingFaceFetcher returns a CLI-backed fetcher for source.
func NewHuggingFaceFetcher(source config.HuggingFaceSource) *HuggingFaceFetcher {
	bin := source.BinPath
	if bin == "" {
		bin = defaultBinary
	}

	return &HuggingFaceFetcher{
		source:     source,
		executor:   backend.NewExecutor(bin, defaultTimeout),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// WithRunner replaces the command runner. Used by tests.
func (d *HuggingFaceFetcher) WithRunner(runner backend.CommandRunner, retryDelay time.Duration) *HuggingFaceFetcher {
	d.executor = backend.NewExecutorWithRunner(d.executor.Binary(), defaultTimeout, runner)
	d.retryDelay = retryDelay
	return d
}

// Fetch downloads variant from the repo into dest.
func (d *HuggingFaceFetcher) Fetch(ctx context.Context, variant, dest string) error {
	stage, err := os.MkdirTemp(filepath.Dir(dest), ".hf-")
	if err != nil {
		return fmt.Errorf("source: failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	args := d.args(variant, stage)

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", d.source.Repo, "variant", variant, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading model", "repo", d.source.Repo, "variant", variant, "path", dest)
		}

		_, stderr, err := d.executor.Execute(ctx, args, nil)

		if err == nil {
			if err := os.Rename(filepath.Join(stage, variant), dest); err != nil {
				return fmt.Errorf("source: downloaded file missing: %w", err)
			}
			slog.Info("Model downloaded successfully", "repo", d.source.Repo, "variant", variant, "attempt", attempt+1)
			return nil
		}

		lastErr = err
		slog.Error("Failed to download model", "repo", d.source.Repo, "variant", variant, "attempt", attempt+1, "error", err, "output", string(stderr))

		if ctx.Err() != nil {
			return fmt.Errorf("download canceled: %w", err)
		}
	}

	return fmt.Errorf("source: %s after %d attempts: %w", variant, d.maxRetries, lastErr)
}

func (d *HuggingFaceFetcher) args(variant, dir string) []string {
	args := []string{"download", d.source.Repo, variant, "--local-dir", dir}

	if d.source.Revision != "" {
		args = append(args, "--revision", d.source.Revision)
	}
	if d.source.RepoType != "" {
		args = append(args, "--repo-type", d.source.RepoType)
	}
	if d.source.Token != "" {
		args = append(args, "--token", d.source.Token)
	}

	return args
}
