// Package model finds, checks, repairs and downloads swapper model files.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ekisa-team/swapface/internal/xfs"
)

const defaultMinBytes = 1 << 10

// Fetcher downloads a variant into dest.
type Fetcher interface {
	Fetch(ctx context.Context, variant, dest string) error
}

// Options configures a Store.
type Options struct {
	// WorkDir is checked first, both as given and in absolute form.
	WorkDir    string
	SearchDirs []string
	// CacheDir is the last candidate and the download target.
	CacheDir  string
	MinBytes  int64
	Validator Validator
	Fetcher   Fetcher
}

// Store resolves model variants against an ordered list of locations.
type Store struct {
	workDir    string
	searchDirs []string
	cacheDir   string
	minBytes   int64
	validator  Validator
	fetcher    Fetcher
	mu         sync.Mutex // serializes Repair and Fetch
}

// RepairReport describes what Repair touched.
type RepairReport struct {
	Backup  string   `json:"backup,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

// NewStore creates a Store. A nil Validator defaults to StructuralValidator.
func NewStore(opts Options) *Store {
	s := &Store{
		workDir:   opts.WorkDir,
		cacheDir:  xfs.ExpandTilde(opts.CacheDir),
		minBytes:  opts.MinBytes,
		validator: opts.Validator,
		fetcher:   opts.Fetcher,
	}
	if s.workDir == "" {
		s.workDir = "."
	}
	if s.minBytes <= 0 {
		s.minBytes = defaultMinBytes
	}
	if s.validator == nil {
		s.validator = StructuralValidator{}
	}
	for _, d := range opts.SearchDirs {
		s.searchDirs = append(s.searchDirs, xfs.ExpandTilde(d))
	}

	return s
}

// Candidates returns every location the variant may live in, in lookup
// order, without duplicates.
func (s *Store) Candidates(variant string) []string {
	local := filepath.Join(s.workDir, variant)
	paths := []string{local}
	if abs, err := filepath.Abs(local); err == nil {
		paths = append(paths, abs)
	}
	for _, d := range s.searchDirs {
		paths = append(paths, filepath.Join(d, variant))
	}
	if s.cacheDir != "" {
		paths = append(paths, filepath.Join(s.cacheDir, variant))
	}

	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		key := p
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}

	return out
}

// Locate returns the first candidate that is an existing regular file.
func (s *Store) Locate(variant string) (string, error) {
	for _, p := range s.Candidates(variant) {
		if xfs.IsRegularFile(p) {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, variant)
}

// Validate returns nil when path holds a usable model, or an *InvalidError.
// Files below the minimum size are rejected without being parsed.
func (s *Store) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &InvalidError{Path: path, Reason: err.Error()}
	}
	if !info.Mode().IsRegular() {
		return &InvalidError{Path: path, Reason: "not a regular file"}
	}
	if info.Size() == 0 || info.Size() < s.minBytes {
		return &InvalidError{Path: path, Reason: fmt.Sprintf("file too small (%d bytes)", info.Size())}
	}

	if err := s.validator.Validate(path); err != nil {
		return &InvalidError{Path: path, Reason: err.Error()}
	}

	return nil
}

// Repair backs up path and removes the variant from every candidate
// location. Files outside Candidates(variant) are never touched.
func (s *Store) Repair(variant, path string) (RepairReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report RepairReport
	candidates := s.Candidates(variant)

	if path != "" {
		if s.isCandidate(candidates, path) {
			if xfs.Exists(path) {
				backup := path + ".backup"
				if err := os.Rename(path, backup); err != nil {
					if cerr := xfs.CopyFile(path, backup); cerr != nil {
						slog.Warn("Failed to back up model file", "path", path, "error", err, "copy_error", cerr)
					} else {
						report.Backup = backup
					}
				} else {
					report.Backup = backup
					report.Removed = append(report.Removed, path)
					slog.Info("Model file backed up", "path", path, "backup", backup)
				}
			}
		} else {
			slog.Warn("Refusing to repair path outside candidate locations", "variant", variant, "path", path)
		}
	}

	for _, p := range candidates {
		if !xfs.Exists(p) {
			continue
		}
		if err := os.Remove(p); err != nil {
			slog.Error("Failed to remove model file", "path", p, "error", err)
			continue
		}
		report.Removed = append(report.Removed, p)
		slog.Info("Model file removed", "variant", variant, "path", p)
	}

	for _, p := range candidates {
		if xfs.Exists(p) {
			report.Failed = append(report.Failed, p)
		}
	}
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: %s still present at %v", ErrRepairFailed, variant, report.Failed)
	}

	return report, nil
}

// Fetch downloads the variant into the cache directory and returns its path.
func (s *Store) Fetch(ctx context.Context, variant string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetcher == nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, ErrNoFetcher)
	}
	if s.cacheDir == "" {
		return "", fmt.Errorf("%w: no cache directory", ErrFetchFailed)
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	dest := filepath.Join(s.cacheDir, variant)
	part := dest + ".part"
	os.Remove(part)

	if err := s.fetcher.Fetch(ctx, variant, part); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("%w: %s: %w", ErrFetchFailed, variant, err)
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("%w: %s: %w", ErrFetchFailed, variant, err)
	}

	slog.Info("Model fetched", "variant", variant, "path", dest)
	return dest, nil
}

// CacheDir returns the download directory.
func (s *Store) CacheDir() string {
	return s.cacheDir
}

func (s *Store) isCandidate(candidates []string, path string) bool {
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, c := range candidates {
		if abs, err := filepath.Abs(c); err == nil && abs == target {
			return true
		}
	}

	return false
}
