// Package engine owns the shared face locator and swapper. Engines are built
// lazily on first use, shared by all requests and rebuilt after Invalidate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/model"
)

const defaultMaxRetries = 3

// Store is the model file lifecycle used during initialization.
type Store interface {
	Locate(variant string) (string, error)
	Validate(path string) error
	Repair(variant, path string) (model.RepairReport, error)
	Fetch(ctx context.Context, variant string) (string, error)
}

// Options configures a Library.
type Options struct {
	Provider backend.Provider
	Store    Store
	// Registry receives per-variant status. Created when nil.
	Registry *model.Registry
	// Variants are tried in order until one loads.
	Variants   []string
	MaxRetries int
	RetryDelay time.Duration
}

// Library builds and caches the engine bundle. Only success is cached: after
// a failed initialization the next Acquire starts over.
type Library struct {
	provider   backend.Provider
	store      Store
	registry   *model.Registry
	variants   []string
	maxRetries int
	retryDelay time.Duration

	ready atomic.Pointer[bundle]
	inits atomic.Int64

	mu         sync.Mutex
	state      State
	inflight   *call
	generation uint64
	lastErr    error
	closed     bool
}

type call struct {
	done chan struct{}
	b    *bundle
	err  error
}

// Status is a point-in-time view for health reporting.
type Status struct {
	State        State                 `json:"state"`
	LocatorReady bool                  `json:"locator_ready"`
	SwapperReady bool                  `json:"swapper_ready"`
	Variant      string                `json:"variant,omitempty"`
	ModelPath    string                `json:"model_path,omitempty"`
	LoadedAt     time.Time             `json:"loaded_at,omitzero"`
	LastError    string                `json:"last_error,omitempty"`
	Inits        int64                 `json:"inits"`
	Variants     []model.VariantStatus `json:"variants"`
}

// New creates a Library in the Uninitialized state.
func New(opts Options) *Library {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	registry := opts.Registry
	if registry == nil {
		registry = model.NewRegistry(opts.Variants)
	}

	return &Library{
		provider:   opts.Provider,
		store:      opts.Store,
		registry:   registry,
		variants:   opts.Variants,
		maxRetries: maxRetries,
		retryDelay: opts.RetryDelay,
	}
}

// Acquire returns a lease on the ready engines, initializing them first if
// needed. Concurrent callers share one initialization and observe the same
// outcome. Canceling ctx abandons the wait but not the initialization.
func (l *Library) Acquire(ctx context.Context) (*Lease, error) {
	for {
		if b := l.ready.Load(); b != nil && b.acquire() {
			return &Lease{b: b}, nil
		}

		b, err := l.initialize(ctx)
		if err != nil {
			return nil, err
		}
		if b.acquire() {
			return &Lease{b: b}, nil
		}
		// retired between initialization and acquire; go again
	}
}

func (l *Library) initialize(ctx context.Context) (*bundle, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if b := l.ready.Load(); b != nil {
		l.mu.Unlock()
		return b, nil
	}

	c := l.inflight
	if c == nil {
		c = &call{done: make(chan struct{})}
		l.inflight = c
		l.state = StateInitializing
		go l.run(context.WithoutCancel(ctx), c, l.generation)
	}
	l.mu.Unlock()

	select {
	case <-c.done:
		return c.b, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Library) run(ctx context.Context, c *call, gen uint64) {
	n := l.inits.Add(1)
	start := time.Now()
	slog.Info("Initializing engines", "attempt", n, "variants", l.variants)

	b, err := l.build(ctx)

	l.mu.Lock()
	switch {
	case err != nil:
		l.state = StateFailed
		l.lastErr = err
		slog.Error("Engine initialization failed", "error", err, "elapsed", time.Since(start))

	case gen != l.generation || l.closed:
		// invalidated while building; waiters retry against the new generation
		b.retire()
		l.state = StateUninitialized
		slog.Info("Discarding engines built before invalidation", "variant", b.variant)

	default:
		l.ready.Store(b)
		l.state = StateReady
		l.lastErr = nil
		slog.Info("Engines ready", "variant", b.variant, "model_path", b.modelPath, "elapsed", time.Since(start))
	}
	l.inflight = nil
	c.b, c.err = b, err
	l.mu.Unlock()

	close(c.done)
}

func (l *Library) build(ctx context.Context) (*bundle, error) {
	locator, err := l.provider.NewLocator(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrUnavailable, ErrLocator, err)
	}

	swapper, variant, path, err := l.loadSwapper(ctx)
	if err != nil {
		if cerr := locator.Close(); cerr != nil {
			slog.Warn("Failed to close locator", "error", cerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return &bundle{
		locator:   locator,
		swapper:   swapper,
		variant:   variant,
		modelPath: path,
		loadedAt:  time.Now(),
	}, nil
}

// loadSwapper tries each variant in order, each up to maxRetries times.
func (l *Library) loadSwapper(ctx context.Context) (backend.Swapper, string, string, error) {
	var errs []error

	for _, variant := range l.variants {
		sw, path, err := l.loadVariant(ctx, variant)
		if err == nil {
			return sw, variant, path, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", variant, err))
		slog.Warn("Swapper variant exhausted, trying next", "variant", variant, "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, "", "", fmt.Errorf("%w: %w", ErrNoVariant, errors.Join(errs...))
}

func (l *Library) loadVariant(ctx context.Context, variant string) (backend.Swapper, string, error) {
	l.registry.Update(variant, func(vs *model.VariantStatus) {
		vs.Status = model.StatusLoading
		vs.Attempts = 0
		vs.Error = ""
	})

	var lastErr error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		l.registry.Update(variant, func(vs *model.VariantStatus) { vs.Attempts = attempt })

		sw, path, err := l.attempt(ctx, variant)
		if err == nil {
			l.registry.Update(variant, func(vs *model.VariantStatus) {
				vs.Status = model.StatusLoaded
				vs.Path = path
				vs.LoadedAt = time.Now()
			})
			slog.Info("Swapper loaded", "variant", variant, "path", path, "attempt", attempt)
			return sw, path, nil
		}

		lastErr = err
		slog.Warn("Swapper load attempt failed", "variant", variant, "attempt", attempt, "max_retries", l.maxRetries, "error", err)

		if attempt < l.maxRetries {
			if err := sleep(ctx, l.retryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	l.registry.Update(variant, func(vs *model.VariantStatus) {
		vs.Status = model.StatusFailed
		vs.Error = lastErr.Error()
	})

	return nil, "", lastErr
}

// attempt runs one locate, validate, fetch and load pass for variant.
func (l *Library) attempt(ctx context.Context, variant string) (backend.Swapper, string, error) {
	path, err := l.store.Locate(variant)
	if err == nil {
		if verr := l.store.Validate(path); verr != nil {
			slog.Warn("Model file failed validation", "variant", variant, "error", verr)
			l.repair(variant, path)
			path, err = "", model.ErrNotFound
		}
	}

	if path == "" {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, "", err
		}

		path, err = l.store.Fetch(ctx, variant)
		if err != nil {
			return nil, "", err
		}
		if verr := l.store.Validate(path); verr != nil {
			l.repair(variant, path)
			return nil, "", verr
		}
	}

	sw, err := l.provider.LoadSwapper(ctx, path)
	if err != nil {
		l.repair(variant, path)
		return nil, "", err
	}

	return sw, path, nil
}

func (l *Library) repair(variant, path string) {
	report, err := l.store.Repair(variant, path)
	if err != nil {
		slog.Error("Model repair failed", "variant", variant, "path", path, "error", err, "removed", report.Removed)
		return
	}
	slog.Info("Model repaired", "variant", variant, "backup", report.Backup, "removed", report.Removed)
}

// Repair removes the given variants (all configured variants when none are
// given) from every candidate location. It does not invalidate.
func (l *Library) Repair(variants ...string) (map[string]model.RepairReport, error) {
	if len(variants) == 0 {
		variants = l.variants
	}

	reports := make(map[string]model.RepairReport, len(variants))
	var errs []error
	for _, v := range variants {
		path, _ := l.store.Locate(v)
		report, err := l.store.Repair(v, path)
		reports[v] = report
		if err != nil {
			errs = append(errs, err)
		}
	}

	return reports, errors.Join(errs...)
}

// Invalidate drops the cached engines. Leases already handed out stay
// valid; the engines close when the last one is released. The next Acquire
// initializes again.
func (l *Library) Invalidate() {
	l.mu.Lock()
	l.generation++
	b := l.ready.Swap(nil)
	if l.inflight == nil {
		l.state = StateUninitialized
	}
	l.lastErr = nil
	l.mu.Unlock()

	l.registry.Reset()

	if b != nil {
		b.retire()
		slog.Info("Engines invalidated", "variant", b.variant)
	}
}

// Close invalidates and refuses further Acquire calls.
func (l *Library) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.Invalidate()
	return nil
}

// State returns the current lifecycle state.
func (l *Library) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Status returns a snapshot for health reporting. It never initializes.
func (l *Library) Status() Status {
	l.mu.Lock()
	st := Status{
		State: l.state,
		Inits: l.inits.Load(),
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	l.mu.Unlock()

	if b := l.ready.Load(); b != nil {
		st.LocatorReady = b.locator != nil
		st.SwapperReady = b.swapper != nil
		st.Variant = b.variant
		st.ModelPath = b.modelPath
		st.LoadedAt = b.loadedAt
	}
	st.Variants = l.registry.List()

	return st
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
