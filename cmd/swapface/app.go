package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/backend/insight"
	"github.com/ekisa-team/swapface/internal/config"
	"github.com/ekisa-team/swapface/internal/config/source"
	"github.com/ekisa-team/swapface/internal/engine"
	"github.com/ekisa-team/swapface/internal/ingest"
	"github.com/ekisa-team/swapface/internal/model"
	"github.com/ekisa-team/swapface/internal/onnx"
	"github.com/ekisa-team/swapface/internal/serverless"
	"github.com/ekisa-team/swapface/internal/service"
)

// swapperInputs is the number of graph inputs of an inswapper model: the
// target crop and the source embedding.
const swapperInputs = 2

// app is the wired service shared by serve, serverless and worker.
type app struct {
	store     *model.Store
	runtime   *onnx.Runtime
	servers   *backend.ServerManager
	providers *backend.Registry
	library   *engine.Library
	images    *ingest.Fetcher
	swap      *service.FaceSwap
	handler   *serverless.Handler
}

func newStore(cfg *config.Config, opts ...source.Option) (*model.Store, *onnx.Runtime) {
	runtime := onnx.NewRuntime(cfg.Models.OnnxLib)

	var validator model.Validator
	if cfg.Models.Validator == config.ValidatorOnnxRuntime {
		validator = onnx.GraphValidator{Runtime: runtime, MinInputs: swapperInputs}
	}

	opts = append([]source.Option{source.WithUserAgent(cfg.Ingest.UserAgent)}, opts...)

	var fetcher model.Fetcher
	f, err := source.New(cfg.Models, opts...)
	switch {
	case err == nil:
		fetcher = f
	case errors.Is(err, source.ErrNoSource):
		slog.Warn("No model source configured, missing variants cannot be downloaded", "error", err)
	default:
		slog.Error("Invalid model source, missing variants cannot be downloaded", "error", err)
	}

	store := model.NewStore(model.Options{
		WorkDir:    cfg.Models.WorkDir,
		SearchDirs: cfg.Models.SearchDirs,
		CacheDir:   cfg.Models.CacheDir,
		MinBytes:   cfg.Models.MinBytes,
		Validator:  validator,
		Fetcher:    fetcher,
	})

	return store, runtime
}

func newApp(cfg *config.Config) (*app, error) {
	store, runtime := newStore(cfg)

	servers := backend.NewServerManager()
	providers := backend.NewRegistry()
	if err := providers.Register(insight.New(insight.ConfigFrom(cfg.Engine), servers)); err != nil {
		return nil, err
	}

	provider, err := providers.Lookup(backend.ProviderName(cfg.Engine.Provider))
	if err != nil {
		providers.Close()
		return nil, fmt.Errorf("engine provider %q: %w", cfg.Engine.Provider, err)
	}

	library := engine.New(engine.Options{
		Provider:   provider,
		Store:      store,
		Variants:   cfg.Models.Variants,
		MaxRetries: cfg.Models.MaxRetries,
		RetryDelay: cfg.Models.RetryDelay,
	})

	images := ingest.NewFetcher(ingest.LimitsFrom(cfg.Ingest), nil)
	swap := service.NewFaceSwap(library, images)

	slog.Info("Service wired",
		"provider", provider.Name(),
		"variants", cfg.Models.Variants,
		"cache_dir", store.CacheDir(),
		"validator", cfg.Models.Validator,
	)

	return &app{
		store:     store,
		runtime:   runtime,
		servers:   servers,
		providers: providers,
		library:   library,
		images:    images,
		swap:      swap,
		handler:   serverless.NewHandler(swap),
	}, nil
}

// reload applies a changed config. Ingest limits take effect immediately;
// engine and model changes drop the cached engines so the next request
// re-resolves the model files.
func (a *app) reload(prev, next *config.Config, err error) {
	if err != nil {
		slog.Error("Failed to reload config", "error", err)
		return
	}

	a.images.SetLimits(ingest.LimitsFrom(next.Ingest))

	if config.EnginesChanged(prev, next) {
		slog.Warn("Engine or model settings changed, variants and provider settings apply after restart")
		a.library.Invalidate()
	}

	slog.Info("Config reloaded")
}

func (a *app) close() {
	if err := a.library.Close(); err != nil {
		slog.Error("Failed to close engines", "error", err)
	}
	if err := a.providers.Close(); err != nil {
		slog.Error("Failed to close providers", "error", err)
	}
	a.servers.StopAll()
	if err := a.runtime.Close(); err != nil {
		slog.Error("Failed to close ONNX Runtime", "error", err)
	}
}
