package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/ekisa-team/swapface/internal/envvar"
)

const (
	defaultHTTPPort     = 8000
	defaultSidecarPort  = 8090
	defaultMaxRetries   = 3
	defaultDetSize      = 640
	defaultMaxBytes     = 10 << 20
	defaultMaxDimension = 1024
	defaultMaxPixels    = 89_478_485
	defaultMinBytes     = 1 << 10

	// DefaultUserAgent identifies the fetcher to origins that block anonymous clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			HTTPPort:  DefaultHTTPPort(),
			RateLimit: 25,
		},
		Models: ModelsConfig{
			Variants:   []string{"inswapper_128.fp16.onnx", "inswapper_128.onnx"},
			MaxRetries: defaultMaxRetries,
			RetryDelay: 0,
			WorkDir:    ".",
			SearchDirs: []string{"~/.insightface/models", "/root/.insightface/models"},
			CacheDir:   DefaultModelsPath(),
			MinBytes:   defaultMinBytes,
			Validator:  ValidatorStructural,
			Source: SourceConfig{
				HuggingFace: &HuggingFaceSource{
					Repo:     "ezioruan/inswapper_128.onnx",
					Revision: "main",
				},
			},
		},
		Engine: EngineConfig{
			Provider: "insight",
			Analysis: "buffalo_l",
			DetSize:  defaultDetSize,
			CtxID:    0,
			Timeout:  2 * time.Minute,
			Sidecar: SidecarConfig{
				Port:         defaultSidecarPort,
				ReadyTimeout: time.Minute,
			},
		},
		Ingest: IngestConfig{
			Timeout:      30 * time.Second,
			MaxBytes:     defaultMaxBytes,
			MaxDimension: defaultMaxDimension,
			MaxPixels:    defaultMaxPixels,
			UserAgent:    DefaultUserAgent,
		},
		Queue: QueueConfig{
			Concurrency: 1,
			Retention:   time.Hour,
		},
	}
}

// ApplyEnv overrides configuration values from the process environment.
func ApplyEnv(cfg *Config) {
	if p := os.Getenv(envvar.SwapfaceServerHTTPPort); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if p := os.Getenv(envvar.SwapfaceModelsPath); p != "" {
		cfg.Models.CacheDir = p
	}
	if addr := os.Getenv(envvar.SwapfaceRedisAddr); addr != "" {
		cfg.Queue.RedisAddr = addr
	}
	if token := os.Getenv(envvar.SwapfaceHFToken); token != "" && cfg.Models.Source.HuggingFace != nil {
		cfg.Models.Source.HuggingFace.Token = token
	}
	if lib := os.Getenv(envvar.SwapfaceOnnxRuntimeLib); lib != "" {
		cfg.Models.OnnxLib = lib
	}
}

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return defaultHTTPPort
}

// DefaultConfigPath returns the default path for the swapface config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "swapface", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "swapface")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "swapface")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "swapface")
		}
		return filepath.Join(home, ".config", "swapface")
	}
}

// DefaultModelsPath returns the canonical cache directory for model variants.
// It matches the insightface model cache so existing downloads are reused.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".insightface", "models")
	}

	return filepath.Join(home, ".insightface", "models")
}
