// Package insight implements backend.Provider on top of an insightface
// inference server reached over HTTP.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/config"
)

const (
	ServerName = "insight"

	maxErrorBody = 4 << 10
)

// Config configures the provider.
type Config struct {
	// URL of an already running server. When empty the server is started
	// from BinPath through the ServerManager.
	URL          string
	BinPath      string
	Args         []string
	Env          map[string]string
	Port         int
	ReadyTimeout time.Duration

	Analysis string
	DetSize  int
	CtxID    int
	Timeout  time.Duration
}

// ConfigFrom maps the engine section of the service config.
func ConfigFrom(cfg config.EngineConfig) Config {
	return Config{
		URL:          cfg.Sidecar.URL,
		BinPath:      cfg.Sidecar.BinPath,
		Args:         cfg.Sidecar.Args,
		Env:          cfg.Sidecar.Env,
		Port:         cfg.Sidecar.Port,
		ReadyTimeout: cfg.Sidecar.ReadyTimeout,
		Analysis:     cfg.Analysis,
		DetSize:      cfg.DetSize,
		CtxID:        cfg.CtxID,
		Timeout:      cfg.Timeout,
	}
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("insight: %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Provider implements backend.Provider.
type Provider struct {
	cfg     Config
	servers *backend.ServerManager
	client  *http.Client

	mu      sync.Mutex
	baseURL string
	started bool
}

// New creates a provider. servers may be nil when cfg.URL is set.
func New(cfg Config, servers *backend.ServerManager) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &Provider{
		cfg:     cfg,
		servers: servers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements backend.Provider.
func (p *Provider) Name() backend.ProviderName {
	return backend.ProviderInsight
}

// NewLocator implements backend.Provider.
func (p *Provider) NewLocator(ctx context.Context) (backend.Locator, error) {
	req := prepareRequest{
		Analysis: p.cfg.Analysis,
		DetSize:  p.cfg.DetSize,
		CtxID:    p.cfg.CtxID,
	}

	var resp prepareResponse
	if err := p.postJSON(ctx, "/v1/prepare", req, &resp); err != nil {
		return nil, fmt.Errorf("insight: failed to prepare face analysis: %w", err)
	}

	slog.Info("Face analysis ready", "analysis", p.cfg.Analysis, "det_size", p.cfg.DetSize, "providers", resp.Providers)
	return &Locator{p: p}, nil
}

// LoadSwapper implements backend.Provider.
func (p *Provider) LoadSwapper(ctx context.Context, path string) (backend.Swapper, error) {
	var resp loadResponse
	err := p.postJSON(ctx, "/v1/models/load", loadRequest{Path: path}, &resp)

	var se *StatusError
	if errors.As(err, &se) {
		return nil, fmt.Errorf("%w: %s", backend.ErrModelRejected, se.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("insight: failed to load swapper: %w", err)
	}
	if resp.Handle == "" {
		return nil, fmt.Errorf("%w: empty handle for %s", backend.ErrModelRejected, path)
	}

	return &Swapper{p: p, handle: resp.Handle, path: path}, nil
}

// Close stops the server if this provider started it.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	p.started = false
	p.baseURL = ""
	return p.servers.StopServer(ServerName, p.cfg.Port)
}

// base returns the server URL, starting the server on first use.
func (p *Provider) base(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.baseURL != "" {
		return p.baseURL, nil
	}

	if p.cfg.URL != "" {
		p.baseURL = strings.TrimRight(p.cfg.URL, "/")
		return p.baseURL, nil
	}

	if p.servers == nil || p.cfg.BinPath == "" {
		return "", errors.New("insight: no server url or binary configured")
	}

	args := append([]string{}, p.cfg.Args...)
	args = append(args, "--host", "127.0.0.1", "--port", strconv.Itoa(p.cfg.Port))

	url, err := p.servers.StartServer(ctx, backend.ServerConfig{
		Name:         ServerName,
		BinPath:      p.cfg.BinPath,
		Args:         args,
		Env:          p.cfg.Env,
		Port:         p.cfg.Port,
		ReadyTimeout: p.cfg.ReadyTimeout,
	})
	if err != nil {
		return "", err
	}

	p.baseURL = url
	p.started = true
	return url, nil
}

func (p *Provider) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := p.do(ctx, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// do posts body and returns a 2xx response or a *StatusError.
func (p *Provider) do(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	base, err := p.base(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	return resp, nil
}

func encodePNG(img image.Image) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &buf, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
