// Package http exposes the face swap service over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humagin"
	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth/limiter"
	"github.com/didip/tollbooth_gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ekisa-team/swapface/internal/config"
	"github.com/ekisa-team/swapface/internal/serverless"
	"github.com/ekisa-team/swapface/internal/service"
)

const shutdownTimeout = 15 * time.Second

// JobQueue stores asynchronous swap jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, in serverless.Input) (serverless.JobStatus, error)
	Status(id string) (serverless.JobStatus, error)
}

// ModelChecker validates a model file on disk.
type ModelChecker interface {
	Validate(path string) error
}

// Deps are the services the API is built on. Queue may be nil.
type Deps struct {
	FaceSwap   *service.FaceSwap
	Serverless *serverless.Handler
	Queue      JobQueue
	Models     ModelChecker
	Version    string
}

// Server is the HTTP API.
type Server struct {
	engine *gin.Engine
	port   int
}

// New builds the router and registers every operation.
func New(cfg config.ServerConfig, deps Deps) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	if len(cfg.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "User-Agent"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}))
	}
	if cfg.RateLimit > 0 {
		engine.Use(rateLimit(cfg.RateLimit))
	}

	api := humagin.New(engine, huma.DefaultConfig("Face Swap API", deps.Version))

	NewHealthHandler(api, deps.FaceSwap.Engines(), deps.Models, deps.Version)
	NewSwapHandler(api, deps.FaceSwap)
	NewJobsHandler(api, deps.Serverless, deps.Queue)

	return &Server{engine: engine, port: cfg.HTTPPort}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func rateLimit(perSecond float64) gin.HandlerFunc {
	msg, _ := json.Marshal(map[string]any{
		"detail": "Too many requests, slow down",
	})

	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Minute,
	})
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(string(msg))

	return tollbooth_gin.LimitHandler(lmt)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
