package main

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/swapface/internal/config"
	httpserver "github.com/ekisa-team/swapface/internal/server/http"
	"github.com/ekisa-team/swapface/internal/serverless"
)

var (
	servePort  int
	serveEager bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, err := configPath(cmd)
		if err != nil {
			return err
		}

		var (
			cfg     *config.Config
			current atomic.Pointer[app]
		)
		if path != "" {
			watcher, err := config.NewWatcher(path, func(prev, next *config.Config, err error) {
				if a := current.Load(); a != nil {
					a.reload(prev, next, err)
				}
			})
			if err != nil {
				return err
			}
			defer watcher.Close()
			snapshot := *watcher.Snapshot()
			cfg = &snapshot
		} else if cfg, err = config.Load(""); err != nil {
			return err
		}

		if cmd.Flags().Changed("port") {
			cfg.Server.HTTPPort = servePort
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()
		current.Store(a)

		deps := httpserver.Deps{
			FaceSwap:   a.swap,
			Serverless: a.handler,
			Models:     a.store,
			Version:    version,
		}
		if cfg.Queue.RedisAddr != "" {
			queue := serverless.NewQueue(cfg.Queue.RedisAddr, cfg.Queue.Retention)
			defer queue.Close()
			deps.Queue = queue
			slog.Info("Job queue enabled", "redis", cfg.Queue.RedisAddr)
		}

		if serveEager {
			go warmUp(ctx, a)
		}

		slog.Info("Config loaded", "config", path, "port", cfg.Server.HTTPPort)
		return httpserver.New(cfg.Server, deps).Run(ctx)
	},
}

// warmUp initializes the engines so the first request does not pay for it.
func warmUp(ctx context.Context, a *app) {
	lease, err := a.library.Acquire(ctx)
	if err != nil {
		slog.Error("Engine warm-up failed, will retry on first request", "error", err)
		return
	}
	slog.Info("Engines ready", "variant", lease.Variant(), "model_path", lease.ModelPath())
	lease.Release()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultHTTPPort(), "HTTP port to listen on")
	serveCmd.Flags().BoolVar(&serveEager, "eager", true, "Initialize the engines at startup")
	rootCmd.AddCommand(serveCmd)
}
