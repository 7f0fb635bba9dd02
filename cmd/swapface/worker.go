package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/swapface/internal/serverless"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued swap jobs from Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Queue.RedisAddr == "" {
			return errors.New("worker needs queue.redis_addr or SWAPFACE_REDIS_ADDR")
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Queue.Concurrency = workerConcurrency
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		w := serverless.NewWorker(cfg.Queue.RedisAddr, cfg.Queue.Concurrency, a.handler)
		if err := w.Start(); err != nil {
			return err
		}
		slog.Info("Worker started", "redis", cfg.Queue.RedisAddr, "concurrency", cfg.Queue.Concurrency)

		<-cmd.Context().Done()
		slog.Info("Worker shutting down")
		w.Shutdown()
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 1, "Jobs processed in parallel")
	rootCmd.AddCommand(workerCmd)
}
