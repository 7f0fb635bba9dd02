package serverless

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// Worker processes queued swap jobs.
type Worker struct {
	srv     *asynq.Server
	mux     *asynq.ServeMux
	handler *Handler
}

// NewWorker creates a worker reading jobs from Redis at addr.
func NewWorker(addr string, concurrency int, handler *Handler) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}

	w := &Worker{
		srv: asynq.NewServer(
			asynq.RedisClientOpt{Addr: addr},
			asynq.Config{
				Concurrency: concurrency,
				Queues:      map[string]int{QueueName: 1},
				Logger:      asynqLogger{log: slog.Default().With("component", "worker")},
			},
		),
		mux:     asynq.NewServeMux(),
		handler: handler,
	}
	w.mux.HandleFunc(TaskSwap, w.ProcessTask)

	return w
}

// Start processes jobs in the background until Shutdown.
func (w *Worker) Start() error {
	return w.srv.Start(w.mux)
}

// Shutdown waits for active jobs and stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// ProcessTask runs one job and stores its Output as the task result.
// Swap failures complete the task; their Output carries the reason.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	result, err := w.process(ctx, t.Payload())
	if err != nil {
		return err
	}

	if _, err := t.ResultWriter().Write(result); err != nil {
		return fmt.Errorf("serverless: write result: %w", err)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, payload []byte) ([]byte, error) {
	var in Input
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("serverless: decode job: %v: %w", err, asynq.SkipRetry)
	}

	out := w.handler.HandleInput(ctx, in)
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("serverless: encode result: %w", err)
	}
	return data, nil
}

// asynqLogger routes asynq's logs to slog.
type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
