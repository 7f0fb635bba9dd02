package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/swapface/internal/serverless"
)

type (
	RunSyncInput struct {
		RawBody []byte
	}

	RunSyncOutput struct {
		Body serverless.Envelope
	}

	RunInput struct {
		RawBody []byte
	}

	RunOutput struct {
		Body serverless.JobStatus
	}

	StatusInput struct {
		ID string `path:"id" minLength:"1"`
	}

	StatusOutput struct {
		Body serverless.JobStatus
	}
)

// JobsHandler serves the job-envelope operations.
type JobsHandler struct {
	handler *serverless.Handler
	queue   JobQueue
}

// NewJobsHandler registers the job operations on api. The asynchronous ones
// answer 503 while queue is nil.
func NewJobsHandler(api huma.API, handler *serverless.Handler, queue JobQueue) *JobsHandler {
	h := &JobsHandler{handler: handler, queue: queue}

	huma.Register(api, huma.Operation{
		OperationID: "runsync",
		Method:      http.MethodPost,
		Path:        "/runsync",
		Summary:     "Run a swap job and wait for its output",
		Description: "Always answers 200; failures are reported in output.success and output.message.",
		Tags:        []string{"jobs"},
	}, h.handleRunSync)

	huma.Register(api, huma.Operation{
		OperationID:   "run",
		Method:        http.MethodPost,
		Path:          "/run",
		Summary:       "Queue a swap job",
		Tags:          []string{"jobs"},
		DefaultStatus: http.StatusAccepted,
	}, h.handleRun)

	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status/{id}",
		Summary:     "Get the status and output of a queued job",
		Tags:        []string{"jobs"},
	}, h.handleStatus)

	return h
}

func (h *JobsHandler) handleRunSync(ctx context.Context, input *RunSyncInput) (*RunSyncOutput, error) {
	return &RunSyncOutput{Body: h.handler.HandleJSON(ctx, input.RawBody)}, nil
}

func (h *JobsHandler) handleRun(ctx context.Context, input *RunInput) (*RunOutput, error) {
	if h.queue == nil {
		return nil, huma.Error503ServiceUnavailable("Job queue not configured")
	}

	in, err := h.handler.DecodeInput(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	st, err := h.queue.Enqueue(ctx, in)
	if err != nil {
		slog.Error("Failed to enqueue job", "error", err)
		return nil, huma.Error503ServiceUnavailable("Job queue unavailable")
	}

	return &RunOutput{Body: st}, nil
}

func (h *JobsHandler) handleStatus(ctx context.Context, input *StatusInput) (*StatusOutput, error) {
	if h.queue == nil {
		return nil, huma.Error503ServiceUnavailable("Job queue not configured")
	}

	st, err := h.queue.Status(input.ID)
	if err != nil {
		if errors.Is(err, serverless.ErrJobNotFound) {
			return nil, huma.Error404NotFound("Job not found: " + input.ID)
		}
		slog.Error("Failed to read job status", "id", input.ID, "error", err)
		return nil, huma.Error503ServiceUnavailable("Job queue unavailable")
	}

	return &StatusOutput{Body: st}, nil
}
