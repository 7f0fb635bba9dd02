package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/swapface/internal/model"
	"github.com/ekisa-team/swapface/internal/service"
)

type (
	RootResponseDTO struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}

	HealthResponseDTO struct {
		Status            string                `json:"status" enum:"healthy,unhealthy"`
		State             string                `json:"state"`
		FaceAnalysisReady bool                  `json:"face_analysis_ready"`
		SwapperModelReady bool                  `json:"swapper_model_ready"`
		ModelFileValid    bool                  `json:"model_file_valid"`
		ActiveModel       string                `json:"active_model,omitempty"`
		MemoryUsageMB     float64               `json:"memory_usage_mb"`
		Version           string                `json:"version"`
		LastError         string                `json:"last_error,omitempty"`
		Variants          []model.VariantStatus `json:"variants"`
	}

	FixModelResponseDTO struct {
		Success bool                          `json:"success"`
		Message string                        `json:"message"`
		Reports map[string]model.RepairReport `json:"reports,omitempty"`
	}
)

type (
	RootOutput struct {
		Body RootResponseDTO
	}

	HealthOutput struct {
		Body HealthResponseDTO
	}

	FixModelOutput struct {
		Body FixModelResponseDTO
	}
)

// HealthHandler reports engine readiness and runs manual repairs.
type HealthHandler struct {
	engines service.Engines
	models  ModelChecker
	version string
}

// NewHealthHandler registers the liveness, health and repair operations on api.
func NewHealthHandler(api huma.API, engines service.Engines, models ModelChecker, version string) *HealthHandler {
	h := &HealthHandler{engines: engines, models: models, version: version}

	huma.Register(api, huma.Operation{
		OperationID: "root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Liveness",
		Tags:        []string{"health"},
	}, h.handleRoot)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Engine readiness",
		Tags:        []string{"health"},
	}, h.handleHealth)

	huma.Register(api, huma.Operation{
		OperationID: "fix-model",
		Method:      http.MethodPost,
		Path:        "/fix-model",
		Summary:     "Repair the swap model files and reload the engines on next use",
		Tags:        []string{"models"},
	}, h.handleFixModel)

	return h
}

func (h *HealthHandler) handleRoot(ctx context.Context, _ *struct{}) (*RootOutput, error) {
	return &RootOutput{Body: RootResponseDTO{Message: "Face Swap API is running", Status: "healthy"}}, nil
}

func (h *HealthHandler) handleHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	st := h.engines.Status()

	valid := false
	if st.ModelPath != "" && h.models != nil {
		valid = h.models.Validate(st.ModelPath) == nil
	}

	status := "unhealthy"
	if st.LocatorReady && st.SwapperReady {
		status = "healthy"
	}

	return &HealthOutput{
		Body: HealthResponseDTO{
			Status:            status,
			State:             st.State.String(),
			FaceAnalysisReady: st.LocatorReady,
			SwapperModelReady: st.SwapperReady,
			ModelFileValid:    valid,
			ActiveModel:       st.Variant,
			MemoryUsageMB:     service.MemoryMB(),
			Version:           h.version,
			LastError:         st.LastError,
			Variants:          st.Variants,
		},
	}, nil
}

func (h *HealthHandler) handleFixModel(ctx context.Context, _ *struct{}) (*FixModelOutput, error) {
	reports, err := h.engines.Repair()
	h.engines.Invalidate()

	if err != nil {
		return &FixModelOutput{
			Body: FixModelResponseDTO{
				Success: false,
				Message: "Model repair incomplete: " + err.Error(),
				Reports: reports,
			},
		}, nil
	}

	return &FixModelOutput{
		Body: FixModelResponseDTO{
			Success: true,
			Message: "Model files repaired, engines will reload on the next request",
			Reports: reports,
		},
	}, nil
}
