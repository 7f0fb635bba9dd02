package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/swapface/internal/service"
)

type (
	SwapRequestDTO struct {
		SourceURL   string `json:"source_url" minLength:"1" doc:"URL of the image providing the face"`
		TargetURL   string `json:"target_url" minLength:"1" doc:"URL of the image receiving the face"`
		SourceIndex *int   `json:"source_index,omitempty" doc:"1-based face index in the source image, counted left to right"`
		TargetIndex *int   `json:"target_index,omitempty" doc:"1-based face index in the target image, counted left to right"`
	}

	SwapResponseDTO struct {
		Success     bool   `json:"success"`
		ImageBase64 string `json:"image_base64"`
		Message     string `json:"message"`
	}
)

type (
	SwapInput struct {
		Body SwapRequestDTO
	}

	SwapOutput struct {
		RequestID string `header:"X-Request-ID"`
		Body      SwapResponseDTO
	}

	SwapImageOutput struct {
		ContentType string `header:"Content-Type"`
		RequestID   string `header:"X-Request-ID"`
		Body        []byte
	}
)

// SwapHandler handles the direct swap operations.
type SwapHandler struct {
	service *service.FaceSwap
}

// NewSwapHandler registers the swap operations on api.
func NewSwapHandler(api huma.API, service *service.FaceSwap) *SwapHandler {
	h := &SwapHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "swap",
		Method:        http.MethodPost,
		Path:          "/swap",
		Summary:       "Swap a face and return the result as base64 PNG",
		Tags:          []string{"swap"},
		DefaultStatus: http.StatusOK,
	}, h.handleSwap)

	huma.Register(api, huma.Operation{
		OperationID:   "swap-image",
		Method:        http.MethodPost,
		Path:          "/swap-image",
		Summary:       "Swap a face and return the PNG",
		Tags:          []string{"swap"},
		DefaultStatus: http.StatusOK,
	}, h.handleSwapImage)

	return h
}

func (h *SwapHandler) handleSwap(ctx context.Context, input *SwapInput) (*SwapOutput, error) {
	req, err := newRequest(input.Body)
	if err != nil {
		return nil, swapError(err)
	}

	encoded, _, err := h.service.ExecuteBase64(ctx, req)
	if err != nil {
		return nil, swapError(err)
	}

	return &SwapOutput{
		RequestID: req.ID,
		Body: SwapResponseDTO{
			Success:     true,
			ImageBase64: encoded,
			Message:     service.SuccessMessage,
		},
	}, nil
}

func (h *SwapHandler) handleSwapImage(ctx context.Context, input *SwapInput) (*SwapImageOutput, error) {
	req, err := newRequest(input.Body)
	if err != nil {
		return nil, swapError(err)
	}

	res, err := h.service.Execute(ctx, req)
	if err != nil {
		return nil, swapError(err)
	}

	return &SwapImageOutput{
		ContentType: "image/png",
		RequestID:   req.ID,
		Body:        res.PNG,
	}, nil
}

func newRequest(dto SwapRequestDTO) (service.Request, error) {
	return service.NewRequest(dto.SourceURL, dto.TargetURL, indexOrDefault(dto.SourceIndex), indexOrDefault(dto.TargetIndex))
}

func indexOrDefault(i *int) int {
	if i == nil {
		return 1
	}
	return *i
}
