// Package serverless serves swap jobs in the job-envelope style: every
// answer is an Output, business failures included.
package serverless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ekisa-team/swapface/internal/service"
	"github.com/ekisa-team/swapface/mapsafe"
)

// Swapper runs a validated request and returns the PNG as base64.
type Swapper interface {
	ExecuteBase64(ctx context.Context, req service.Request) (string, *service.Result, error)
}

// Input is the job payload.
type Input struct {
	SourceURL   string `json:"source_url"   validate:"required,http_url"`
	TargetURL   string `json:"target_url"   validate:"required,http_url"`
	SourceIndex int    `json:"source_index" validate:"min=1"`
	TargetIndex int    `json:"target_index" validate:"min=1"`
}

// Output is the job result.
type Output struct {
	Success     bool   `json:"success"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Message     string `json:"message"`
}

// Envelope wraps an Output the way job runners expect it.
type Envelope struct {
	Output Output `json:"output"`
}

// Handler turns job events into swap requests.
type Handler struct {
	swap     Swapper
	validate *validator.Validate
}

// NewHandler creates a Handler.
func NewHandler(swap Swapper) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{swap: swap, validate: v}
}

// Handle runs the job described by event. event is either the job itself
// or wraps it under "input". It never fails at the transport level.
func (h *Handler) Handle(ctx context.Context, event map[string]any) Output {
	in, err := ParseInput(event)
	if err != nil {
		return failure(err.Error())
	}

	return h.HandleInput(ctx, in)
}

// HandleJSON decodes a raw event and wraps the result in an Envelope.
func (h *Handler) HandleJSON(ctx context.Context, raw []byte) Envelope {
	event, err := decodeEvent(raw)
	if err != nil {
		return Envelope{Output: failure(err.Error())}
	}

	return Envelope{Output: h.Handle(ctx, event)}
}

// DecodeInput decodes and validates a raw event without running it.
func (h *Handler) DecodeInput(raw []byte) (Input, error) {
	event, err := decodeEvent(raw)
	if err != nil {
		return Input{}, err
	}

	in, err := ParseInput(event)
	if err != nil {
		return Input{}, err
	}
	if err := h.Validate(in); err != nil {
		return Input{}, err
	}

	return in, nil
}

// HandleInput validates and runs in.
func (h *Handler) HandleInput(ctx context.Context, in Input) Output {
	if err := h.Validate(in); err != nil {
		return failure(err.Error())
	}

	req, err := service.NewRequest(in.SourceURL, in.TargetURL, in.SourceIndex, in.TargetIndex)
	if err != nil {
		return failure(err.Error())
	}

	encoded, res, err := h.swap.ExecuteBase64(ctx, req)
	if err != nil {
		se := service.AsError(err)
		if !se.ClientFault() {
			slog.Error("Serverless swap failed", "request_id", req.ID, "kind", se.Kind, "error", se.Err)
		}
		return failure(se.Message)
	}

	slog.Info("Serverless swap completed", "request_id", res.ID, "elapsed", res.Duration)
	return Output{
		Success:     true,
		ImageBase64: encoded,
		Message:     service.SuccessMessage,
	}
}

// Validate checks in and returns a readable error for the first violations.
func (h *Handler) Validate(in Input) error {
	err := h.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "http_url":
			msgs = append(msgs, fe.Field()+" must be an http or https URL")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be %s or greater, got %v", fe.Field(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}

	return errors.New(strings.Join(msgs, "; "))
}

// ParseInput reads the job fields from event. Indexes default to 1.
func ParseInput(event map[string]any) (Input, error) {
	fields := event
	if mapsafe.Present(event, "input") {
		nested, ok := mapsafe.Lookup[map[string]any](event, "input")
		if !ok {
			return Input{}, errors.New("input must be an object")
		}
		fields = nested
	}

	in := Input{
		SourceURL:   mapsafe.Get(fields, "source_url", ""),
		TargetURL:   mapsafe.Get(fields, "target_url", ""),
		SourceIndex: 1,
		TargetIndex: 1,
	}

	indexes := []struct {
		key string
		dst *int
	}{
		{"source_index", &in.SourceIndex},
		{"target_index", &in.TargetIndex},
	}
	for _, idx := range indexes {
		if !mapsafe.Present(fields, idx.key) {
			continue
		}
		n, ok := mapsafe.Lookup[int](fields, idx.key)
		if !ok {
			return Input{}, fmt.Errorf("%s must be an integer", idx.key)
		}
		*idx.dst = n
	}

	return in, nil
}

func decodeEvent(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var event map[string]any
	if err := dec.Decode(&event); err != nil {
		return nil, fmt.Errorf("invalid event JSON: %v", err)
	}
	if event == nil {
		return nil, errors.New("invalid event JSON: expected an object")
	}

	return event, nil
}

func failure(msg string) Output {
	return Output{Success: false, Message: msg}
}
