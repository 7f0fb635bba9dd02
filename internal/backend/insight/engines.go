package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/face"
)

// Locator implements backend.Locator.
type Locator struct {
	p *Provider
}

// Detect implements backend.Locator.
func (l *Locator) Detect(ctx context.Context, img *image.RGBA) ([]face.Face, error) {
	buf, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	resp, err := l.p.do(ctx, "/v1/detect", "image/png", buf)
	if err != nil {
		return nil, fmt.Errorf("insight: detect failed: %w", err)
	}
	defer resp.Body.Close()

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("insight: failed to decode faces: %w", err)
	}

	return out.Faces, nil
}

// Close implements backend.Locator.
func (l *Locator) Close() error {
	return nil
}

// Swapper implements backend.Swapper for one loaded model.
type Swapper struct {
	p      *Provider
	handle string
	path   string
}

// Swap implements backend.Swapper.
func (s *Swapper) Swap(ctx context.Context, img *image.RGBA, target, source face.Face, pasteBack bool) (*image.RGBA, error) {
	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := encoded.WriteTo(part); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	meta, err := json.Marshal(swapRequest{
		Handle:    s.handle,
		Target:    target,
		Source:    source,
		PasteBack: pasteBack,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}
	if err := writer.WriteField("request", string(meta)); err != nil {
		return nil, fmt.Errorf("failed to write field request: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	resp, err := s.p.do(ctx, "/v1/swap", writer.FormDataContentType(), &body)
	var se *StatusError
	if errors.As(err, &se) && modelLost(se.Code) {
		return nil, fmt.Errorf("%w: handle %s (%s): %s", backend.ErrModelRejected, s.handle, s.path, se.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("insight: swap failed: %w", err)
	}
	defer resp.Body.Close()

	out, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("insight: failed to decode swapped image: %w", err)
	}

	return toRGBA(out), nil
}

// modelLost reports whether a swap answer means the server no longer holds a
// usable model for the handle: unknown handle, handle conflict or a model
// that failed to run.
func modelLost(code int) bool {
	switch code {
	case http.StatusNotFound, http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Close unloads the model from the server.
func (s *Swapper) Close() error {
	ctx := context.Background()
	if err := s.p.postJSON(ctx, "/v1/models/unload", unloadRequest{Handle: s.handle}, nil); err != nil {
		return fmt.Errorf("insight: failed to unload %s (%s): %w", s.handle, s.path, err)
	}

	return nil
}
