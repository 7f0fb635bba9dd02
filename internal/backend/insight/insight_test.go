package insight

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/swapface/internal/backend"
	"github.com/ekisa-team/swapface/internal/face"
)

// sidecar is a minimal stand-in for the inference server.
func sidecar(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/prepare", func(w http.ResponseWriter, r *http.Request) {
		var req prepareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "buffalo_l", req.Analysis)
		assert.Equal(t, 640, req.DetSize)
		json.NewEncoder(w).Encode(prepareResponse{Ready: true, Providers: []string{"CPUExecutionProvider"}})
	})
	mux.HandleFunc("POST /v1/detect", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		img, err := png.Decode(r.Body)
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
		json.NewEncoder(w).Encode(detectResponse{Faces: []face.Face{
			{Box: face.BoundingBox{Left: 5, Right: 7, Bottom: 2}, Score: 0.9},
			{Box: face.BoundingBox{Left: 1, Right: 3, Bottom: 2}, Score: 0.8, Payload: json.RawMessage(`{"kps":[1]}`)},
		}})
	})
	mux.HandleFunc("POST /v1/models/load", func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Path == "/models/corrupt.onnx" {
			http.Error(w, "INVALID_PROTOBUF: Protobuf parsing failed", http.StatusUnprocessableEntity)
			return
		}
		json.NewEncoder(w).Encode(loadResponse{Handle: "h1"})
	})
	mux.HandleFunc("POST /v1/swap", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		var req swapRequest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &req))
		assert.Equal(t, "h1", req.Handle)
		assert.True(t, req.PasteBack)
		assert.Equal(t, float32(1), req.Target.Box.Left)

		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		img, err := png.Decode(f)
		require.NoError(t, err)

		// paint the frame red to mark it as swapped
		out := image.NewNRGBA(img.Bounds())
		for y := 0; y < out.Bounds().Dy(); y++ {
			for x := 0; x < out.Bounds().Dx(); x++ {
				out.Set(x, y, color.NRGBA{R: 255, A: 255})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, out)
	})
	mux.HandleFunc("POST /v1/models/unload", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(url string) *Provider {
	return New(Config{URL: url + "/", Analysis: "buffalo_l", DetSize: 640}, nil)
}

func TestProvider_DetectAndSwap(t *testing.T) {
	srv := sidecar(t)
	p := newProvider(srv.URL)
	ctx := context.Background()

	assert.Equal(t, backend.ProviderInsight, p.Name())

	loc, err := p.NewLocator(ctx)
	require.NoError(t, err)
	defer loc.Close()

	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	faces, err := loc.Detect(ctx, img)
	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.JSONEq(t, `{"kps":[1]}`, string(faces[1].Payload))

	sw, err := p.LoadSwapper(ctx, "/models/inswapper_128.onnx")
	require.NoError(t, err)

	ordered := face.Order(faces)
	out, err := sw.Swap(ctx, img, ordered[0], ordered[1], true)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(3, 2))

	assert.NoError(t, sw.Close())
	assert.NoError(t, p.Close())
}

func TestProvider_LoadSwapperRejected(t *testing.T) {
	srv := sidecar(t)
	p := newProvider(srv.URL)

	_, err := p.LoadSwapper(context.Background(), "/models/corrupt.onnx")
	assert.ErrorIs(t, err, backend.ErrModelRejected)
	assert.ErrorContains(t, err, "Protobuf parsing failed")
}

func TestProvider_NoServer(t *testing.T) {
	p := New(Config{}, nil)

	_, err := p.NewLocator(context.Background())
	assert.ErrorContains(t, err, "no server url or binary configured")
}

func TestSwapper_LostModel(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		wantRejected bool
	}{
		{name: "unknown handle", code: http.StatusNotFound, wantRejected: true},
		{name: "model failed to run", code: http.StatusUnprocessableEntity, wantRejected: true},
		{name: "server error", code: http.StatusInternalServerError, wantRejected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /v1/swap", func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				http.Error(w, "unknown model handle h1", tt.code)
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			sw := &Swapper{p: newProvider(srv.URL), handle: "h1", path: "/models/inswapper_128.onnx"}
			img := image.NewRGBA(image.Rect(0, 0, 8, 4))

			_, err := sw.Swap(context.Background(), img, face.Face{}, face.Face{}, true)
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, backend.ErrModelRejected))
			assert.ErrorContains(t, err, "unknown model handle h1")
		})
	}
}
