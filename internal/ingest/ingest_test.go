package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func testLimits() Limits {
	l := DefaultLimits()
	l.Timeout = 2 * time.Second
	return l
}

func TestFetch_Downsamples(t *testing.T) {
	body := pngBytes(t, 4096, 2048, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultLimits().UserAgent, r.Header.Get("User-Agent"))
		w.Write(body)
	})

	img, err := NewFetcher(testLimits(), srv.Client()).Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)

	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 512, img.Bounds().Dy())
	px := img.RGBAAt(500, 200)
	assert.InDelta(t, 10, int(px.R), 1)
	assert.InDelta(t, 20, int(px.G), 1)
	assert.InDelta(t, 30, int(px.B), 1)
	assert.Equal(t, uint8(255), px.A)
}

func TestFetch_SmallImageKeepsSize(t *testing.T) {
	body := pngBytes(t, 300, 200, color.NRGBA{G: 200, A: 255})
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) { w.Write(body) })

	img, err := NewFetcher(testLimits(), srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 200), img.Bounds())
}

func TestFetch_TransparentBecomesOpaque(t *testing.T) {
	body := pngBytes(t, 4, 4, color.NRGBA{R: 255, G: 40, A: 0})
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) { w.Write(body) })

	img, err := NewFetcher(testLimits(), srv.Client()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 40, A: 255}, img.RGBAAt(1, 1))
}

func TestFetch_DeclaredLengthTooLarge(t *testing.T) {
	disconnected := make(chan struct{})
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(11<<20))
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
			close(disconnected)
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	_, err := NewFetcher(testLimits(), srv.Client()).Fetch(context.Background(), srv.URL)

	assert.Equal(t, KindTooLarge, KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("client kept the connection open")
	}
}

func TestFetch_UndeclaredBodyTooLarge(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		// flushing before writing everything forces chunked encoding
		w.Write(make([]byte, 512))
		w.(http.Flusher).Flush()
		w.Write(make([]byte, 4096))
	})

	limits := testLimits()
	limits.MaxBytes = 1024

	_, err := NewFetcher(limits, srv.Client()).Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindTooLarge, KindOf(err))
}

func TestFetch_Errors(t *testing.T) {
	notImage := serve(t, func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>hello</html>")) })
	missing := serve(t, func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	corrupt := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 10, 10, color.White)[:40])
	})

	tests := []struct {
		name string
		url  string
		want Kind
	}{
		{"ftp scheme", "ftp://example.com/a.png", KindBadURL},
		{"no scheme", "example.com/a.png", KindBadURL},
		{"garbage", "://", KindBadURL},
		{"not an image", notImage.URL, KindDecodeFailed},
		{"truncated png", corrupt.URL, KindDecodeFailed},
		{"404", missing.URL, KindUnreachable},
	}

	f := NewFetcher(testLimits(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), tt.url)
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	limits := testLimits()
	limits.Timeout = 50 * time.Millisecond

	_, err := NewFetcher(limits, srv.Client()).Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestFetcher_SetLimits(t *testing.T) {
	f := NewFetcher(testLimits(), nil)
	l := f.Limits()
	l.MaxDimension = 256
	f.SetLimits(l)

	assert.Equal(t, 256, f.Limits().MaxDimension)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4096, 4096, 1024, 1024, 1024},
		{4096, 3072, 1024, 1024, 768},
		{1000, 4096, 1024, 250, 1024},
		{800, 600, 1024, 800, 600},
		{1024, 10, 1024, 1024, 10},
		{5000, 1, 1024, 1024, 1},
		{2000, 1000, 0, 2000, 1000},
	}

	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}
