package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/swapface/internal/config"
)

// --- Mock types ---

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(ctx, name, args, stdin)
	return nil, []byte(a.String(0)), a.Error(1)
}

// localDir returns the value following --local-dir.
func localDir(args []string) string {
	for i, a := range args {
		if a == "--local-dir" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// --- Tests ---

func TestHTTPFetcher_Fetch(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 4096)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inswapper/inswapper_128.onnx", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, config.DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write(payload)
	}))
	defer srv.Close()

	cfg := config.ModelsConfig{Source: config.SourceConfig{HTTP: &config.HTTPSource{BaseURL: srv.URL + "/inswapper/", Token: "secret"}}}

	var progress bytes.Buffer
	var declared int64
	f, err := New(cfg, WithHTTPClient(srv.Client()), WithProgress(func(_ string, total int64) io.Writer {
		declared = total
		return &progress
	}))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "inswapper_128.onnx.part")
	require.NoError(t, f.Fetch(context.Background(), "inswapper_128.onnx", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, len(payload), progress.Len())
	assert.Equal(t, int64(len(payload)), declared)
}

func TestHTTPFetcher_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), URLFor: func(v string) string { return srv.URL + "/" + v }}

	dest := filepath.Join(t.TempDir(), "model.part")
	err := f.Fetch(context.Background(), "inswapper_128.onnx", dest)
	assert.ErrorContains(t, err, "unexpected status 404")
	assert.NoFileExists(t, dest)
}

func TestNew(t *testing.T) {
	_, err := New(config.ModelsConfig{})
	assert.ErrorIs(t, err, ErrNoSource)

	f, err := New(config.ModelsConfig{Source: config.SourceConfig{HuggingFace: &config.HuggingFaceSource{Repo: "org/repo"}}})
	require.NoError(t, err)
	hf, ok := f.(*HTTPFetcher)
	require.True(t, ok)
	assert.Equal(t, "https://huggingface.co/org/repo/resolve/main/a.onnx", hf.URLFor("a.onnx"))

	f, err = New(config.ModelsConfig{Source: config.SourceConfig{HuggingFace: &config.HuggingFaceSource{Repo: "org/repo", UseCLI: true}}})
	require.NoError(t, err)
	assert.IsType(t, &HuggingFaceFetcher{}, f)
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://huggingface.co/a/b/resolve/v2/m.onnx", ResolveURL("/a/b/", "v2", "m.onnx"))
}

func TestHuggingFaceFetcher_RetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "inswapper_128.onnx.part")

	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "hf", mock.Anything, mock.Anything).
		Return("network down", errors.New("exit status 1")).Once()
	runner.On("Run", mock.Anything, "hf", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cliArgs := args.Get(2).([]string)
			assert.Equal(t, []string{"download", "org/repo", "inswapper_128.onnx"}, cliArgs[:3])
			assert.Contains(t, cliArgs, "--revision")
			os.WriteFile(filepath.Join(localDir(cliArgs), "inswapper_128.onnx"), []byte("model"), 0o644)
		}).
		Return("", nil).Once()

	f := NewHuggingFaceFetcher(config.HuggingFaceSource{Repo: "org/repo", Revision: "main"}).WithRunner(runner, time.Millisecond)

	require.NoError(t, f.Fetch(context.Background(), "inswapper_128.onnx", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "model", string(got))
	runner.AssertNumberOfCalls(t, "Run", 2)

	// staging directory is cleaned up
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHuggingFaceFetcher_GivesUp(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "hf", mock.Anything, mock.Anything).Return("boom", errors.New("exit status 2"))

	f := NewHuggingFaceFetcher(config.HuggingFaceSource{Repo: "org/repo"}).WithRunner(runner, time.Millisecond)

	err := f.Fetch(context.Background(), "inswapper_128.onnx", filepath.Join(t.TempDir(), "x.part"))
	assert.ErrorContains(t, err, "after 3 attempts")
	runner.AssertNumberOfCalls(t, "Run", 3)
}
