package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServerManager_WaitForServer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sm := NewServerManager()
	sm.poll = 10 * time.Millisecond

	assert.NoError(t, sm.WaitForServer(context.Background(), srv.URL+"/health", time.Second))
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerManager_WaitForServerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sm := NewServerManager()
	sm.poll = 10 * time.Millisecond

	err := sm.WaitForServer(context.Background(), srv.URL, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServerManager_StartMissingBinary(t *testing.T) {
	sm := NewServerManager()

	_, err := sm.StartServer(context.Background(), ServerConfig{Name: "insight", BinPath: "/nonexistent/insight-server", Port: 9999})
	assert.Error(t, err)

	assert.ErrorIs(t, sm.StopServer("insight", 9999), ErrServerNotRunning)
}

func TestExecutor(t *testing.T) {
	e := NewExecutor("sh", time.Second)

	stdout, _, err := e.Execute(context.Background(), []string{"-c", "cat"}, strings.NewReader("hello"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(stdout))
}
