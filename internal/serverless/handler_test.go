package serverless

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/swapface/internal/service"
)

// --- Mock types ---

type MockSwapper struct {
	mock.Mock
}

func (m *MockSwapper) ExecuteBase64(ctx context.Context, req service.Request) (string, *service.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(1).(*service.Result)
	return args.String(0), res, args.Error(2)
}

// --- Tests ---

const (
	srcURL = "http://images.test/source.png"
	dstURL = "http://images.test/target.png"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name    string
		event   map[string]any
		want    Input
		wantErr string
	}{
		{
			name:  "nested input with defaults",
			event: map[string]any{"input": map[string]any{"source_url": srcURL, "target_url": dstURL}},
			want:  Input{SourceURL: srcURL, TargetURL: dstURL, SourceIndex: 1, TargetIndex: 1},
		},
		{
			name:  "flat event",
			event: map[string]any{"source_url": srcURL, "target_url": dstURL, "source_index": 2, "target_index": 3},
			want:  Input{SourceURL: srcURL, TargetURL: dstURL, SourceIndex: 2, TargetIndex: 3},
		},
		{
			name:  "indexes decoded as floats",
			event: map[string]any{"input": map[string]any{"source_url": srcURL, "target_url": dstURL, "source_index": float64(2)}},
			want:  Input{SourceURL: srcURL, TargetURL: dstURL, SourceIndex: 2, TargetIndex: 1},
		},
		{
			name:    "non integer index",
			event:   map[string]any{"input": map[string]any{"source_url": srcURL, "target_url": dstURL, "target_index": "two"}},
			wantErr: "target_index must be an integer",
		},
		{
			name:    "input is not an object",
			event:   map[string]any{"input": "swap"},
			wantErr: "input must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInput(tt.event)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_Success(t *testing.T) {
	sw := new(MockSwapper)
	sw.On("ExecuteBase64", mock.Anything, mock.MatchedBy(func(r service.Request) bool {
		return r.SourceURL == srcURL && r.TargetURL == dstURL && r.SourceIndex == 2 && r.TargetIndex == 1 && r.ID != ""
	})).Return("iVBORw0KGgo=", &service.Result{ID: "job"}, nil)

	out := NewHandler(sw).Handle(context.Background(), map[string]any{
		"input": map[string]any{"source_url": srcURL, "target_url": dstURL, "source_index": 2},
	})

	assert.Equal(t, Output{Success: true, ImageBase64: "iVBORw0KGgo=", Message: service.SuccessMessage}, out)
	sw.AssertExpectations(t)
}

func TestHandle_RejectedBeforeSwap(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{
			name:  "missing source url",
			input: map[string]any{"target_url": dstURL},
			want:  "source_url is required",
		},
		{
			name:  "zero index",
			input: map[string]any{"source_url": srcURL, "target_url": dstURL, "source_index": 0},
			want:  "source_index must be 1 or greater, got 0",
		},
		{
			name:  "unsupported scheme",
			input: map[string]any{"source_url": srcURL, "target_url": "ftp://images.test/t.png"},
			want:  "target_url must be an http or https URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := new(MockSwapper)
			out := NewHandler(sw).Handle(context.Background(), map[string]any{"input": tt.input})

			assert.False(t, out.Success)
			assert.Empty(t, out.ImageBase64)
			assert.Contains(t, out.Message, tt.want)
			sw.AssertNotCalled(t, "ExecuteBase64", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_SwapErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "index out of range",
			err: &service.Error{
				Kind:    service.KindFaceIndexOutOfRange,
				Message: "The image includes only 3 faces, however, you asked for face 5",
			},
			want: "The image includes only 3 faces, however, you asked for face 5",
		},
		{
			name: "foreign error is generic",
			err:  errors.New("sidecar exploded"),
			want: "Face swap failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := new(MockSwapper)
			sw.On("ExecuteBase64", mock.Anything, mock.Anything).Return("", nil, tt.err)

			out := NewHandler(sw).Handle(context.Background(), map[string]any{
				"input": map[string]any{"source_url": srcURL, "target_url": dstURL},
			})

			assert.Equal(t, Output{Success: false, Message: tt.want}, out)
		})
	}
}

func TestHandleJSON(t *testing.T) {
	sw := new(MockSwapper)
	sw.On("ExecuteBase64", mock.Anything, mock.MatchedBy(func(r service.Request) bool {
		return r.SourceIndex == 2 && r.TargetIndex == 1
	})).Return("aGk=", &service.Result{ID: "job"}, nil)
	h := NewHandler(sw)

	env := h.HandleJSON(context.Background(), []byte(`{"input":{"source_url":"`+srcURL+`","target_url":"`+dstURL+`","source_index":2}}`))
	assert.True(t, env.Output.Success)
	assert.Equal(t, "aGk=", env.Output.ImageBase64)

	env = h.HandleJSON(context.Background(), []byte(`{not json`))
	assert.False(t, env.Output.Success)
	assert.Contains(t, env.Output.Message, "invalid event JSON")

	data, err := json.Marshal(Envelope{Output: Output{Message: "x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":{"success":false,"message":"x"}}`, string(data))
}

func TestWorker_Process(t *testing.T) {
	sw := new(MockSwapper)
	sw.On("ExecuteBase64", mock.Anything, mock.Anything).Return("aGk=", &service.Result{ID: "job"}, nil)
	w := &Worker{handler: NewHandler(sw)}

	payload, err := json.Marshal(Input{SourceURL: srcURL, TargetURL: dstURL, SourceIndex: 1, TargetIndex: 1})
	require.NoError(t, err)

	data, err := w.process(context.Background(), payload)
	require.NoError(t, err)

	var out Output
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Success)
	assert.Equal(t, "aGk=", out.ImageBase64)

	_, err = w.process(context.Background(), []byte("{"))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStatusOf(t *testing.T) {
	result, err := json.Marshal(Output{Success: true, ImageBase64: "aGk=", Message: service.SuccessMessage})
	require.NoError(t, err)

	tests := []struct {
		name string
		info *asynq.TaskInfo
		want JobStatus
	}{
		{
			name: "pending",
			info: &asynq.TaskInfo{ID: "a", State: asynq.TaskStatePending},
			want: JobStatus{ID: "a", Status: JobInQueue},
		},
		{
			name: "active",
			info: &asynq.TaskInfo{ID: "b", State: asynq.TaskStateActive},
			want: JobStatus{ID: "b", Status: JobInProgress},
		},
		{
			name: "completed",
			info: &asynq.TaskInfo{ID: "c", State: asynq.TaskStateCompleted, Result: result},
			want: JobStatus{ID: "c", Status: JobCompleted, Output: &Output{Success: true, ImageBase64: "aGk=", Message: service.SuccessMessage}},
		},
		{
			name: "archived",
			info: &asynq.TaskInfo{ID: "d", State: asynq.TaskStateArchived, LastErr: "decode job"},
			want: JobStatus{ID: "d", Status: JobFailed, Error: "decode job"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.info))
		})
	}
}
