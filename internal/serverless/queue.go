package serverless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"
)

// TaskSwap is the asynq task type of a queued swap job.
const TaskSwap = "swap:execute"

// QueueName is the asynq queue swap jobs are placed on.
const QueueName = "swap"

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("serverless: job not found")

// JobState follows the usual serverless job lifecycle names.
type JobState string

const (
	JobInQueue    JobState = "IN_QUEUE"
	JobInProgress JobState = "IN_PROGRESS"
	JobCompleted  JobState = "COMPLETED"
	JobFailed     JobState = "FAILED"
)

// JobStatus is what /status reports for a job.
type JobStatus struct {
	ID     string   `json:"id"`
	Status JobState `json:"status"`
	Output *Output  `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Queue enqueues swap jobs and looks up their results in Redis.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration
}

// NewQueue connects to Redis at addr. Results stay readable for retention.
func NewQueue(addr string, retention time.Duration) *Queue {
	opt := asynq.RedisClientOpt{Addr: addr}
	return &Queue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		retention: retention,
	}
}

// Enqueue stores in as a new job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, in Input) (JobStatus, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return JobStatus{}, fmt.Errorf("serverless: encode job: %w", err)
	}

	id := ulid.Make().String()
	task := asynq.NewTask(TaskSwap, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.TaskID(id),
		asynq.Queue(QueueName),
		asynq.MaxRetry(0),
		asynq.Retention(q.retention),
	)
	if err != nil {
		return JobStatus{}, fmt.Errorf("serverless: enqueue: %w", err)
	}

	return JobStatus{ID: info.ID, Status: JobInQueue}, nil
}

// Status returns the state of job id and its output once completed.
func (q *Queue) Status(id string) (JobStatus, error) {
	info, err := q.inspector.GetTaskInfo(QueueName, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return JobStatus{}, fmt.Errorf("serverless: job %s: %w", id, err)
	}

	return statusOf(info), nil
}

// Close releases the Redis connections.
func (q *Queue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

func statusOf(info *asynq.TaskInfo) JobStatus {
	st := JobStatus{ID: info.ID}

	switch info.State {
	case asynq.TaskStateActive:
		st.Status = JobInProgress
	case asynq.TaskStateCompleted:
		st.Status = JobCompleted
		var out Output
		if err := json.Unmarshal(info.Result, &out); err != nil {
			st.Status = JobFailed
			st.Error = fmt.Sprintf("unreadable job result: %v", err)
			break
		}
		st.Output = &out
	case asynq.TaskStateArchived:
		st.Status = JobFailed
		st.Error = info.LastErr
	default:
		st.Status = JobInQueue
	}

	return st
}
