// Package queue is a minimal in-process task runner with bounded concurrency
// and bounded retry. Jobs move pending -> processing -> completed, or back to
// pending for another attempt, or to failed once attempts are exhausted.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlawther/newsgrid/internal/logging"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrNoHandler means a job was submitted for a type nobody registered.
// This is a programming error: the job fails on its first attempt and is
// never retried.
var ErrNoHandler = errors.New("no handler registered for job type")

// HandlerError wraps a failure thrown by a job handler.
type HandlerError struct {
	JobType string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("job handler %s: %v", e.JobType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Handler executes one job attempt.
type Handler func(ctx context.Context, payload interface{}) error

// Job is the queue's record of one unit of work. Callers receive copies;
// only the queue mutates the canonical entry.
type Job struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Payload     interface{} `json:"payload,omitempty"`
	Status      Status      `json:"status"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `json:"maxAttempts"`
	LastError   string      `json:"lastError,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   time.Time   `json:"startedAt,omitempty"`
	CompletedAt time.Time   `json:"completedAt,omitempty"`
}

// SubmitOptions tunes one submission.
type SubmitOptions struct {
	MaxAttempts int
}

const defaultMaxAttempts = 3

// Queue dispatches submitted jobs to registered handlers. The dispatcher
// sleeps on a wake channel between submissions, so an idle queue burns no CPU.
type Queue struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	order    []string
	handlers map[string]Handler
	inFlight int

	maxConcurrent int
	logger        *logging.Logger

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Queue and starts its dispatcher.
func New(maxConcurrent int, logger *logging.Logger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	q := &Queue{
		jobs:          make(map[string]*Job),
		order:         make([]string, 0),
		handlers:      make(map[string]Handler),
		maxConcurrent: maxConcurrent,
		logger:        logger,
		wake:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}

	q.wg.Add(1)
	go q.dispatch()

	return q
}

// RegisterHandler associates a handler with a job type. Must be called before
// jobs of that type are submitted.
func (q *Queue) RegisterHandler(jobType string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Submit enqueues a job and returns its ID without waiting for completion.
func (q *Queue) Submit(jobType string, payload interface{}, opts ...SubmitOptions) string {
	maxAttempts := defaultMaxAttempts
	if len(opts) > 0 && opts[0].MaxAttempts > 0 {
		maxAttempts = opts[0].MaxAttempts
	}

	job := &Job{
		ID:          jobType + "-" + uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now(),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.mu.Unlock()

	q.signal()
	return job.ID
}

// GetJob returns a snapshot of one job.
func (q *Queue) GetJob(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// AllJobs returns snapshots of every job in submission order.
func (q *Queue) AllJobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.jobs[id])
	}
	return out
}

// JobsByStatus returns snapshots of jobs in one state, in submission order.
func (q *Queue) JobsByStatus(status Status) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0)
	for _, id := range q.order {
		if q.jobs[id].Status == status {
			out = append(out, *q.jobs[id])
		}
	}
	return out
}

// ClearCompleted removes every completed job and returns how many were removed.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.order[:0]
	removed := 0
	for _, id := range q.order {
		if q.jobs[id].Status == StatusCompleted {
			delete(q.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}

// ClearAll removes every job regardless of state and returns the count.
// In-flight handlers still finish, but their jobs are forgotten.
func (q *Queue) ClearAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := len(q.jobs)
	q.jobs = make(map[string]*Job)
	q.order = q.order[:0]
	return removed
}

// Stop halts dispatching before its next wake. Handlers already in flight
// finish naturally; pending jobs stay pending.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	q.wg.Wait()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatch() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		}

		q.dispatchPending()
	}
}

// dispatchPending starts handlers for pending jobs up to the concurrency
// ceiling, in roughly submission order.
func (q *Queue) dispatchPending() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		if q.inFlight >= q.maxConcurrent {
			return
		}

		job, ok := q.jobs[id]
		if !ok || job.Status != StatusPending {
			continue
		}

		job.Status = StatusProcessing
		job.Attempts++
		job.StartedAt = time.Now()

		handler, ok := q.handlers[job.Type]
		if !ok {
			// Unregistered type: the attempt is consumed and the job fails
			// immediately, no matter how many attempts remain.
			job.Status = StatusFailed
			job.LastError = ErrNoHandler.Error()
			job.CompletedAt = time.Now()
			q.logger.Error("Job has no registered handler", logging.WithFields(map[string]interface{}{
				"job":  job.ID,
				"type": job.Type,
			}))
			continue
		}

		q.inFlight++
		q.wg.Add(1)
		go q.runJob(job.ID, job.Type, job.Payload, handler)
	}
}

func (q *Queue) runJob(id, jobType string, payload interface{}, handler Handler) {
	defer q.wg.Done()

	err := handler(context.Background(), payload)

	q.mu.Lock()
	q.inFlight--

	job, ok := q.jobs[id]
	if ok {
		if err != nil {
			herr := &HandlerError{JobType: jobType, Err: err}
			job.LastError = herr.Error()

			if job.Attempts < job.MaxAttempts {
				job.Status = StatusPending
				q.logger.Warn("Job failed, retrying", logging.WithFields(map[string]interface{}{
					"job":     job.ID,
					"attempt": job.Attempts,
					"max":     job.MaxAttempts,
					"error":   err.Error(),
				}))
			} else {
				job.Status = StatusFailed
				job.CompletedAt = time.Now()
				q.logger.Error("Job failed permanently", logging.WithFields(map[string]interface{}{
					"job":      job.ID,
					"attempts": job.Attempts,
					"error":    err.Error(),
				}))
			}
		} else {
			job.Status = StatusCompleted
			job.CompletedAt = time.Now()
			q.logger.Info("Job completed", logging.WithFields(map[string]interface{}{
				"job":      job.ID,
				"attempts": job.Attempts,
			}))
		}
	}
	q.mu.Unlock()

	// A slot freed up and a retry may be waiting.
	q.signal()
}
