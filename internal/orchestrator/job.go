package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raglet/raglet/pkg/types"
)

// JobStatus is the lifecycle of a background vectorize job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one background indexing pass.
type Job struct {
	ID        string
	Root      string
	StartedAt time.Time

	mu         sync.Mutex
	status     JobStatus
	finishedAt time.Time
	report     *types.IndexReport
	err        error
	done       chan struct{}
}

func newJob(root string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Root:      root,
		StartedAt: time.Now(),
		status:    JobRunning,
		done:      make(chan struct{}),
	}
}

func (j *Job) finish(report *types.IndexReport, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report = report
	j.err = err
	j.finishedAt = time.Now()
	if err != nil {
		j.status = JobFailed
	} else {
		j.status = JobCompleted
	}
	close(j.done)
}

// Done returns a channel closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Snapshot returns the job's current status, report, and error.
func (j *Job) Snapshot() (JobStatus, *types.IndexReport, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.report, j.err
}

// finishedTime reports when the job ended, zero while still running.
func (j *Job) finishedTime() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt
}

// Duration is how long the job ran (or has been running).
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.finishedAt.Sub(j.StartedAt)
}
