package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-content-sync/internal/changeset"
)

const defaultRetainFinished = 128

var (
	// ErrQueueFull is returned when the pending backlog is at capacity.
	ErrQueueFull = errors.New("syncer: queue is full")
	// ErrJobNotFound is returned for unknown or evicted job identifiers.
	ErrJobNotFound = errors.New("syncer: job not found")
)

// JobStatus is the lifecycle of a deferred changeset.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	// JobStatusDeferred marks a job drained at shutdown before it ran. Its
	// entries are recorded in the ledger as skipped.
	JobStatusDeferred JobStatus = "deferred"
)

// Job is one deferred changeset. Its ID is the changeset ID, so enqueuing
// the same changeset twice keeps a single pending job.
type Job struct {
	ID        string
	Changeset changeset.Changeset
	Options   Options
	Status    JobStatus
	Result    *Result
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j *Job) finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusDeferred
}

// Queue is an in-process FIFO of deferred changesets. Finished jobs stay
// visible to Get until more than the retention limit have finished after
// them; the ledger keeps the durable record.
type Queue struct {
	mu       sync.Mutex
	now      func() time.Time
	capacity int
	retain   int
	jobs     map[string]*Job
	pending  []*Job
	finished []*Job
	ready    chan struct{}
}

// QueueOption customises a Queue.
type QueueOption func(*Queue)

// WithQueueClock overrides the queue clock.
func WithQueueClock(clock func() time.Time) QueueOption {
	return func(q *Queue) {
		if clock != nil {
			q.now = clock
		}
	}
}

// WithRetainFinished sets how many finished jobs remain queryable.
func WithRetainFinished(n int) QueueOption {
	return func(q *Queue) {
		if n >= 0 {
			q.retain = n
		}
	}
}

// NewQueue returns a queue holding at most capacity pending jobs. A
// non-positive capacity means unbounded.
func NewQueue(capacity int, opts ...QueueOption) *Queue {
	q := &Queue{
		now:      time.Now,
		capacity: capacity,
		retain:   defaultRetainFinished,
		jobs:     make(map[string]*Job),
		ready:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds cs. A pending job for the same changeset is replaced in place
// and a running one is returned unchanged.
func (q *Queue) Enqueue(_ context.Context, cs changeset.Changeset, opts Options) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if existing, ok := q.jobs[cs.ID]; ok {
		switch existing.Status {
		case JobStatusPending:
			existing.Changeset = cs
			existing.Options = opts
			existing.UpdatedAt = now
			q.signal()
			return cloneJob(existing), nil
		case JobStatusRunning:
			return cloneJob(existing), nil
		}
	}
	if q.capacity > 0 && len(q.pending) >= q.capacity {
		return nil, ErrQueueFull
	}

	job := &Job{
		ID:        cs.ID,
		Changeset: cs,
		Options:   opts,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job)
	q.signal()
	return cloneJob(job), nil
}

// Ready fires after a job becomes pending.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Claim marks up to limit pending jobs as running and returns them oldest
// first. A non-positive limit claims everything pending.
func (q *Queue) Claim(limit int) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]*Job, 0, n)
	now := q.now()
	for i, job := range q.pending[:n] {
		job.Status = JobStatusRunning
		job.UpdatedAt = now
		out = append(out, cloneJob(job))
		q.pending[i] = nil
	}
	q.pending = q.pending[n:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return out
}

// MarkDone stores the result of a finished job.
func (q *Queue) MarkDone(id string, result *Result) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	wasFinished := job.finished()
	job.Status = JobStatusCompleted
	job.Result = result
	job.UpdatedAt = q.now()
	if !wasFinished {
		q.finishLocked(job)
	}
	return nil
}

// DrainPending removes every pending job, marks it deferred and returns it.
func (q *Queue) DrainPending() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Job, 0, len(q.pending))
	now := q.now()
	for _, job := range q.pending {
		job.Status = JobStatusDeferred
		job.UpdatedAt = now
		q.finishLocked(job)
		out = append(out, cloneJob(job))
	}
	q.pending = nil
	return out
}

// Get returns a copy of the job.
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Pending counts jobs waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Len counts every job the queue still tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// finishLocked records job as finished and evicts the oldest finished jobs
// beyond the retention limit.
func (q *Queue) finishLocked(job *Job) {
	q.finished = append(q.finished, job)
	for len(q.finished) > q.retain {
		evicted := q.finished[0]
		q.finished[0] = nil
		q.finished = q.finished[1:]
		if current, ok := q.jobs[evicted.ID]; ok && current == evicted {
			delete(q.jobs, evicted.ID)
		}
	}
	if cap(q.finished) > 4*(q.retain+1) {
		q.finished = append([]*Job(nil), q.finished...)
	}
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Changeset.Entries = append([]changeset.Entry(nil), job.Changeset.Entries...)
	return &clone
}
