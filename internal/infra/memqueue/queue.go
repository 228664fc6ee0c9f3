// Package memqueue is a process-local job queue used in dev mode and tests.
package memqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
)

var _ adapter.JobQueue = (*Queue)(nil)

type entry struct {
	job    *model.Job
	active bool
	lease  time.Time
}

// Queue mirrors the Redis queue semantics in memory. Jobs do not survive a restart.
type Queue struct {
	mu         sync.Mutex
	clock      domain.Clock
	visibility time.Duration
	jobs       map[string]*entry
}

func New(visibility time.Duration, clock domain.Clock) *Queue {
	if clock == nil {
		clock = domain.SystemClock
	}
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Queue{clock: clock, visibility: visibility, jobs: make(map[string]*entry)}
}

func (q *Queue) Enqueue(_ context.Context, payload model.JobPayload, opts model.EnqueueOptions) (*model.Job, error) {
	if payload == nil || payload.Company() == "" {
		return nil, domain.ErrInvalidArgument
	}
	job := model.NewJob(payload, opts, q.clock.Now())
	q.mu.Lock()
	q.jobs[job.ID] = &entry{job: job}
	q.mu.Unlock()
	cp := *job
	return &cp, nil
}

func (q *Queue) List(_ context.Context) ([]*model.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, 0, len(q.jobs))
	for _, e := range q.jobs {
		cp := *e.job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *Queue) Remove(_ context.Context, jobID string) error {
	q.mu.Lock()
	delete(q.jobs, jobID)
	q.mu.Unlock()
	return nil
}

// Claim picks the due job with the earliest run time, ties broken by id.
func (q *Queue) Claim(_ context.Context) (*model.Job, error) {
	now := q.clock.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	var next *entry
	for _, e := range q.jobs {
		if e.active || e.job.RunAt.After(now) {
			continue
		}
		if next == nil || e.job.RunAt.Before(next.job.RunAt) ||
			(e.job.RunAt.Equal(next.job.RunAt) && e.job.ID < next.job.ID) {
			next = e
		}
	}
	if next == nil {
		return nil, domain.ErrQueueEmpty
	}
	next.active = true
	next.lease = now.Add(q.visibility)
	cp := *next.job
	return &cp, nil
}

func (q *Queue) Complete(_ context.Context, job *model.Job) error {
	q.mu.Lock()
	delete(q.jobs, job.ID)
	q.mu.Unlock()
	return nil
}

func (q *Queue) Fail(_ context.Context, job *model.Job, _ error) (bool, error) {
	_, retry := job.RecordFailure(q.clock.Now())
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.jobs[job.ID]
	if !ok {
		return false, nil
	}
	if !retry {
		delete(q.jobs, job.ID)
		return false, nil
	}
	cp := *job
	e.job = &cp
	e.active = false
	return true, nil
}

// RequeueStalled treats an expired lease as a failed attempt: the job is
// rescheduled after its backoff, or dropped once the budget is spent.
func (q *Queue) RequeueStalled(_ context.Context) (int, error) {
	now := q.clock.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, e := range q.jobs {
		if !e.active || e.lease.After(now) {
			continue
		}
		if _, retry := e.job.RecordFailure(now); !retry {
			delete(q.jobs, id)
			continue
		}
		e.active = false
		n++
	}
	return n, nil
}

// Len reports how many jobs are held, pending or executing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
