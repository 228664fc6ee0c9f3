package adapter

import (
	"context"

	"freshdesk-simulator/internal/domain/model"
)

// JobQueue is the policy layer over a durable work queue. Every job carries
// the uniform retry policy from model.NewJob: three attempts, a fixed one
// second backoff, and removal on success or on an exhausted budget.
type JobQueue interface {
	Enqueue(ctx context.Context, payload model.JobPayload, opts model.EnqueueOptions) (*model.Job, error)
	List(ctx context.Context) ([]*model.Job, error)
	Remove(ctx context.Context, jobID string) error

	// Claim hands out the oldest job whose run time has passed, or
	// domain.ErrQueueEmpty.
	Claim(ctx context.Context) (*model.Job, error)
	// Complete disposes of a successfully executed job.
	Complete(ctx context.Context, job *model.Job) error
	// Fail records a failed attempt. retried is false when the job was
	// dropped, either by exhausting its budget or because it was removed
	// while executing.
	Fail(ctx context.Context, job *model.Job, cause error) (retried bool, err error)
	// RequeueStalled returns claimed jobs whose lease expired to the schedule.
	RequeueStalled(ctx context.Context) (int, error)
}
