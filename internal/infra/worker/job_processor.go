package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/infra/logging"
	"freshdesk-simulator/internal/infra/metrics"
	"freshdesk-simulator/internal/usecase"
)

// JobProcessor claims jobs from the queue and runs them on the worker pool.
type JobProcessor struct {
	queue        adapter.JobQueue
	tickets      usecase.TicketUseCase
	poll         time.Duration
	requeueEvery time.Duration
	log          *zerolog.Logger

	// drainers submitted to the pool that have not started yet
	pending atomic.Int32
}

func NewJobProcessor(
	queue adapter.JobQueue,
	tickets usecase.TicketUseCase,
	poll time.Duration,
	logger *zerolog.Logger,
) *JobProcessor {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	l := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		queue:        queue,
		tickets:      tickets,
		poll:         poll,
		requeueEvery: 30 * time.Second,
		log:          &l,
	}
}

// Start polls until ctx is done. Each tick hands one draining task to the pool.
// Run it in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("poll", p.poll).Int("workers", pool.Size()).Msg("Job processor started")
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	requeue := time.NewTicker(p.requeueEvery)
	defer requeue.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Job processor stopping")
			return
		case <-requeue.C:
			if n, err := p.queue.RequeueStalled(ctx); err != nil {
				p.log.Error().Err(err).Msg("failed to requeue stalled jobs")
			} else if n > 0 {
				metrics.AddJobsRequeued(n)
				p.log.Warn().Int("count", n).Msg("stalled jobs returned to the schedule")
			}
		case <-ticker.C:
			_ = p.submitDrain(pool)
		}
	}
}

// submitDrain queues a task that claims jobs until the queue is empty. No new
// drainer is queued while pool.Size() of them are still waiting for a worker.
func (p *JobProcessor) submitDrain(pool *Pool) error {
	if int(p.pending.Load()) >= pool.Size() {
		return nil
	}
	p.pending.Add(1)
	err := pool.Submit(func(ctx context.Context) error {
		p.pending.Add(-1)
		for ctx.Err() == nil {
			ok, err := p.ProcessOne(ctx)
			if err != nil || !ok {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.pending.Add(-1)
		p.log.Debug().Err(err).Msg("drain task not submitted")
	}
	return err
}

// ProcessOne claims and runs a single job. It reports false when nothing was due.
func (p *JobProcessor) ProcessOne(ctx context.Context) (bool, error) {
	job, err := p.queue.Claim(ctx)
	if errors.Is(err, domain.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}

	ctx = logging.WithJobID(logging.WithCompanyID(ctx, job.Payload.Company()), job.ID)
	log := logging.With(ctx, p.log)
	kind := string(job.Payload.Kind())
	log.Info().Str("kind", kind).Int("attempt", job.Attempt+1).Msg("Processing job")
	start := time.Now()

	runErr := p.handle(ctx, job)
	elapsed := time.Since(start)

	if runErr == nil {
		if err := p.queue.Complete(ctx, job); err != nil {
			log.Error().Err(err).Msg("failed to complete job")
		}
		metrics.IncJobProcessed(kind, "succeeded")
		log.Info().Str("kind", kind).Dur("duration_ms", elapsed).Msg("Job finished")
		return true, nil
	}

	retried, err := p.queue.Fail(ctx, job, runErr)
	if err != nil {
		log.Error().Err(err).Msg("failed to record job failure")
	}
	if retried {
		metrics.IncJobProcessed(kind, "retried")
		log.Warn().Err(runErr).Str("kind", kind).Int("attempt", job.Attempt).Msg("Job failed; retry scheduled")
	} else {
		metrics.IncJobProcessed(kind, "dropped")
		log.Error().Err(runErr).Str("kind", kind).Int("attempt", job.Attempt).Msg("Job failed permanently; dropped")
	}
	return true, nil
}

func (p *JobProcessor) handle(ctx context.Context, job *model.Job) error {
	switch payload := job.Payload.(type) {
	case model.CreateTicketJob:
		created, err := p.tickets.CreateTicket(ctx, payload.CompanyID)
		if err != nil {
			return err
		}
		reply := model.ReplyTicketJob{
			CompanyID:     payload.CompanyID,
			TicketID:      created.TicketID,
			ReplyInterval: created.ReplyInterval,
		}
		if _, err := p.queue.Enqueue(ctx, reply, model.EnqueueOptions{Delay: created.ReplyDelay()}); err != nil {
			return fmt.Errorf("enqueue reply for ticket %d: %w", created.TicketID, err)
		}
		metrics.IncJobEnqueued(string(model.JobKindReplyTicket))
		return nil
	case model.ReplyTicketJob:
		return p.tickets.ReplyToTicket(ctx, payload.CompanyID, payload.TicketID)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownJobKind, job.Payload)
	}
}
