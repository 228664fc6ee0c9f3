package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	"freshdesk-simulator/internal/infra/metrics"
	red "freshdesk-simulator/internal/infra/redis"
)

// EligibilityScanner periodically enqueues one create-ticket job for every
// company whose daily quota and create interval allow it.
type EligibilityScanner struct {
	interval time.Duration
	configs  repository.CompanyConfigRepository
	queue    adapter.JobQueue
	clock    domain.Clock
	locker   red.Locker
	lockKey  string
	log      *zerolog.Logger
}

func NewEligibilityScanner(
	interval time.Duration,
	configs repository.CompanyConfigRepository,
	queue adapter.JobQueue,
	clock domain.Clock,
	logger *zerolog.Logger,
) *EligibilityScanner {
	if clock == nil {
		clock = domain.SystemClock
	}
	l := logger.With().Str("component", "EligibilityScanner").Logger()
	return &EligibilityScanner{
		interval: interval,
		configs:  configs,
		queue:    queue,
		clock:    clock,
		log:      &l,
	}
}

// WithLocker makes each tick take key first so only one replica scans.
func (s *EligibilityScanner) WithLocker(l red.Locker, key string) *EligibilityScanner {
	s.locker = l
	s.lockKey = key
	return s
}

func (s *EligibilityScanner) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("Starting eligibility scanner")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping eligibility scanner")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Error().Err(err).Msg("eligibility scan failed")
			}
		}
	}
}

// Tick runs one scan and returns how many jobs it enqueued. Failures for a
// single company are logged and skipped.
func (s *EligibilityScanner) Tick(ctx context.Context) (int, error) {
	if s.locker != nil {
		token, err := s.locker.TryLock(ctx, s.lockKey, s.interval)
		if errors.Is(err, red.ErrLockHeld) {
			s.log.Debug().Msg("scan lock held elsewhere; skipping tick")
			return 0, nil
		}
		if err != nil {
			metrics.IncScanError("lock")
			return 0, err
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), s.lockKey, token); err != nil {
				s.log.Warn().Err(err).Msg("failed to release scan lock")
			}
		}()
	}

	start := time.Now()
	// Postgres keeps microseconds; the stamp must round-trip for the next CAS.
	now := s.clock.Now().UTC().Truncate(time.Microsecond)

	configs, err := s.configs.FindEligible(ctx, repository.NoTX, now)
	if err != nil {
		metrics.IncScanError("find")
		return 0, err
	}
	s.log.Debug().Int("eligible", len(configs)).Msg("eligibility scan")

	enqueued := 0
	for _, cfg := range configs {
		if !model.IsEligible(cfg, now) {
			continue
		}
		clog := s.log.With().Str("company_id", cfg.ID).Logger()

		won, err := s.configs.StampLastCreated(ctx, repository.NoTX, cfg.ID, cfg.LastTicketCreatedAt, now)
		if err != nil {
			metrics.IncScanError("stamp")
			clog.Error().Err(err).Msg("failed to stamp company")
			continue
		}
		if !won {
			clog.Debug().Msg("company claimed by a concurrent scan")
			continue
		}

		job, err := s.queue.Enqueue(ctx, model.CreateTicketJob{CompanyID: cfg.ID}, model.EnqueueOptions{})
		if err != nil {
			metrics.IncScanError("enqueue")
			clog.Error().Err(err).Msg("failed to enqueue create-ticket job")
			continue
		}
		metrics.IncJobEnqueued(string(model.JobKindCreateTicket))
		clog.Info().Str("job_id", job.ID).Int("tickets_today", cfg.TicketQuotaCompleted).Msg("create-ticket job enqueued")
		enqueued++
	}

	metrics.ObserveScan(len(configs), time.Since(start))
	return enqueued, nil
}
