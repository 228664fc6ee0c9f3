package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/ports/repository"
	"freshdesk-simulator/internal/infra/metrics"
	red "freshdesk-simulator/internal/infra/redis"
)

// ParseSchedule parses a five-field cron expression (or a descriptor such
// as @daily) evaluated in timezone. An empty timezone means the server's
// local time.
func ParseSchedule(expr, timezone string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if timezone == "" {
		timezone = "Local"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timezone %q", domain.ErrInvalidArgument, timezone)
	}
	schedule, err := parser.Parse("CRON_TZ=" + loc.String() + " " + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", domain.ErrInvalidArgument, expr, err)
	}
	return schedule, nil
}

// QuotaResetter zeroes every company's ticket_quota_completed on a cron schedule.
type QuotaResetter struct {
	schedule cron.Schedule
	configs  repository.CompanyConfigRepository
	clock    domain.Clock
	poll     time.Duration
	locker   red.Locker
	lockKey  string
	log      *zerolog.Logger

	mu   sync.Mutex
	next time.Time
}

func NewQuotaResetter(
	expr, timezone string,
	configs repository.CompanyConfigRepository,
	clock domain.Clock,
	logger *zerolog.Logger,
) (*QuotaResetter, error) {
	schedule, err := ParseSchedule(expr, timezone)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	l := logger.With().Str("component", "QuotaResetter").Logger()
	return &QuotaResetter{
		schedule: schedule,
		configs:  configs,
		clock:    clock,
		poll:     30 * time.Second,
		log:      &l,
		next:     schedule.Next(clock.Now()),
	}, nil
}

// WithLocker makes a due reset take key first so only one replica runs it.
func (r *QuotaResetter) WithLocker(l red.Locker, key string) *QuotaResetter {
	r.locker = l
	r.lockKey = key
	return r
}

// Next is the next scheduled reset.
func (r *QuotaResetter) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

func (r *QuotaResetter) Run(ctx context.Context) error {
	r.log.Info().Time("next_reset", r.Next()).Msg("Starting quota resetter")
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Stopping quota resetter")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				r.log.Error().Err(err).Msg("quota reset failed")
			}
		}
	}
}

// Tick resets the quotas if the scheduled time has passed. A failed reset
// keeps the schedule so the next tick tries again.
func (r *QuotaResetter) Tick(ctx context.Context) (reset bool, err error) {
	now := r.clock.Now()
	r.mu.Lock()
	due := !now.Before(r.next)
	r.mu.Unlock()
	if !due {
		return false, nil
	}

	if r.locker != nil {
		// The lease outlives the run so a replica whose clock lags does not repeat it.
		token, err := r.locker.TryLock(ctx, r.lockKey, time.Hour)
		if errors.Is(err, red.ErrLockHeld) {
			r.advance(now)
			r.log.Debug().Msg("quota reset already taken by another instance")
			return false, nil
		}
		if err != nil {
			return false, err
		}
		defer func() {
			if !reset {
				_ = r.locker.Unlock(context.WithoutCancel(ctx), r.lockKey, token)
			}
		}()
	}

	n, err := r.configs.ResetQuotas(ctx, repository.NoTX)
	if err != nil {
		return false, err
	}
	reset = true
	r.advance(now)
	metrics.IncQuotaReset()
	r.log.Info().Int64("companies", n).Time("next_reset", r.Next()).Msg("daily quotas reset")
	return true, nil
}

func (r *QuotaResetter) advance(now time.Time) {
	r.mu.Lock()
	r.next = r.schedule.Next(now)
	r.mu.Unlock()
}
