package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	"freshdesk-simulator/internal/infra/metrics"
)

// Reconciler removes a company together with its outstanding queued work.
type Reconciler interface {
	// Remove purges the company's queued jobs, then deletes its contacts,
	// agents and config. Jobs already executing are left to finish.
	Remove(ctx context.Context, companyID string) (purged int, err error)
}

var _ Reconciler = (*reconciler)(nil)

type reconciler struct {
	configs  repository.CompanyConfigRepository
	contacts repository.ContactRepository
	agents   repository.AgentRepository
	queue    adapter.JobQueue
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewReconciler(
	configs repository.CompanyConfigRepository,
	contacts repository.ContactRepository,
	agents repository.AgentRepository,
	queue adapter.JobQueue,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconciler {
	l := logger.With().Str("component", "reconciler").Logger()
	return &reconciler{configs: configs, contacts: contacts, agents: agents, queue: queue, tm: tm, log: &l}
}

func (r *reconciler) Remove(ctx context.Context, companyID string) (int, error) {
	if _, err := r.configs.FindByID(ctx, repository.NoTX, companyID); err != nil {
		return 0, err
	}

	// A listing failure aborts so the config is never deleted while its
	// jobs may still be queued.
	jobs, err := r.queue.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list queued jobs: %w", err)
	}
	purged := 0
	for _, job := range jobs {
		if job.Payload.Company() != companyID {
			continue
		}
		if err := r.queue.Remove(ctx, job.ID); err != nil {
			r.log.Error().Err(err).Str("company_id", companyID).Str("job_id", job.ID).Msg("failed to purge job")
			continue
		}
		purged++
	}
	metrics.AddJobsPurged(purged)

	err = r.tm.WithTx(ctx, txOptions, func(ctx context.Context, tx repository.Tx) error {
		if err := r.contacts.DeleteByConfig(ctx, tx, companyID); err != nil {
			return err
		}
		if err := r.agents.DeleteByConfig(ctx, tx, companyID); err != nil {
			return err
		}
		return r.configs.Delete(ctx, tx, companyID)
	})
	if err != nil {
		return purged, fmt.Errorf("delete company %s: %w", companyID, err)
	}
	r.log.Info().Str("company_id", companyID).Int("purged_jobs", purged).Msg("company removed")
	return purged, nil
}
