package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	"freshdesk-simulator/internal/infra/logging"
)

var txOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// Compile-time check
var _ CompanyUseCase = (*companyUC)(nil)

type CreateCompanyInput struct {
	FreshdeskURL         string `json:"freshdeskUrl"`
	APIKey               string `json:"apiKey"`
	TicketCreateInterval int    `json:"ticketCreateInterval"`
	TicketReplyInterval  int    `json:"ticketReplyInterval"`
	TicketsPerDay        int    `json:"ticketsPerDay"`
}

// UpdateCompanyInput carries only the fields the caller wants changed.
type UpdateCompanyInput struct {
	APIKey               *string `json:"apiKey,omitempty"`
	TicketCreateInterval *int    `json:"ticketCreateInterval,omitempty"`
	TicketReplyInterval  *int    `json:"ticketReplyInterval,omitempty"`
	TicketsPerDay        *int    `json:"ticketsPerDay,omitempty"`
}

// CompanyUseCase is the company lifecycle behind the control surface.
type CompanyUseCase interface {
	// Create verifies the credentials, stores the config and provisions it.
	// Registering a URL again re-runs provisioning and returns the stored record.
	Create(ctx context.Context, in CreateCompanyInput) (*model.CompanyConfig, error)
	GetByName(ctx context.Context, companyName string) (*model.CompanyConfig, error)
	List(ctx context.Context) ([]*model.CompanyConfig, error)
	Update(ctx context.Context, companyID string, in UpdateCompanyInput) (*model.CompanyConfig, error)
	Remove(ctx context.Context, companyID string) (int, error)
}

type companyUC struct {
	configs      repository.CompanyConfigRepository
	clients      adapter.TicketingClientFactory
	provisioner  Provisioner
	reconciler   Reconciler
	domainSuffix string
	log          *zerolog.Logger
}

func NewCompanyUseCase(
	configs repository.CompanyConfigRepository,
	clients adapter.TicketingClientFactory,
	provisioner Provisioner,
	reconciler Reconciler,
	domainSuffix string,
	logger *zerolog.Logger,
) *companyUC {
	l := logger.With().Str("component", "company_uc").Logger()
	return &companyUC{
		configs:      configs,
		clients:      clients,
		provisioner:  provisioner,
		reconciler:   reconciler,
		domainSuffix: domainSuffix,
		log:          &l,
	}
}

func (uc *companyUC) Create(ctx context.Context, in CreateCompanyInput) (*model.CompanyConfig, error) {
	defer logging.TraceDuration(uc.log, "CompanyUC.Create")()

	// validates URL, key and throttle values before anything leaves the process
	cfg, err := model.NewCompanyConfig(in.FreshdeskURL, in.APIKey,
		in.TicketCreateInterval, in.TicketReplyInterval, in.TicketsPerDay, uc.domainSuffix)
	if err != nil {
		return nil, err
	}
	if err := uc.clients.ForAccount(cfg.FreshdeskURL, cfg.APIKey).VerifyCredentials(ctx); err != nil {
		return nil, err
	}

	existing, err := uc.configs.FindByURL(ctx, repository.NoTX, cfg.FreshdeskURL)
	switch {
	case err == nil:
		uc.log.Info().Str("company_id", existing.ID).Msg("company already registered; re-running provisioning")
		if err := uc.provisioner.Provision(ctx, existing); err != nil {
			return nil, fmt.Errorf("provision company: %w", err)
		}
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if err := uc.configs.Save(ctx, repository.NoTX, cfg); err != nil {
		return nil, err
	}
	uc.log.Info().Str("company_id", cfg.ID).Str("company_name", cfg.CompanyName).Msg("company registered")
	if err := uc.provisioner.Provision(ctx, cfg); err != nil {
		return nil, fmt.Errorf("provision company: %w", err)
	}
	return cfg, nil
}

func (uc *companyUC) GetByName(ctx context.Context, companyName string) (*model.CompanyConfig, error) {
	return uc.configs.FindByName(ctx, repository.NoTX, strings.ToLower(strings.TrimSpace(companyName)))
}

func (uc *companyUC) List(ctx context.Context) ([]*model.CompanyConfig, error) {
	return uc.configs.ListAll(ctx, repository.NoTX)
}

func (uc *companyUC) Update(ctx context.Context, companyID string, in UpdateCompanyInput) (*model.CompanyConfig, error) {
	cfg, err := uc.configs.FindByID(ctx, repository.NoTX, companyID)
	if err != nil {
		return nil, err
	}

	if in.APIKey != nil {
		key := strings.TrimSpace(*in.APIKey)
		if key == "" {
			return nil, domain.ErrInvalidArgument
		}
		if key != cfg.APIKey {
			if err := uc.clients.ForAccount(cfg.FreshdeskURL, key).VerifyCredentials(ctx); err != nil {
				return nil, err
			}
			cfg.APIKey = key
		}
	}
	for _, f := range []struct {
		in  *int
		dst *int
	}{
		{in.TicketCreateInterval, &cfg.TicketCreateInterval},
		{in.TicketReplyInterval, &cfg.TicketReplyInterval},
		{in.TicketsPerDay, &cfg.TicketsPerDay},
	} {
		if f.in == nil {
			continue
		}
		if *f.in < 0 {
			return nil, domain.ErrInvalidArgument
		}
		*f.dst = *f.in
	}

	if err := uc.configs.Save(ctx, repository.NoTX, cfg); err != nil {
		return nil, err
	}
	return uc.configs.FindByID(ctx, repository.NoTX, companyID)
}

func (uc *companyUC) Remove(ctx context.Context, companyID string) (int, error) {
	return uc.reconciler.Remove(ctx, companyID)
}
