package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	"freshdesk-simulator/internal/infra/logging"
	"freshdesk-simulator/internal/infra/metrics"
)

// Compile-time check
var _ TicketUseCase = (*ticketUC)(nil)

// CreatedTicket is what the processor needs to schedule the reply.
type CreatedTicket struct {
	TicketID      int64
	ReplyInterval int // seconds
}

// ReplyDelay is the delay of the follow-up reply job.
func (c CreatedTicket) ReplyDelay() time.Duration {
	return time.Duration(c.ReplyInterval) * time.Second
}

// TicketUseCase runs the two job workflows against a company's Freshdesk account.
type TicketUseCase interface {
	// CreateTicket generates and submits one ticket and counts it against
	// the company's daily quota.
	CreateTicket(ctx context.Context, companyID string) (CreatedTicket, error)
	// ReplyToTicket answers a ticket as the company's first agent. It never
	// touches the quota.
	ReplyToTicket(ctx context.Context, companyID string, ticketID int64) error
}

type ticketUC struct {
	configs   repository.CompanyConfigRepository
	clients   adapter.TicketingClientFactory
	generator adapter.TextGenerator
	log       *zerolog.Logger
}

func NewTicketUseCase(
	configs repository.CompanyConfigRepository,
	clients adapter.TicketingClientFactory,
	generator adapter.TextGenerator,
	logger *zerolog.Logger,
) *ticketUC {
	l := logger.With().Str("component", "ticket_uc").Logger()
	return &ticketUC{configs: configs, clients: clients, generator: generator, log: &l}
}

func (uc *ticketUC) loadConfig(ctx context.Context, companyID string) (*model.CompanyConfig, error) {
	cfg, err := uc.configs.FindByID(ctx, repository.NoTX, companyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("configuration not found for company %s: %w", companyID, err)
		}
		return nil, err
	}
	return cfg, nil
}

func (uc *ticketUC) CreateTicket(ctx context.Context, companyID string) (CreatedTicket, error) {
	defer logging.TraceDuration(uc.log, "TicketUC.CreateTicket")()

	cfg, err := uc.loadConfig(ctx, companyID)
	if err != nil {
		return CreatedTicket{}, err
	}
	client := uc.clients.ForAccount(cfg.FreshdeskURL, cfg.APIKey)

	fields, err := client.ListTicketFields(ctx)
	if err != nil {
		return CreatedTicket{}, fmt.Errorf("list ticket fields: %w", err)
	}
	choices := make(map[string]json.RawMessage)
	for _, f := range fields {
		if !f.Required() {
			continue
		}
		if f.HasChoices() {
			choices[payloadKey(f.Name)] = f.Choices
		} else {
			choices[payloadKey(f.Name)] = json.RawMessage("null")
		}
	}

	generated, err := uc.generator.Generate(ctx, ticketPrompt(choices))
	if err != nil {
		return CreatedTicket{}, err
	}
	payload, err := parseObject(generated)
	if err != nil {
		return CreatedTicket{}, fmt.Errorf("ticket content: %w", err)
	}
	normalizeChoices(payload, fields)

	ticket, err := client.CreateTicket(ctx, payload)
	if err != nil {
		return CreatedTicket{}, fmt.Errorf("create ticket: %w", err)
	}
	metrics.IncTicketCreated()

	// The ticket exists remotely now and a retry would duplicate it, so a
	// failed increment is logged and the job still succeeds.
	if err := uc.configs.IncrementQuota(ctx, repository.NoTX, cfg.ID); err != nil {
		uc.log.Error().Err(err).Str("company_id", cfg.ID).Int64("ticket_id", ticket.ID).Msg("failed to count ticket against daily quota")
	}

	uc.log.Info().Str("company_id", cfg.ID).Int64("ticket_id", ticket.ID).Msg("ticket created")
	return CreatedTicket{TicketID: ticket.ID, ReplyInterval: cfg.TicketReplyInterval}, nil
}

func (uc *ticketUC) ReplyToTicket(ctx context.Context, companyID string, ticketID int64) error {
	defer logging.TraceDuration(uc.log, "TicketUC.ReplyToTicket")()

	if ticketID <= 0 {
		return fmt.Errorf("reply to ticket: %w: missing ticket id", domain.ErrInvalidArgument)
	}
	cfg, err := uc.loadConfig(ctx, companyID)
	if err != nil {
		return err
	}
	client := uc.clients.ForAccount(cfg.FreshdeskURL, cfg.APIKey)

	ticket, err := client.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("get ticket %d: %w", ticketID, err)
	}

	generated, err := uc.generator.Generate(ctx, replyPrompt(ticket.Subject, ticket.Text(), cfg.CompanyName))
	if err != nil {
		return err
	}
	reply, err := parseObject(generated)
	if err != nil {
		return fmt.Errorf("reply content: %w", err)
	}

	agents, err := client.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		return domain.ErrNoAgents
	}
	reply["from_email"] = agents[0].SenderEmail()
	reply["user_id"] = agents[0].ID

	if err := client.ReplyToTicket(ctx, ticketID, reply); err != nil {
		return fmt.Errorf("reply to ticket %d: %w", ticketID, err)
	}
	metrics.IncReplySent()
	uc.log.Info().Str("company_id", cfg.ID).Int64("ticket_id", ticketID).Msg("ticket replied")
	return nil
}
