package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
)

// rosterSize is how many contacts and agents are generated for an empty account.
const rosterSize = 5

// Provisioner fills a company's local contact and agent roster and then
// activates the company for scheduling.
type Provisioner interface {
	Provision(ctx context.Context, cfg *model.CompanyConfig) error
}

var _ Provisioner = (*provisioner)(nil)

type provisioner struct {
	configs   repository.CompanyConfigRepository
	contacts  repository.ContactRepository
	agents    repository.AgentRepository
	clients   adapter.TicketingClientFactory
	generator adapter.TextGenerator
	log       *zerolog.Logger
}

func NewProvisioner(
	configs repository.CompanyConfigRepository,
	contacts repository.ContactRepository,
	agents repository.AgentRepository,
	clients adapter.TicketingClientFactory,
	generator adapter.TextGenerator,
	logger *zerolog.Logger,
) *provisioner {
	l := logger.With().Str("component", "provisioner").Logger()
	return &provisioner{
		configs:   configs,
		contacts:  contacts,
		agents:    agents,
		clients:   clients,
		generator: generator,
		log:       &l,
	}
}

// Provision runs per roster: a roster already stored is left alone, a remote
// roster is imported, and an empty account gets a generated one.
func (p *provisioner) Provision(ctx context.Context, cfg *model.CompanyConfig) error {
	client := p.clients.ForAccount(cfg.FreshdeskURL, cfg.APIKey)

	localContacts, err := p.contacts.ListByConfig(ctx, repository.NoTX, cfg.ID)
	if err != nil {
		return fmt.Errorf("list stored contacts: %w", err)
	}
	localAgents, err := p.agents.ListByConfig(ctx, repository.NoTX, cfg.ID)
	if err != nil {
		return fmt.Errorf("list stored agents: %w", err)
	}
	remoteContacts, err := client.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("list remote contacts: %w", err)
	}
	remoteAgents, err := client.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("list remote agents: %w", err)
	}

	if len(localContacts) == 0 {
		if len(remoteContacts) == 0 {
			if err := p.generateContacts(ctx, cfg, client); err != nil {
				return err
			}
		} else {
			for _, c := range remoteContacts {
				if err := p.contacts.Save(ctx, repository.NoTX, model.NewContact(cfg.ID, c.ID, c.Name, c.Email, c.Phone)); err != nil {
					return fmt.Errorf("import contact %d: %w", c.ID, err)
				}
			}
		}
	}

	if len(localAgents) == 0 {
		if len(remoteAgents) == 0 {
			p.generateAgents(ctx, cfg, client)
		} else {
			for _, a := range remoteAgents {
				if err := p.agents.Save(ctx, repository.NoTX, model.NewAgent(cfg.ID, a.ID, a.Available)); err != nil {
					return fmt.Errorf("import agent %d: %w", a.ID, err)
				}
			}
		}
	}

	if err := p.configs.SetActive(ctx, repository.NoTX, cfg.ID, true); err != nil {
		return fmt.Errorf("activate company: %w", err)
	}
	cfg.Active = true
	p.log.Info().Str("company_id", cfg.ID).Str("company_name", cfg.CompanyName).Msg("company provisioned")
	return nil
}

func (p *provisioner) generateContacts(ctx context.Context, cfg *model.CompanyConfig, client adapter.TicketingClient) error {
	generated, err := p.generator.Generate(ctx, contactsPrompt(rosterSize))
	if err != nil {
		return fmt.Errorf("generate contacts: %w", err)
	}
	items, err := parseObjects(generated)
	if err != nil {
		return fmt.Errorf("generate contacts: %w", err)
	}
	for _, item := range items {
		created, err := client.CreateContact(ctx, item)
		if err != nil {
			return fmt.Errorf("create contact: %w", err)
		}
		if err := p.contacts.Save(ctx, repository.NoTX, model.NewContact(cfg.ID, created.ID, created.Name, created.Email, created.Phone)); err != nil {
			return fmt.Errorf("save contact %d: %w", created.ID, err)
		}
	}
	return nil
}

// generateAgents is best effort; Freshdesk plans often cap agent seats.
func (p *provisioner) generateAgents(ctx context.Context, cfg *model.CompanyConfig, client adapter.TicketingClient) {
	generated, err := p.generator.Generate(ctx, agentsPrompt(rosterSize))
	if err != nil {
		p.log.Error().Err(err).Str("company_id", cfg.ID).Msg("failed to generate agents")
		return
	}
	items, err := parseObjects(generated)
	if err != nil {
		p.log.Error().Err(err).Str("company_id", cfg.ID).Msg("failed to parse generated agents")
		return
	}
	for _, item := range items {
		created, err := client.CreateAgent(ctx, item)
		if err != nil {
			p.log.Error().Err(err).Str("company_id", cfg.ID).Msg("failed to create agent")
			continue
		}
		if err := p.agents.Save(ctx, repository.NoTX, model.NewAgent(cfg.ID, created.ID, created.Available)); err != nil {
			p.log.Error().Err(err).Str("company_id", cfg.ID).Int64("agent_id", created.ID).Msg("failed to save agent")
		}
	}
}
