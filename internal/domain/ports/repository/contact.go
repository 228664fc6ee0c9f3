package repository

import (
	"context"

	"freshdesk-simulator/internal/domain/model"
)

type ContactRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Contact) error
	ListByConfig(ctx context.Context, tx Tx, configID string) ([]*model.Contact, error)
	DeleteByConfig(ctx context.Context, tx Tx, configID string) error
}

type AgentRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Agent) error
	ListByConfig(ctx context.Context, tx Tx, configID string) ([]*model.Agent, error)
	DeleteByConfig(ctx context.Context, tx Tx, configID string) error
}
