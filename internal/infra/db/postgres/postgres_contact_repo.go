package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/repository"
)

var (
	_ repository.ContactRepository = (*PostgresContactRepo)(nil)
	_ repository.AgentRepository   = (*PostgresAgentRepo)(nil)
)

type PostgresContactRepo struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) *PostgresContactRepo {
	return &PostgresContactRepo{pool: pool}
}

func (r *PostgresContactRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contact) error {
	const q = `
INSERT INTO freshdesk_contacts (id, config_id, freshdesk_id, name, email, phone)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
  SET name  = EXCLUDED.name,
      email = EXCLUDED.email,
      phone = EXCLUDED.phone;`
	if _, err := execSQL(ctx, r.pool, tx, q, c.ID, c.ConfigID, c.FreshdeskID, c.Name, c.Email, c.Phone); err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

func (r *PostgresContactRepo) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Contact, error) {
	const q = `
SELECT id, config_id, freshdesk_id, name, email, phone
  FROM freshdesk_contacts
 WHERE config_id = $1
 ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, configID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	var out []*model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.ConfigID, &c.FreshdeskID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *PostgresContactRepo) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM freshdesk_contacts WHERE config_id = $1;`, configID); err != nil {
		return fmt.Errorf("delete contacts: %w", err)
	}
	return nil
}

type PostgresAgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *PostgresAgentRepo {
	return &PostgresAgentRepo{pool: pool}
}

func (r *PostgresAgentRepo) Save(ctx context.Context, tx repository.Tx, a *model.Agent) error {
	const q = `
INSERT INTO freshdesk_agents (id, config_id, freshdesk_id, available)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
  SET available = EXCLUDED.available;`
	if _, err := execSQL(ctx, r.pool, tx, q, a.ID, a.ConfigID, a.FreshdeskID, a.Available); err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (r *PostgresAgentRepo) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Agent, error) {
	const q = `
SELECT id, config_id, freshdesk_id, available
  FROM freshdesk_agents
 WHERE config_id = $1
 ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, configID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	var out []*model.Agent
	for rows.Next() {
		var a model.Agent
		if err := rows.Scan(&a.ID, &a.ConfigID, &a.FreshdeskID, &a.Available); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *PostgresAgentRepo) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM freshdesk_agents WHERE config_id = $1;`, configID); err != nil {
		return fmt.Errorf("delete agents: %w", err)
	}
	return nil
}
