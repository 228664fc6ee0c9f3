package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
)

var _ repository.CompanyConfigRepository = (*PostgresCompanyConfigRepo)(nil)

// PostgresCompanyConfigRepo stores configs in freshdesk_config. API keys
// pass through the cipher on every write and read.
type PostgresCompanyConfigRepo struct {
	pool   *pgxpool.Pool
	cipher adapter.SecretCipher
}

func NewCompanyConfigRepo(pool *pgxpool.Pool, cipher adapter.SecretCipher) *PostgresCompanyConfigRepo {
	return &PostgresCompanyConfigRepo{pool: pool, cipher: cipher}
}

const companyConfigColumns = `
id, company_name, freshdesk_url, api_key,
ticket_create_interval, ticket_reply_interval, tickets_per_day,
ticket_quota_completed, last_ticket_created_at, is_active, created_at`

// Save inserts a config or updates its settings. The counters
// (ticket_quota_completed, last_ticket_created_at) are owned by the
// scheduler and are never overwritten here.
func (r *PostgresCompanyConfigRepo) Save(ctx context.Context, tx repository.Tx, c *model.CompanyConfig) error {
	key, err := r.seal(c.APIKey)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO freshdesk_config (` + companyConfigColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  company_name           = EXCLUDED.company_name,
  freshdesk_url          = EXCLUDED.freshdesk_url,
  api_key                = EXCLUDED.api_key,
  ticket_create_interval = EXCLUDED.ticket_create_interval,
  ticket_reply_interval  = EXCLUDED.ticket_reply_interval,
  tickets_per_day        = EXCLUDED.tickets_per_day,
  is_active              = EXCLUDED.is_active;`
	_, err = execSQL(ctx, r.pool, tx, q,
		c.ID, c.CompanyName, c.FreshdeskURL, key,
		c.TicketCreateInterval, c.TicketReplyInterval, c.TicketsPerDay,
		c.TicketQuotaCompleted, c.LastTicketCreatedAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save company config: %w", err)
	}
	return nil
}

func (r *PostgresCompanyConfigRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CompanyConfig, error) {
	return r.findOne(ctx, tx, `SELECT`+companyConfigColumns+` FROM freshdesk_config WHERE id = $1;`, id)
}

func (r *PostgresCompanyConfigRepo) FindByURL(ctx context.Context, tx repository.Tx, freshdeskURL string) (*model.CompanyConfig, error) {
	return r.findOne(ctx, tx, `SELECT`+companyConfigColumns+` FROM freshdesk_config WHERE freshdesk_url = $1;`, freshdeskURL)
}

func (r *PostgresCompanyConfigRepo) FindByName(ctx context.Context, tx repository.Tx, companyName string) (*model.CompanyConfig, error) {
	return r.findOne(ctx, tx, `
SELECT`+companyConfigColumns+`
  FROM freshdesk_config
 WHERE company_name = $1
 ORDER BY created_at
 LIMIT 1;`, companyName)
}

func (r *PostgresCompanyConfigRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.CompanyConfig, error) {
	return r.findMany(ctx, tx, `SELECT`+companyConfigColumns+` FROM freshdesk_config ORDER BY created_at;`)
}

// FindEligible narrows candidates in SQL and then applies model.IsEligible
// so the predicate has one definition.
func (r *PostgresCompanyConfigRepo) FindEligible(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.CompanyConfig, error) {
	const q = `
SELECT` + companyConfigColumns + `
  FROM freshdesk_config
 WHERE is_active
   AND ticket_quota_completed < tickets_per_day
   AND (ticket_quota_completed = 0
        OR (last_ticket_created_at IS NOT NULL
            AND last_ticket_created_at <= $1::timestamptz - make_interval(secs => ticket_create_interval)))
 ORDER BY last_ticket_created_at NULLS FIRST, created_at;`
	all, err := r.findMany(ctx, tx, q, now)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if model.IsEligible(c, now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *PostgresCompanyConfigRepo) StampLastCreated(ctx context.Context, tx repository.Tx, id string, observed *time.Time, at time.Time) (bool, error) {
	const q = `
UPDATE freshdesk_config
   SET last_ticket_created_at = $3
 WHERE id = $1
   AND last_ticket_created_at IS NOT DISTINCT FROM $2::timestamptz;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, observed, at.Truncate(time.Microsecond))
	if err != nil {
		return false, fmt.Errorf("stamp last created: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresCompanyConfigRepo) IncrementQuota(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE freshdesk_config SET ticket_quota_completed = ticket_quota_completed + 1 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresCompanyConfigRepo) ResetQuotas(ctx context.Context, tx repository.Tx) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE freshdesk_config SET ticket_quota_completed = 0;`)
	if err != nil {
		return 0, fmt.Errorf("reset quotas: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresCompanyConfigRepo) SetActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE freshdesk_config SET is_active = $2 WHERE id = $1;`, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresCompanyConfigRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM freshdesk_config WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete company config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresCompanyConfigRepo) findOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.CompanyConfig, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	c, err := r.scan(row)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCompanyConfigRepo) findMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.CompanyConfig, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query company configs: %w", err)
	}
	defer rows.Close()
	var out []*model.CompanyConfig
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresCompanyConfigRepo) scan(row pgx.Row) (*model.CompanyConfig, error) {
	var c model.CompanyConfig
	var key string
	if err := row.Scan(
		&c.ID, &c.CompanyName, &c.FreshdeskURL, &key,
		&c.TicketCreateInterval, &c.TicketReplyInterval, &c.TicketsPerDay,
		&c.TicketQuotaCompleted, &c.LastTicketCreatedAt, &c.Active, &c.CreatedAt,
	); err != nil {
		return nil, scanErr(err)
	}
	plain, err := r.open(key)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key for %s: %w", c.ID, err)
	}
	c.APIKey = plain
	return &c, nil
}

func (r *PostgresCompanyConfigRepo) seal(key string) (string, error) {
	if r.cipher == nil {
		return key, nil
	}
	return r.cipher.Seal(key)
}

func (r *PostgresCompanyConfigRepo) open(key string) (string, error) {
	if r.cipher == nil {
		return key, nil
	}
	return r.cipher.Open(key)
}
