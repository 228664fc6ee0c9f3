package repository

import (
	"context"
	"time"

	"freshdesk-simulator/internal/domain/model"
)

// CompanyConfigRepository is the persistent config store. The scheduling
// engine only reads configs and mutates their counters; lifecycle calls
// come from the control surface.
type CompanyConfigRepository interface {
	Save(ctx context.Context, tx Tx, cfg *model.CompanyConfig) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.CompanyConfig, error)
	FindByURL(ctx context.Context, tx Tx, freshdeskURL string) (*model.CompanyConfig, error)
	FindByName(ctx context.Context, tx Tx, companyName string) (*model.CompanyConfig, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.CompanyConfig, error)
	Delete(ctx context.Context, tx Tx, id string) error

	// FindEligible returns active configs that pass model.IsEligible at now.
	FindEligible(ctx context.Context, tx Tx, now time.Time) ([]*model.CompanyConfig, error)

	// StampLastCreated sets last_ticket_created_at to at only if it still
	// equals observed (nil matches NULL). It reports whether the row changed.
	StampLastCreated(ctx context.Context, tx Tx, id string, observed *time.Time, at time.Time) (bool, error)

	// IncrementQuota adds exactly one completed ticket to the daily counter.
	IncrementQuota(ctx context.Context, tx Tx, id string) error

	// ResetQuotas zeroes every daily counter and returns the affected row count.
	ResetQuotas(ctx context.Context, tx Tx) (int64, error)

	SetActive(ctx context.Context, tx Tx, id string, active bool) error
}
