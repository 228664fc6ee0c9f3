//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
	red "freshdesk-simulator/internal/infra/redis"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// fakeConfigRepo keeps configs in memory. Only the methods the schedulers
// use have behavior; the rest report ErrOperationFailed.
type fakeConfigRepo struct {
	mu   sync.Mutex
	cfgs map[string]*model.CompanyConfig

	// AfterFindEligible runs after the snapshot is taken and before it is returned.
	AfterFindEligible func()
	StampFunc         func(id string) (bool, error)
	ResetQuotasFunc   func() (int64, error)
	ResetCalls        int
}

var _ repository.CompanyConfigRepository = (*fakeConfigRepo)(nil)

func newFakeConfigRepo(cfgs ...*model.CompanyConfig) *fakeConfigRepo {
	r := &fakeConfigRepo{cfgs: map[string]*model.CompanyConfig{}}
	for _, c := range cfgs {
		r.cfgs[c.ID] = c
	}
	return r
}

func (r *fakeConfigRepo) snapshot(id string) model.CompanyConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.cfgs[id]
}

func (r *fakeConfigRepo) FindEligible(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.CompanyConfig, error) {
	r.mu.Lock()
	var out []*model.CompanyConfig
	for _, c := range r.cfgs {
		if model.IsEligible(c, now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	r.mu.Unlock()
	if r.AfterFindEligible != nil {
		hook := r.AfterFindEligible
		r.AfterFindEligible = nil
		hook()
	}
	return out, nil
}

func (r *fakeConfigRepo) StampLastCreated(ctx context.Context, tx repository.Tx, id string, observed *time.Time, at time.Time) (bool, error) {
	if r.StampFunc != nil {
		return r.StampFunc(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cfgs[id]
	if !ok {
		return false, nil
	}
	cur := c.LastTicketCreatedAt
	if (observed == nil) != (cur == nil) || (observed != nil && !observed.Equal(*cur)) {
		return false, nil
	}
	t := at
	c.LastTicketCreatedAt = &t
	return true, nil
}

func (r *fakeConfigRepo) IncrementQuota(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs[id].TicketQuotaCompleted++
	return nil
}

func (r *fakeConfigRepo) ResetQuotas(ctx context.Context, tx repository.Tx) (int64, error) {
	r.ResetCalls++
	if r.ResetQuotasFunc != nil {
		return r.ResetQuotasFunc()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cfgs {
		c.TicketQuotaCompleted = 0
	}
	return int64(len(r.cfgs)), nil
}

func (r *fakeConfigRepo) Save(ctx context.Context, tx repository.Tx, c *model.CompanyConfig) error {
	return domain.ErrOperationFailed
}

func (r *fakeConfigRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CompanyConfig, error) {
	return nil, domain.ErrOperationFailed
}

func (r *fakeConfigRepo) FindByURL(ctx context.Context, tx repository.Tx, u string) (*model.CompanyConfig, error) {
	return nil, domain.ErrOperationFailed
}

func (r *fakeConfigRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.CompanyConfig, error) {
	return nil, domain.ErrOperationFailed
}

func (r *fakeConfigRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.CompanyConfig, error) {
	return nil, domain.ErrOperationFailed
}

func (r *fakeConfigRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return domain.ErrOperationFailed
}

func (r *fakeConfigRepo) SetActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	return domain.ErrOperationFailed
}

// failingEnqueueQueue rejects enqueues for one company.
type failingEnqueueQueue struct {
	adapter.JobQueue
	company string
}

func (q failingEnqueueQueue) Enqueue(ctx context.Context, p model.JobPayload, opts model.EnqueueOptions) (*model.Job, error) {
	if p.Company() == q.company {
		return nil, errors.New("queue unavailable")
	}
	return q.JobQueue.Enqueue(ctx, p, opts)
}

// fakeLocker is a single-process Locker.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

var _ red.Locker = (*fakeLocker)(nil)

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", red.ErrLockHeld
	}
	l.held[key] = "token"
	return "token", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func company(id string, perDay, interval int) *model.CompanyConfig {
	return &model.CompanyConfig{
		ID:                   id,
		CompanyName:          id,
		FreshdeskURL:         "https://" + id + ".freshdesk.com",
		TicketCreateInterval: interval,
		TicketReplyInterval:  30,
		TicketsPerDay:        perDay,
		Active:               true,
	}
}
