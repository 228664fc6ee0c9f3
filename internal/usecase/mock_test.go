//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Repositories
// =============================

// MockConfigRepo is an in-memory CompanyConfigRepository. Set a ...Func
// field to override one method.
type MockConfigRepo struct {
	mu   sync.Mutex
	byID map[string]*model.CompanyConfig

	SaveFunc           func(ctx context.Context, tx repository.Tx, c *model.CompanyConfig) error
	IncrementQuotaFunc func(ctx context.Context, tx repository.Tx, id string) error
	DeleteFunc         func(ctx context.Context, tx repository.Tx, id string) error

	IncrementCalls int
}

var _ repository.CompanyConfigRepository = (*MockConfigRepo)(nil)

func NewMockConfigRepo(cfgs ...*model.CompanyConfig) *MockConfigRepo {
	r := &MockConfigRepo{byID: map[string]*model.CompanyConfig{}}
	for _, c := range cfgs {
		cp := *c
		r.byID[c.ID] = &cp
	}
	return r
}

func (r *MockConfigRepo) get(id string) *model.CompanyConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func (r *MockConfigRepo) Save(ctx context.Context, tx repository.Tx, c *model.CompanyConfig) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.byID {
		if id != c.ID && other.FreshdeskURL == c.FreshdeskURL {
			return domain.ErrAlreadyExists
		}
	}
	cp := *c
	if old, ok := r.byID[c.ID]; ok {
		cp.TicketQuotaCompleted = old.TicketQuotaCompleted
		cp.LastTicketCreatedAt = old.LastTicketCreatedAt
	}
	r.byID[c.ID] = &cp
	return nil
}

func (r *MockConfigRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CompanyConfig, error) {
	if c := r.get(id); c != nil {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockConfigRepo) find(match func(*model.CompanyConfig) bool) (*model.CompanyConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockConfigRepo) FindByURL(ctx context.Context, tx repository.Tx, u string) (*model.CompanyConfig, error) {
	return r.find(func(c *model.CompanyConfig) bool { return c.FreshdeskURL == u })
}

func (r *MockConfigRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.CompanyConfig, error) {
	return r.find(func(c *model.CompanyConfig) bool { return c.CompanyName == name })
}

func (r *MockConfigRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.CompanyConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.CompanyConfig, 0, len(r.byID))
	for _, c := range r.byID {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MockConfigRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if r.DeleteFunc != nil {
		return r.DeleteFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MockConfigRepo) FindEligible(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.CompanyConfig, error) {
	all, _ := r.ListAll(ctx, tx)
	var out []*model.CompanyConfig
	for _, c := range all {
		if model.IsEligible(c, now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MockConfigRepo) StampLastCreated(ctx context.Context, tx repository.Tx, id string, observed *time.Time, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	if (observed == nil) != (c.LastTicketCreatedAt == nil) ||
		(observed != nil && !observed.Equal(*c.LastTicketCreatedAt)) {
		return false, nil
	}
	t := at
	c.LastTicketCreatedAt = &t
	return true, nil
}

func (r *MockConfigRepo) IncrementQuota(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	r.IncrementCalls++
	r.mu.Unlock()
	if r.IncrementQuotaFunc != nil {
		return r.IncrementQuotaFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.TicketQuotaCompleted++
	return nil
}

func (r *MockConfigRepo) ResetQuotas(ctx context.Context, tx repository.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		c.TicketQuotaCompleted = 0
	}
	return int64(len(r.byID)), nil
}

func (r *MockConfigRepo) SetActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Active = active
	return nil
}

type MockContactRepo struct {
	mu    sync.Mutex
	items []*model.Contact

	DeleteByConfigFunc func(ctx context.Context, tx repository.Tx, configID string) error
}

var _ repository.ContactRepository = (*MockContactRepo)(nil)

func (r *MockContactRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, c)
	return nil
}

func (r *MockContactRepo) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Contact
	for _, c := range r.items {
		if c.ConfigID == configID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MockContactRepo) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	if r.DeleteByConfigFunc != nil {
		return r.DeleteByConfigFunc(ctx, tx, configID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, c := range r.items {
		if c.ConfigID != configID {
			kept = append(kept, c)
		}
	}
	r.items = kept
	return nil
}

type MockAgentRepo struct {
	mu    sync.Mutex
	items []*model.Agent
}

var _ repository.AgentRepository = (*MockAgentRepo)(nil)

func (r *MockAgentRepo) Save(ctx context.Context, tx repository.Tx, a *model.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, a)
	return nil
}

func (r *MockAgentRepo) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Agent
	for _, a := range r.items {
		if a.ConfigID == configID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MockAgentRepo) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, a := range r.items {
		if a.ConfigID != configID {
			kept = append(kept, a)
		}
	}
	r.items = kept
	return nil
}

// MockTxManager runs fn without a real transaction.
type MockTxManager struct {
	Calls int
}

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// MockTicketingClient records requests; unset ...Func fields return zero values.
type MockTicketingClient struct {
	mu sync.Mutex

	VerifyCredentialsFunc func(ctx context.Context) error
	ListTicketFieldsFunc  func(ctx context.Context) ([]adapter.TicketField, error)
	CreateTicketFunc      func(ctx context.Context, fields map[string]any) (*adapter.Ticket, error)
	GetTicketFunc         func(ctx context.Context, id int64) (*adapter.Ticket, error)
	ReplyToTicketFunc     func(ctx context.Context, id int64, reply map[string]any) error
	ListAgentsFunc        func(ctx context.Context) ([]adapter.Agent, error)
	CreateAgentFunc       func(ctx context.Context, agent map[string]any) (*adapter.Agent, error)
	ListContactsFunc      func(ctx context.Context) ([]adapter.Contact, error)
	CreateContactFunc     func(ctx context.Context, contact map[string]any) (*adapter.Contact, error)

	CreatedTickets []map[string]any
	Replies        []map[string]any
}

var _ adapter.TicketingClient = (*MockTicketingClient)(nil)

func (m *MockTicketingClient) VerifyCredentials(ctx context.Context) error {
	if m.VerifyCredentialsFunc != nil {
		return m.VerifyCredentialsFunc(ctx)
	}
	return nil
}

func (m *MockTicketingClient) ListTicketFields(ctx context.Context) ([]adapter.TicketField, error) {
	if m.ListTicketFieldsFunc != nil {
		return m.ListTicketFieldsFunc(ctx)
	}
	return nil, nil
}

func (m *MockTicketingClient) CreateTicket(ctx context.Context, fields map[string]any) (*adapter.Ticket, error) {
	m.mu.Lock()
	m.CreatedTickets = append(m.CreatedTickets, fields)
	m.mu.Unlock()
	if m.CreateTicketFunc != nil {
		return m.CreateTicketFunc(ctx, fields)
	}
	return &adapter.Ticket{ID: 1}, nil
}

func (m *MockTicketingClient) GetTicket(ctx context.Context, id int64) (*adapter.Ticket, error) {
	if m.GetTicketFunc != nil {
		return m.GetTicketFunc(ctx, id)
	}
	return &adapter.Ticket{ID: id, Subject: "subject", Description: "description"}, nil
}

func (m *MockTicketingClient) ReplyToTicket(ctx context.Context, id int64, reply map[string]any) error {
	m.mu.Lock()
	m.Replies = append(m.Replies, reply)
	m.mu.Unlock()
	if m.ReplyToTicketFunc != nil {
		return m.ReplyToTicketFunc(ctx, id, reply)
	}
	return nil
}

func (m *MockTicketingClient) ListAgents(ctx context.Context) ([]adapter.Agent, error) {
	if m.ListAgentsFunc != nil {
		return m.ListAgentsFunc(ctx)
	}
	return nil, nil
}

func (m *MockTicketingClient) CreateAgent(ctx context.Context, agent map[string]any) (*adapter.Agent, error) {
	if m.CreateAgentFunc != nil {
		return m.CreateAgentFunc(ctx, agent)
	}
	return &adapter.Agent{ID: 1}, nil
}

func (m *MockTicketingClient) ListContacts(ctx context.Context) ([]adapter.Contact, error) {
	if m.ListContactsFunc != nil {
		return m.ListContactsFunc(ctx)
	}
	return nil, nil
}

func (m *MockTicketingClient) CreateContact(ctx context.Context, contact map[string]any) (*adapter.Contact, error) {
	if m.CreateContactFunc != nil {
		return m.CreateContactFunc(ctx, contact)
	}
	return &adapter.Contact{ID: 1}, nil
}

// MockClientFactory returns the same client for every account and records
// the API keys it was asked for.
type MockClientFactory struct {
	Client *MockTicketingClient
	Keys   []string
}

func (f *MockClientFactory) ForAccount(baseURL, apiKey string) adapter.TicketingClient {
	f.Keys = append(f.Keys, apiKey)
	return f.Client
}

// MockGenerator returns Responses in order, then repeats the last one.
type MockGenerator struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
}

var _ adapter.TextGenerator = (*MockGenerator)(nil)

func (g *MockGenerator) Provider() string { return "mock" }

func (g *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Responses) == 0 {
		return "", errors.New("mock generator: no responses")
	}
	out := g.Responses[0]
	if len(g.Responses) > 1 {
		g.Responses = g.Responses[1:]
	}
	return out, nil
}

// MockProvisioner records provisioned companies.
type MockProvisioner struct {
	Provisioned []string
	Err         error
}

func (p *MockProvisioner) Provision(ctx context.Context, cfg *model.CompanyConfig) error {
	p.Provisioned = append(p.Provisioned, cfg.ID)
	if p.Err == nil {
		cfg.Active = true
	}
	return p.Err
}

// failingListQueue wraps a queue whose List always fails.
type failingListQueue struct {
	adapter.JobQueue
}

func (failingListQueue) List(ctx context.Context) ([]*model.Job, error) {
	return nil, errors.New("queue unavailable")
}

func newConfig(id string) *model.CompanyConfig {
	return &model.CompanyConfig{
		ID:                   id,
		CompanyName:          id,
		FreshdeskURL:         "https://" + id + ".freshdesk.com",
		APIKey:               "key-" + id,
		TicketCreateInterval: 60,
		TicketReplyInterval:  45,
		TicketsPerDay:        10,
		Active:               true,
	}
}
