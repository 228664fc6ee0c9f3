//go:build !integration

package postgres

import (
	"context"
	"time"

	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/repository"
	red "freshdesk-simulator/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerContactRepo struct {
	SaveFunc           func(ctx context.Context, tx repository.Tx, c *model.Contact) error
	ListByConfigFunc   func(ctx context.Context, tx repository.Tx, configID string) ([]*model.Contact, error)
	DeleteByConfigFunc func(ctx context.Context, tx repository.Tx, configID string) error
}

func (m *mockInnerContactRepo) Save(ctx context.Context, tx repository.Tx, c *model.Contact) error {
	return m.SaveFunc(ctx, tx, c)
}
func (m *mockInnerContactRepo) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Contact, error) {
	return m.ListByConfigFunc(ctx, tx, configID)
}
func (m *mockInnerContactRepo) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	return m.DeleteByConfigFunc(ctx, tx, configID)
}

type mockInnerAgentRepo struct {
	SaveFunc           func(ctx context.Context, tx repository.Tx, a *model.Agent) error
	ListByConfigFunc   func(ctx context.Context, tx repository.Tx, configID string) ([]*model.Agent, error)
	DeleteByConfigFunc func(ctx context.Context, tx repository.Tx, configID string) error
}

func (m *mockInnerAgentRepo) Save(ctx context.Context, tx repository.Tx, a *model.Agent) error {
	return m.SaveFunc(ctx, tx, a)
}
func (m *mockInnerAgentRepo) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Agent, error) {
	return m.ListByConfigFunc(ctx, tx, configID)
}
func (m *mockInnerAgentRepo) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	return m.DeleteByConfigFunc(ctx, tx, configID)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
