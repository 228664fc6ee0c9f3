package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain/model"
	"freshdesk-simulator/internal/domain/ports/repository"
	red "freshdesk-simulator/internal/infra/redis"
)

var (
	_ repository.ContactRepository = (*contactRepoCacheDecorator)(nil)
	_ repository.AgentRepository   = (*agentRepoCacheDecorator)(nil)
)

// Contacts and agents are read by every job and written only when a company
// is provisioned or removed, so their per-company lists are cached.
const rosterCacheTTL = 10 * time.Minute

type contactRepoCacheDecorator struct {
	inner  repository.ContactRepository
	cache  red.RedisClient
	prefix string
	log    *zerolog.Logger
}

func NewContactRepoCacheDecorator(inner repository.ContactRepository, cache red.RedisClient, prefix string, logger *zerolog.Logger) repository.ContactRepository {
	l := logger.With().Str("component", "contact_cache").Logger()
	return &contactRepoCacheDecorator{inner: inner, cache: cache, prefix: prefix, log: &l}
}

func (d *contactRepoCacheDecorator) key(configID string) string {
	return d.prefix + ":contacts:" + configID
}

func (d *contactRepoCacheDecorator) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Contact, error) {
	// reads inside a transaction must see uncommitted rows
	if tx == nil {
		var cached []*model.Contact
		if readCache(ctx, d.cache, d.key(configID), &cached, d.log) {
			return cached, nil
		}
	}
	out, err := d.inner.ListByConfig(ctx, tx, configID)
	if err != nil {
		return nil, err
	}
	if tx == nil && len(out) > 0 {
		writeCache(ctx, d.cache, d.key(configID), out, d.log)
	}
	return out, nil
}

func (d *contactRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, c *model.Contact) error {
	_ = d.cache.Del(ctx, d.key(c.ConfigID))
	return d.inner.Save(ctx, tx, c)
}

func (d *contactRepoCacheDecorator) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	_ = d.cache.Del(ctx, d.key(configID))
	return d.inner.DeleteByConfig(ctx, tx, configID)
}

type agentRepoCacheDecorator struct {
	inner  repository.AgentRepository
	cache  red.RedisClient
	prefix string
	log    *zerolog.Logger
}

func NewAgentRepoCacheDecorator(inner repository.AgentRepository, cache red.RedisClient, prefix string, logger *zerolog.Logger) repository.AgentRepository {
	l := logger.With().Str("component", "agent_cache").Logger()
	return &agentRepoCacheDecorator{inner: inner, cache: cache, prefix: prefix, log: &l}
}

func (d *agentRepoCacheDecorator) key(configID string) string {
	return d.prefix + ":agents:" + configID
}

func (d *agentRepoCacheDecorator) ListByConfig(ctx context.Context, tx repository.Tx, configID string) ([]*model.Agent, error) {
	if tx == nil {
		var cached []*model.Agent
		if readCache(ctx, d.cache, d.key(configID), &cached, d.log) {
			return cached, nil
		}
	}
	out, err := d.inner.ListByConfig(ctx, tx, configID)
	if err != nil {
		return nil, err
	}
	if tx == nil && len(out) > 0 {
		writeCache(ctx, d.cache, d.key(configID), out, d.log)
	}
	return out, nil
}

func (d *agentRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, a *model.Agent) error {
	_ = d.cache.Del(ctx, d.key(a.ConfigID))
	return d.inner.Save(ctx, tx, a)
}

func (d *agentRepoCacheDecorator) DeleteByConfig(ctx context.Context, tx repository.Tx, configID string) error {
	_ = d.cache.Del(ctx, d.key(configID))
	return d.inner.DeleteByConfig(ctx, tx, configID)
}

func readCache(ctx context.Context, cache red.RedisClient, key string, dst interface{}, log *zerolog.Logger) bool {
	val, err := cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	return json.Unmarshal([]byte(val), dst) == nil
}

func writeCache(ctx context.Context, cache red.RedisClient, key string, v interface{}, log *zerolog.Logger) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, b, rosterCacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
