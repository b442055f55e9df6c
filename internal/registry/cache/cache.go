// Package cache provides a Redis read-through cache in front of the registry
// store. The registry changes rarely (administrator-gated mutations) but is
// read by every operator-class custody operation, so a short TTL cache keeps
// the hot authorization path off the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"custodia/internal/registry/models"
)

const registryKey = "custodia:registry"

// TTL bounds staleness of the cached operator set. A removed operator can
// keep acting for at most this long on a cache hit.
const TTL = 30 * time.Second

// Store is the subset of the registry store the cache wraps.
type Store interface {
	Create(ctx context.Context, registry *models.Registry) error
	Get(ctx context.Context) (*models.Registry, error)
	Execute(ctx context.Context, validate func(*models.Registry) error, mutate func(*models.Registry)) (*models.Registry, error)
}

// ReadThrough caches Get results and invalidates on every mutation. Cache
// failures degrade to the underlying store; they never fail an operation.
type ReadThrough struct {
	store  Store
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func New(store Store, client *redis.Client, logger *slog.Logger) *ReadThrough {
	return &ReadThrough{store: store, client: client, logger: logger, ttl: TTL}
}

func (c *ReadThrough) Create(ctx context.Context, registry *models.Registry) error {
	if err := c.store.Create(ctx, registry); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *ReadThrough) Get(ctx context.Context) (*models.Registry, error) {
	if cached := c.lookup(ctx); cached != nil {
		return cached, nil
	}
	registry, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	c.save(ctx, registry)
	return registry, nil
}

func (c *ReadThrough) Execute(ctx context.Context, validate func(*models.Registry) error, mutate func(*models.Registry)) (*models.Registry, error) {
	updated, err := c.store.Execute(ctx, validate, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return updated, nil
}

func (c *ReadThrough) lookup(ctx context.Context) *models.Registry {
	raw, err := c.client.Get(ctx, registryKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "registry cache read failed", "error", err)
		}
		return nil
	}
	var registry models.Registry
	if err := json.Unmarshal(raw, &registry); err != nil {
		c.logger.WarnContext(ctx, "registry cache entry corrupt, dropping", "error", err)
		c.invalidate(ctx)
		return nil
	}
	return &registry
}

func (c *ReadThrough) save(ctx context.Context, registry *models.Registry) {
	raw, err := json.Marshal(registry)
	if err != nil {
		c.logger.WarnContext(ctx, "registry cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, registryKey, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "registry cache write failed", "error", err)
	}
}

func (c *ReadThrough) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, registryKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "registry cache invalidation failed", "error", err)
	}
}
