package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/launchfeed/launchfeed/internal/models"
)

const (
	keyLaunches         = "launchfeed:launches"
	keyEnrichmentPrefix = "launchfeed:enrichment:"
)

// RedisStore implements Store against a shared Redis tier. TTLs are enforced
// by key expiry, so a readable key is by definition fresh. Like the disk
// store, read failures are misses and write failures are logged and
// swallowed.
type RedisStore struct {
	client        *redis.Client
	launchTTL     time.Duration
	enrichmentTTL time.Duration
	logger        *slog.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, launchTTL, enrichmentTTL time.Duration, logger *slog.Logger) *RedisStore {
	if launchTTL <= 0 {
		launchTTL = DefaultLaunchTTL
	}
	if enrichmentTTL <= 0 {
		enrichmentTTL = DefaultEnrichmentTTL
	}
	return &RedisStore{
		client:        client,
		launchTTL:     launchTTL,
		enrichmentTTL: enrichmentTTL,
		logger:        logger,
	}
}

func (s *RedisStore) GetLaunches(ctx context.Context) ([]models.Launch, bool) {
	var launches []models.Launch
	if !s.get(ctx, keyLaunches, &launches) {
		return nil, false
	}
	return launches, true
}

func (s *RedisStore) PutLaunches(ctx context.Context, launches []models.Launch) {
	s.put(ctx, keyLaunches, launches, s.launchTTL)
}

func (s *RedisStore) GetEnrichment(ctx context.Context, id string) (models.Enrichment, bool) {
	var e models.Enrichment
	if !s.get(ctx, keyEnrichmentPrefix+id, &e) {
		return models.Enrichment{}, false
	}
	return e, true
}

func (s *RedisStore) PutEnrichment(ctx context.Context, id string, e models.Enrichment) {
	s.put(ctx, keyEnrichmentPrefix+id, e, s.enrichmentTTL)
}

func (s *RedisStore) get(ctx context.Context, key string, out any) bool {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Decode failure means a schema mismatch; treat as miss.
		return false
	}
	return true
}

func (s *RedisStore) put(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("redis cache write failed", "key", key, "error", err)
	}
}
