package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/domain"
)

const recommendationsKeyPrefix = "restock:recommendations"

// RecommendationCache holds the published recommendation set between runs.
// Entries are dropped wholesale when a run publishes a new set.
type RecommendationCache interface {
	GetAll(ctx context.Context) ([]domain.Recommendation, bool, error)
	SetAll(ctx context.Context, recs []domain.Recommendation) error
	GetItem(ctx context.Context, itemID string) (*domain.Recommendation, bool, error)
	SetItem(ctx context.Context, rec *domain.Recommendation) error
	InvalidateAll(ctx context.Context) error
}

type redisRecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRecommendationCache struct{}

// NewRecommendationCache returns a redis-backed cache, or a no-op cache when
// client is nil.
func NewRecommendationCache(client *redis.Client, cfg config.CacheConfig) RecommendationCache {
	if client == nil {
		return &noopRecommendationCache{}
	}
	return &redisRecommendationCache{
		client: client,
		ttl:    ttlFromSeconds(cfg.RecommendationsTTLSeconds, defaultCacheTTL),
	}
}

func NewNoopRecommendationCache() RecommendationCache {
	return &noopRecommendationCache{}
}

func (c *redisRecommendationCache) GetAll(ctx context.Context) ([]domain.Recommendation, bool, error) {
	var recs []domain.Recommendation
	ok, err := c.get(ctx, allKey(), &recs)
	if !ok || err != nil {
		return nil, false, err
	}
	return recs, true, nil
}

func (c *redisRecommendationCache) SetAll(ctx context.Context, recs []domain.Recommendation) error {
	return c.set(ctx, allKey(), recs)
}

func (c *redisRecommendationCache) GetItem(ctx context.Context, itemID string) (*domain.Recommendation, bool, error) {
	var rec domain.Recommendation
	ok, err := c.get(ctx, itemKey(itemID), &rec)
	if !ok || err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (c *redisRecommendationCache) SetItem(ctx context.Context, rec *domain.Recommendation) error {
	return c.set(ctx, itemKey(rec.ItemID), rec)
}

func (c *redisRecommendationCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, recommendationsKeyPrefix, scanBatchSize)
}

func (c *redisRecommendationCache) get(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode recommendation cache %s: %w", key, err)
	}
	return true, nil
}

func (c *redisRecommendationCache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode recommendation cache %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopRecommendationCache) GetAll(ctx context.Context) ([]domain.Recommendation, bool, error) {
	return nil, false, nil
}

func (n *noopRecommendationCache) SetAll(ctx context.Context, recs []domain.Recommendation) error {
	return nil
}

func (n *noopRecommendationCache) GetItem(ctx context.Context, itemID string) (*domain.Recommendation, bool, error) {
	return nil, false, nil
}

func (n *noopRecommendationCache) SetItem(ctx context.Context, rec *domain.Recommendation) error {
	return nil
}

func (n *noopRecommendationCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func allKey() string {
	return recommendationsKeyPrefix + ":all"
}

func itemKey(itemID string) string {
	return fmt.Sprintf("%s:item:%s", recommendationsKeyPrefix, itemID)
}
