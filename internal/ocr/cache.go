package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"idverify/internal/logger"
)

// DefaultCacheTTL is how long a cached extraction stays valid.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "idverify:ocr:"

// CacheStore is the subset of the go-redis client used by CachedExtractor.
type CacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedExtractor memoizes extractions in Redis, keyed by the SHA-256 of the
// image bytes and the provider name. Cache failures never fail a request.
type CachedExtractor struct {
	next     TextExtractor
	provider string
	store    CacheStore
	ttl      time.Duration
	log      zerolog.Logger
}

// NewRedisClient connects to redisURL and verifies the connection. It returns
// nil when redisURL is empty.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewCachedExtractor wraps next. provider becomes part of the cache key so
// results from different engines never collide.
func NewCachedExtractor(next TextExtractor, provider string, store CacheStore, ttl time.Duration) *CachedExtractor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedExtractor{
		next:     next,
		provider: provider,
		store:    store,
		ttl:      ttl,
		log:      logger.WithComponent("ocr-cache"),
	}
}

// Name implements Provider.
func (c *CachedExtractor) Name() string {
	return c.provider
}

// ExtractText returns the cached extraction for the image content, or
// delegates and stores the result.
func (c *CachedExtractor) ExtractText(ctx context.Context, imagePath string) (*Extraction, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		// Let the provider report the failure with its own error type.
		return c.next.ExtractText(ctx, imagePath)
	}
	key := CacheKey(c.provider, data)

	cached, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var result Extraction
		if jsonErr := json.Unmarshal(cached, &result); jsonErr == nil {
			c.log.Debug().Str("image", imagePath).Str("key", key).Msg("OCR cache hit")
			return &result, nil
		}
		c.log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("OCR cache read failed")
	}

	result, err := c.next.ExtractText(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to encode extraction for cache")
		return result, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("OCR cache write failed")
	}
	return result, nil
}

// Close closes the wrapped extractor if it holds resources.
func (c *CachedExtractor) Close() error {
	if closer, ok := c.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// CacheKey derives the Redis key for an image processed by provider.
func CacheKey(provider string, image []byte) string {
	sum := sha256.Sum256(image)
	return cacheKeyPrefix + provider + ":" + hex.EncodeToString(sum[:])
}
