package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leafsii/stability-vault/internal/metrics"
	"github.com/leafsii/stability-vault/pkg/kv"
	memkv "github.com/leafsii/stability-vault/pkg/kv/memory"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache struct {
	// When Redis is available, use client for all operations
	client *redis.Client
	// When Redis is unavailable, fall back to an in-memory kv.Store
	kvStore kv.Store
	// In-memory pubsub hub for when Redis is unavailable
	pubsubHub *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewCache connects to Redis at addr. An empty or unreachable address yields an
// in-memory cache with an in-process pubsub hub.
func NewCache(addr string, logger *zap.SugaredLogger, metrics *metrics.Metrics) (*Cache, error) {
	if addr == "" {
		return NewMemoryCache(logger, metrics), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if logger != nil {
			logger.Warnw("Redis unavailable; using in-memory cache with local pubsub", "addr", addr, "error", err)
		}
		return NewMemoryCache(logger, metrics), nil
	}

	return &Cache{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// NewMemoryCache returns a cache that never leaves the process
func NewMemoryCache(logger *zap.SugaredLogger, metrics *metrics.Metrics) *Cache {
	return &Cache{
		kvStore:   memkv.NewStore(),
		pubsubHub: NewPubSubHub(),
		logger:    logger,
		metrics:   metrics,
	}
}

// Cache key prefixes and pubsub channels
const (
	KeyOraclePrice = "sv:oracle:price"
	KeyPoolSummary = "sv:pool:summary"

	ChannelEvents = "sv:events"
	ChannelPrices = "sv:prices"
)

// EventChannel is the pubsub channel an event kind is published on
func EventChannel(kind string) string {
	return fmt.Sprintf("%s:%s", ChannelEvents, kind)
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				c.metrics.RecordCacheMiss(ctx, key)
				return ErrCacheMiss
			}
			if c.logger != nil {
				c.logger.Errorw("Cache get error", "key", key, "error", err)
			}
			return fmt.Errorf("cache get error: %w", err)
		}
		data = val
	} else {
		val, err := c.kvStore.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				c.metrics.RecordCacheMiss(ctx, key)
				return ErrCacheMiss
			}
			return fmt.Errorf("cache get error: %w", err)
		}
		data = val
	}

	c.metrics.RecordCacheHit(ctx, key)
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Cache set error", "key", key, "error", err)
			}
			return fmt.Errorf("cache set error: %w", err)
		}
		return nil
	}
	if err := c.kvStore.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if c.client != nil {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Cache delete error", "keys", keys, "error", err)
			}
			return fmt.Errorf("cache delete error: %w", err)
		}
		return nil
	}
	if _, err := c.kvStore.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client != nil {
		count, err := c.client.Exists(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("cache exists error: %w", err)
		}
		return count > 0, nil
	}
	count, err := c.kvStore.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache exists error: %w", err)
	}
	return count > 0, nil
}

func (c *Cache) GetOraclePrice(ctx context.Context, symbol string, dest interface{}) error {
	return c.Get(ctx, fmt.Sprintf("%s:%s", KeyOraclePrice, symbol), dest)
}

func (c *Cache) SetOraclePrice(ctx context.Context, symbol string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, fmt.Sprintf("%s:%s", KeyOraclePrice, symbol), value, ttl)
}

func (c *Cache) GetPoolSummary(ctx context.Context, asset string, dest interface{}) error {
	return c.Get(ctx, fmt.Sprintf("%s:%s", KeyPoolSummary, asset), dest)
}

func (c *Cache) SetPoolSummary(ctx context.Context, asset string, value interface{}) error {
	return c.Set(ctx, fmt.Sprintf("%s:%s", KeyPoolSummary, asset), value, 2*time.Second)
}

// InvalidatePools drops cached summaries after a committed mutation
func (c *Cache) InvalidatePools(ctx context.Context, assets ...string) error {
	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		keys = append(keys, fmt.Sprintf("%s:%s", KeyPoolSummary, a))
	}
	return c.Delete(ctx, keys...)
}

// Publish marshals message as JSON onto a pubsub channel
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}

	if c.client != nil {
		if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Publish error", "channel", channel, "error", err)
			}
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}

	c.pubsubHub.Publish(channel, string(data))
	return nil
}

// Subscribe returns a Redis subscription, or nil in in-memory mode
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if c.client != nil {
		return c.client.Subscribe(ctx, channels...)
	}
	return nil
}

// SubscribeInMemory subscribes through the in-process hub, or returns nil in Redis mode
func (c *Cache) SubscribeInMemory(ctx context.Context, channels ...string) *MemoryPubSub {
	if c.pubsubHub != nil {
		return c.pubsubHub.Subscribe(ctx, channels...)
	}
	return nil
}

// IsInMemoryMode returns true if the cache is running in in-memory mode
func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if c.client != nil {
		return c.client.Ping(ctx).Err()
	}
	return nil
}

func (c *Cache) Close() error {
	var err error
	if c.client != nil {
		err = c.client.Close()
	}
	if c.kvStore != nil {
		if closeErr := c.kvStore.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

var ErrCacheMiss = errors.New("cache miss")
