package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// RedisVoucherCache shares voucher lookups across instances. Redis errors
// degrade to cache misses; the store stays authoritative either way.
type RedisVoucherCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisVoucherCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisVoucherCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisVoucherCache{client: client, ttl: ttl, logger: logger}
}

func voucherKey(id uuid.UUID) string {
	return "voucher:" + id.String()
}

func (c *RedisVoucherCache) Get(ctx context.Context, id uuid.UUID) *models.Voucher {
	raw, err := c.client.Get(ctx, voucherKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("redis get %s: %v", voucherKey(id), err)
		}
		return nil
	}
	var v models.Voucher
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Printf("redis decode %s: %v", voucherKey(id), err)
		return nil
	}
	return &v
}

func (c *RedisVoucherCache) Set(ctx context.Context, v *models.Voucher) {
	if v == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Printf("redis encode %s: %v", voucherKey(v.ID), err)
		return
	}
	if err := c.client.Set(ctx, voucherKey(v.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Printf("redis set %s: %v", voucherKey(v.ID), err)
	}
}

func (c *RedisVoucherCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, voucherKey(id)).Err(); err != nil {
		c.logger.Printf("redis del %s: %v", voucherKey(id), err)
	}
}
