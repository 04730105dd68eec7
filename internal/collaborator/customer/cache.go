package customer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"onboarding/pkg/domain"
)

// CachedClient decorates Client with a Redis read-through cache for customer
// profiles, which the admin dashboard fetches repeatedly. Writes invalidate;
// a cold or failing Redis degrades to pass-through.
type CachedClient struct {
	*Client
	redis  *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient wraps client. redis may be nil, in which case every call
// passes through.
func NewCachedClient(client *Client, redis *goredis.Client, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{Client: client, redis: redis, ttl: ttl, logger: logger}
}

func profileKey(id domain.CustomerID) string {
	return fmt.Sprintf("customer:profile:%d", id)
}

// GetByID serves from cache when possible.
func (c *CachedClient) GetByID(ctx context.Context, id domain.CustomerID) (*Profile, error) {
	if c.redis != nil {
		payload, err := c.redis.Get(ctx, profileKey(id)).Bytes()
		if err == nil {
			var profile Profile
			if err := json.Unmarshal(payload, &profile); err == nil {
				return &profile, nil
			}
			// Unreadable entry: drop it and fall through to the source.
			c.redis.Del(ctx, profileKey(id))
		} else if err != goredis.Nil {
			c.logger.WarnContext(ctx, "customer profile cache read failed", "error", err)
		}
	}

	profile, err := c.Client.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// UpdateByAdmin writes through and refreshes the cached profile.
func (c *CachedClient) UpdateByAdmin(ctx context.Context, id domain.CustomerID, req UpdateRequest) (*Profile, error) {
	profile, err := c.Client.UpdateByAdmin(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// Invalidate drops a cached profile. Used when account state changes outside
// the profile itself (deactivation).
func (c *CachedClient) Invalidate(ctx context.Context, id domain.CustomerID) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, profileKey(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "customer profile cache invalidation failed", "error", err)
	}
}

func (c *CachedClient) store(ctx context.Context, profile *Profile) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, profileKey(profile.ID), payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "customer profile cache write failed", "error", err)
	}
}
