// Package cache provides a Redis-backed cache for board member profiles
// so reconciliation passes do not refetch the same profile per card.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/board"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "boardsync:member:"

// MemberCache caches member profiles with a TTL. A nil *MemberCache is a
// valid no-op cache, so callers do not branch on whether Redis is
// configured.
type MemberCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMemberCache creates a member profile cache.
func NewMemberCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *MemberCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemberCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(memberID string) string {
	return keyPrefix + memberID
}

// Get returns the cached profile for a member id. A Redis failure is a
// cache miss, never an error for the caller.
func (c *MemberCache) Get(ctx context.Context, memberID string) (board.MemberProfile, bool) {
	if c == nil || c.client == nil {
		return board.MemberProfile{}, false
	}

	raw, err := c.client.Get(ctx, cacheKey(memberID)).Bytes()
	if err == redis.Nil {
		return board.MemberProfile{}, false
	}
	if err != nil {
		c.logger.Debug("member cache get failed", "member_id", memberID, "error", err)
		return board.MemberProfile{}, false
	}

	var profile board.MemberProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		c.logger.Debug("member cache entry invalid", "member_id", memberID, "error", err)
		return board.MemberProfile{}, false
	}
	return profile, true
}

// Set stores a profile. Failures are logged and swallowed.
func (c *MemberCache) Set(ctx context.Context, profile board.MemberProfile) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		c.logger.Debug("member cache marshal failed", "member_id", profile.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(profile.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("member cache set failed", "member_id", profile.ID, "error", err)
	}
}

// Connect opens a Redis client from a URL, verifying the connection.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
