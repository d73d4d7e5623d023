// Package session layers a Redis read-through cache over the access-token
// store. Every authenticated request resolves a token to a user; the cache
// keeps those lookups off Postgres. The store stays authoritative: deletes
// go to Postgres first and then drop the cached entry, and cache entries
// carry a TTL so a missed invalidation heals itself.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"concord/api/internal/auth"
	"concord/api/internal/snowflake"
	"concord/api/internal/store"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "token:"
	defaultTTL = 15 * time.Minute
)

// CachingTokenStore wraps an auth.TokenStore with a Redis cache.
type CachingTokenStore struct {
	inner  auth.TokenStore
	client *redis.Client
	ttl    time.Duration
}

var _ auth.TokenStore = (*CachingTokenStore)(nil)

// NewCachingTokenStore connects to Redis and wraps the given store.
func NewCachingTokenStore(inner auth.TokenStore, redisURL string) (*CachingTokenStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &CachingTokenStore{inner: inner, client: client, ttl: defaultTTL}, nil
}

// NewCachingTokenStoreWithClient wraps an existing Redis client.
func NewCachingTokenStoreWithClient(inner auth.TokenStore, client *redis.Client) *CachingTokenStore {
	return &CachingTokenStore{inner: inner, client: client, ttl: defaultTTL}
}

func (c *CachingTokenStore) key(token int64) string {
	return keyPrefix + strconv.FormatInt(token, 10)
}

// InsertAccessToken persists the row and primes the cache. A failed prime
// is ignored; the next lookup repopulates.
func (c *CachingTokenStore) InsertAccessToken(ctx context.Context, rec store.AccessToken) error {
	if err := c.inner.InsertAccessToken(ctx, rec); err != nil {
		return err
	}
	_ = c.client.Set(ctx, c.key(rec.Token), int64(rec.UserID), c.ttl).Err()
	return nil
}

// LookupAccessToken serves from Redis when it can, hitting the inner store
// on a miss and caching the result. Redis being down degrades to plain
// store lookups, never to an auth failure.
func (c *CachingTokenStore) LookupAccessToken(ctx context.Context, token int64) (snowflake.ID, error) {
	cached, err := c.client.Get(ctx, c.key(token)).Int64()
	if err == nil {
		return snowflake.ID(cached), nil
	}

	userID, lookupErr := c.inner.LookupAccessToken(ctx, token)
	if lookupErr != nil {
		return 0, lookupErr
	}
	if err == redis.Nil {
		_ = c.client.Set(ctx, c.key(token), int64(userID), c.ttl).Err()
	}
	return userID, nil
}

// DeleteAccessToken revokes the row, then drops the cached entry. Order
// matters: the store must reject the token before the cache forgets it.
func (c *CachingTokenStore) DeleteAccessToken(ctx context.Context, token int64) error {
	if err := c.inner.DeleteAccessToken(ctx, token); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.key(token)).Err(); err != nil {
		return fmt.Errorf("invalidate cached token: %w", err)
	}
	return nil
}

// DeleteUserAccessTokens revokes all of a user's rows, then drops every
// cached entry the store reported revoked.
func (c *CachingTokenStore) DeleteUserAccessTokens(ctx context.Context, userID snowflake.ID) ([]int64, error) {
	tokens, err := c.inner.DeleteUserAccessTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(tokens) > 0 {
		keys := make([]string, len(tokens))
		for i, token := range tokens {
			keys[i] = c.key(token)
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return tokens, fmt.Errorf("invalidate cached tokens: %w", err)
		}
	}
	return tokens, nil
}

func (c *CachingTokenStore) Close() error {
	return c.client.Close()
}
