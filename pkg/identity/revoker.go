package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker records per-user cutoffs: tokens issued at or before the cutoff are rejected.
type Revoker interface {
	RevokeUser(ctx context.Context, uid string, cutoff time.Time, ttl time.Duration) error
	RevokedAfter(ctx context.Context, uid string) (time.Time, error)
}

// MemoryRevoker keeps cutoffs in-process (single instance only).
type MemoryRevoker struct {
	mu      sync.Mutex
	cutoffs map[string]time.Time
}

// NewMemoryRevoker builds an empty in-memory revoker.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{cutoffs: make(map[string]time.Time)}
}

// RevokeUser moves the cutoff forward; older cutoffs never replace newer ones.
func (r *MemoryRevoker) RevokeUser(_ context.Context, uid string, cutoff time.Time, _ time.Duration) error {
	cutoff = cutoff.UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.cutoffs[uid]; ok && !cutoff.After(current) {
		return nil
	}
	r.cutoffs[uid] = cutoff
	return nil
}

// RevokedAfter returns the cutoff for uid, zero if none.
func (r *MemoryRevoker) RevokedAfter(_ context.Context, uid string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cutoffs[uid], nil
}

const defaultRevokePrefix = "lms:revoked-user"

// keeps the greater of the stored and the new cutoff (unix ms) and refreshes the ttl.
var revokeScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
local cutoff = tonumber(ARGV[1])
if current and tonumber(current) >= cutoff then
  cutoff = tonumber(current)
end
redis.call("SET", KEYS[1], cutoff, "PX", ARGV[2])
return cutoff
`)

// RedisRevoker shares cutoffs across instances. Entries expire with the token TTL.
type RedisRevoker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevoker wraps an existing client.
func NewRedisRevoker(client redis.UniversalClient, prefix string) *RedisRevoker {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRevokePrefix
	}
	return &RedisRevoker{client: client, prefix: prefix}
}

func (r *RedisRevoker) key(uid string) string {
	return r.prefix + ":" + uid
}

// RevokeUser stores the cutoff for at least ttl.
func (r *RedisRevoker) RevokeUser(ctx context.Context, uid string, cutoff time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return revokeScript.Run(ctx, r.client, []string{r.key(uid)}, cutoff.UTC().UnixMilli(), ttl.Milliseconds()).Err()
}

// RevokedAfter returns the stored cutoff, zero if none.
func (r *RedisRevoker) RevokedAfter(ctx context.Context, uid string) (time.Time, error) {
	ms, err := r.client.Get(ctx, r.key(uid)).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
