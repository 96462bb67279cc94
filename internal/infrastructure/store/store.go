package store

import (
	"context"
	"time"
)

// Store is the shared fast-access store used for session/presence tracking,
// room membership, rate limiting and live-stream counters. Implementations
// must make every method atomic with respect to concurrent calls on the same
// key; state is ephemeral and may be lost on restart without correctness
// loss.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets the key only if absent, returning whether it won.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Incr(ctx context.Context, key string) (int64, error)
	// DecrFloor decrements but never below zero.
	DecrFloor(ctx context.Context, key string) (int64, error)
	// SetMax raises the integer at key to value if value is larger, and
	// returns the resulting maximum.
	SetMax(ctx context.Context, key string, value int64) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key, member string) (bool, error)
	SRem(ctx context.Context, key, member string) error
	SCard(ctx context.Context, key string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	// LPushTrim prepends value and trims the list to the newest maxLen
	// entries.
	LPushTrim(ctx context.Context, key, value string, maxLen int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}
