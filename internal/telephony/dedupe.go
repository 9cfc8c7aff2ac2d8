package telephony

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ARPaule28/omnichannel/pkg/utils"
)

// Deduper claims provider event ids so replayed webhook deliveries are
// answered without a second write.
type Deduper interface {
	// Claim returns true when this caller owns the first delivery.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim after a failed write so the provider retry can
	// go through.
	Release(ctx context.Context, key string) error
}

// RedisDeduper backs claims with Redis SET NX; claims survive process
// restarts, which matters because providers retry for minutes.
type RedisDeduper struct {
	rdb *redis.Client
}

func NewRedisDeduper(rdb *redis.Client) *RedisDeduper { return &RedisDeduper{rdb: rdb} }

func (d *RedisDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.ClaimEvent(ctx, d.rdb, key, ttl)
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return utils.ReleaseEvent(ctx, d.rdb, key)
}

// MemoryDeduper is a process-local Deduper for tests.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]struct{}{}}
}

func (d *MemoryDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}
