package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestClaimEventFirstDeliveryWins(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	first, err := ClaimEvent(ctx, rdb, "evt:SM123", time.Hour)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !first {
		t.Fatal("first delivery should own the claim")
	}

	second, err := ClaimEvent(ctx, rdb, "evt:SM123", time.Hour)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second {
		t.Fatal("replayed delivery must not claim again")
	}
}

func TestClaimEventSetsTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)

	if _, err := ClaimEvent(context.Background(), rdb, "evt:CA456", 24*time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := mr.TTL("evt:CA456"); got != 24*time.Hour {
		t.Fatalf("ttl = %v, want %v", got, 24*time.Hour)
	}
}

func TestReleaseEventReopensClaim(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	if _, err := ClaimEvent(ctx, rdb, "evt:SM789", time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ReleaseEvent(ctx, rdb, "evt:SM789"); err != nil {
		t.Fatalf("release: %v", err)
	}

	again, err := ClaimEvent(ctx, rdb, "evt:SM789", time.Hour)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !again {
		t.Fatal("released event should be claimable again")
	}
}

func TestClaimEventArgumentChecks(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	if _, err := ClaimEvent(ctx, nil, "evt:x", time.Hour); err == nil {
		t.Error("nil client should be rejected")
	}
	if _, err := ClaimEvent(ctx, rdb, "", time.Hour); err == nil {
		t.Error("empty key should be rejected")
	}
	if _, err := ClaimEvent(ctx, rdb, "evt:x", 0); err == nil {
		t.Error("zero ttl should be rejected")
	}
	if err := ReleaseEvent(ctx, nil, "evt:x"); err == nil {
		t.Error("nil client should be rejected")
	}
	if err := ReleaseEvent(ctx, rdb, ""); err == nil {
		t.Error("empty key should be rejected")
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatal("empty addr should be rejected")
	}
}
