package scan

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Deduper claims (pair, tick) keys. Claim returns true for exactly one
// caller per key; every later claim for the same key returns false.
type Deduper interface {
	Claim(ctx context.Context, tick Tick, pair model.Pair) (bool, error)
}

// MemoryDeduper keeps the claimed set of the newest tick only. A claim for a
// newer tick replaces the set; a claim for an older tick is refused.
type MemoryDeduper struct {
	mu   sync.Mutex
	tick int64
	seen map[string]struct{}
}

// NewMemoryDeduper creates an in-process deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) Claim(ctx context.Context, tick Tick, pair model.Pair) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case tick.ID < d.tick:
		return false, nil
	case tick.ID > d.tick:
		d.tick = tick.ID
		d.seen = make(map[string]struct{})
	}

	key := pair.Key()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

// RedisDeduper claims keys with SETNX so replicas sharing a Redis never
// evaluate the same pair twice in one tick.
type RedisDeduper struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	owner  string
}

// NewRedisDeduper creates a Redis-backed deduper. Keys expire after ttl.
func NewRedisDeduper(client *goredis.Client, prefix, owner string, ttl time.Duration) *RedisDeduper {
	if prefix == "" {
		prefix = "fisherbot:claim"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl, owner: owner}
}

func (d *RedisDeduper) key(tick Tick, pair model.Pair) string {
	return d.prefix + ":" + strconv.FormatInt(tick.ID, 10) + ":" + pair.Key()
}

func (d *RedisDeduper) Claim(ctx context.Context, tick Tick, pair model.Pair) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(tick, pair), d.owner, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", pair, err)
	}
	return ok, nil
}

// NewRedisClient connects to Redis and pings the server.
func NewRedisClient(ctx context.Context, addr, password string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
