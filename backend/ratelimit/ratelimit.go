// Package ratelimit throttles help requests per requester identity.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter allows at most one action per key per cooldown.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Nop never throttles.
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }

// Memory keeps one token bucket per key in process memory.
type Memory struct {
	mx       *sync.Mutex
	cooldown time.Duration
	buckets  map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	last time.Time
}

func NewMemory(cooldown time.Duration) *Memory {
	return &Memory{
		mx:       &sync.Mutex{},
		cooldown: cooldown,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mx.Lock()
	defer m.mx.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(m.cooldown), 1)}
		m.buckets[key] = b
	}
	b.last = now
	m.evict(now)
	return b.lim.AllowN(now, 1), nil
}

// evict drops buckets that are full again; they carry no state.
func (m *Memory) evict(now time.Time) {
	if len(m.buckets) < 1024 {
		return
	}
	for key, b := range m.buckets {
		if now.Sub(b.last) > m.cooldown {
			delete(m.buckets, key)
		}
	}
}

// Redis shares cooldowns between instances through SET NX with expiry.
type Redis struct {
	client   *redis.Client
	cooldown time.Duration
	prefix   string
}

func NewRedis(client *redis.Client, cooldown time.Duration, prefix string) *Redis {
	return &Redis{
		client:   client,
		cooldown: cooldown,
		prefix:   prefix,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().UnixMilli(), r.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set cooldown key: %w", err)
	}
	return ok, nil
}
