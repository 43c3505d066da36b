package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

// ErrHeld means another submission for the same key is still running.
var ErrHeld = errors.New("action already in flight")

// Release frees a key acquired from a Guard. It is safe to call once.
type Release func()

// Key builds the guard key for one action on one listing.
func Key(listingID, action string) string {
	return "inflight:listing:" + listingID + ":" + action
}

// RedisGuard serializes submissions across API replicas.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// releaseScript deletes the key only if it still holds our token, so an
// expired holder never releases a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("inflight: ping: %w", err)
	}
	return client, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (Release, error) {
	token := identifier.New("lock")
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("inflight: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
		})
	}, nil
}

// MemoryGuard is the single-process fallback when Redis is not configured.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		held: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiresAt, exists := g.held[key]; exists && now.Before(expiresAt) {
		return nil, ErrHeld
	}
	expiresAt := now.Add(g.ttl)
	g.held[key] = expiresAt

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if current, exists := g.held[key]; exists && current.Equal(expiresAt) {
				delete(g.held, key)
			}
		})
	}, nil
}
