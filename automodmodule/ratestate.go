package automodmodule

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// RateStore tracks how many messages each user has sent in their current window
type RateStore interface {
	// Hit records a message at now and returns the count in the user's current window,
	// starting a new window at 1 if the previous one is older than window.
	Hit(ctx context.Context, guild, user string, now time.Time, window time.Duration) (int, error)
	// Reset forgets the user's window
	Reset(ctx context.Context, guild, user string) error
}

type rateState struct {
	count       int
	windowStart time.Time
}

// MemRateStore keeps rate windows in process memory. Idle users expire after the cache TTL.
type MemRateStore struct {
	lock sync.Mutex // Hit is a read-modify-write, which the cache alone can't make atomic
	data *expirable.LRU[string, rateState]
}

// NewMemRateStore creates an in-memory store. ttl must be longer than the largest spam window.
func NewMemRateStore(capacity int, ttl time.Duration) *MemRateStore {
	return &MemRateStore{
		data: expirable.NewLRU[string, rateState](capacity, nil, ttl),
	}
}

func (s *MemRateStore) Hit(ctx context.Context, guild, user string, now time.Time, window time.Duration) (int, error) {
	key := guild + "/" + user
	s.lock.Lock()
	defer s.lock.Unlock()
	st, ok := s.data.Get(key)
	if !ok || now.Sub(st.windowStart) > window {
		st = rateState{count: 0, windowStart: now}
	}
	st.count++
	s.data.Add(key, st)
	return st.count, nil
}

func (s *MemRateStore) Reset(ctx context.Context, guild, user string) error {
	s.data.Remove(guild + "/" + user)
	return nil
}

var redisRatePrefix = "automod/rate/"

// RedisRateStore shares rate windows between bot processes. A window opens on the first INCR of a key and closes when the key expires.
type RedisRateStore struct {
	Client *redis.Client
}

// NewRedisRateStore connects to redis and checks the connection
func NewRedisRateStore(ctx context.Context, redisURL string) (*RedisRateStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err = rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return &RedisRateStore{Client: rdb}, nil
}

func (s *RedisRateStore) Hit(ctx context.Context, guild, user string, now time.Time, window time.Duration) (int, error) {
	key := redisRatePrefix + guild + "/" + user
	c, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if c == 1 {
		if err := s.Client.PExpire(ctx, key, window).Err(); err != nil {
			s.Client.Del(ctx, key) // a key without a TTL would never reset
			return 0, err
		}
	}
	return int(c), nil
}

func (s *RedisRateStore) Reset(ctx context.Context, guild, user string) error {
	return s.Client.Del(ctx, redisRatePrefix+guild+"/"+user).Err()
}

// Close the redis connection
func (s *RedisRateStore) Close() error {
	return s.Client.Close()
}
