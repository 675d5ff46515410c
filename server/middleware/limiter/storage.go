package limiter

import (
	"context"
	"sync"
	"time"

	"flatnas/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "flatnas:ratelimit:"

// Storage is an interface for storing and retrieving token buckets
type Storage interface {
	// Get retrieves a token bucket for the given key
	Get(key string) (*TokenBucket, error)

	// Set stores a token bucket for the given key
	Set(key string, bucket *TokenBucket) error

	// Delete removes a token bucket for the given key
	Delete(key string) error

	// Reset clears all stored token buckets
	Reset() error
}

type InMemoryStorage struct {
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		buckets: make(map[string]*TokenBucket),
	}
}

func (s *InMemoryStorage) Get(key string) (*TokenBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, exists := s.buckets[key]
	if !exists {
		return nil, nil
	}
	return bucket, nil
}

func (s *InMemoryStorage) Set(key string, bucket *TokenBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[key] = bucket
	return nil
}

func (s *InMemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, key)
	return nil
}

func (s *InMemoryStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*TokenBucket)
	return nil
}

// RedisStorage shares buckets between processes behind the same proxy.
type RedisStorage struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client:  client,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
	}
}

func (s *RedisStorage) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStorage) Get(key string) (*TokenBucket, error) {
	ctx, cancel := s.context()
	defer cancel()

	start := time.Now()
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	metrics.RecordRedisOperation("limiter_get", time.Since(start).Seconds(), err == nil || err == redis.Nil)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var bucket TokenBucket
	if err := json.Unmarshal(data, &bucket); err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (s *RedisStorage) Set(key string, bucket *TokenBucket) error {
	bucket.mu.Lock()
	data, err := json.Marshal(bucket)
	bucket.mu.Unlock()
	if err != nil {
		return err
	}

	ctx, cancel := s.context()
	defer cancel()

	start := time.Now()
	err = s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err()
	metrics.RecordRedisOperation("limiter_set", time.Since(start).Seconds(), err == nil)
	return err
}

func (s *RedisStorage) Delete(key string) error {
	ctx, cancel := s.context()
	defer cancel()
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Reset removes only the limiter's own keys.
func (s *RedisStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
