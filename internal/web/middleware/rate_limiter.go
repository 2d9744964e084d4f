package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// RateLimiter decides whether another request under key fits in the budget.
type RateLimiter interface {
	// Allow takes one request from the budget of key. It returns false once
	// limit requests were taken within window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// GetRemaining returns how many requests key may still make.
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)

	// Reset forgets every budget under key.
	Reset(ctx context.Context, key string) error
}

// TokenBucket refills capacity tokens evenly over window.
type TokenBucket struct {
	tokens   int
	capacity int
	refillAt time.Time
	window   time.Duration
	mutex    sync.Mutex
}

func NewTokenBucket(capacity int, window time.Duration, now time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		refillAt: now,
		window:   window,
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	if !now.Before(tb.refillAt.Add(tb.window)) {
		tb.tokens = tb.capacity
		tb.refillAt = now
		return
	}

	elapsed := now.Sub(tb.refillAt)
	tokensToAdd := int(elapsed.Nanoseconds() * int64(tb.capacity) / tb.window.Nanoseconds())
	if tokensToAdd <= 0 {
		return
	}

	tb.tokens += tokensToAdd
	if tb.tokens >= tb.capacity {
		tb.tokens = tb.capacity
		tb.refillAt = now
		return
	}
	// Keep the fraction of a token earned since the last whole one.
	tb.refillAt = tb.refillAt.Add(time.Duration(int64(tokensToAdd) * tb.window.Nanoseconds() / int64(tb.capacity)))
}

// Take removes a token if one is available.
func (tb *TokenBucket) Take(now time.Time) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(now)
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Tokens(now time.Time) int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(now)
	return tb.tokens
}

func (tb *TokenBucket) idleSince(now time.Time) time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return now.Sub(tb.refillAt)
}

// InMemoryRateLimiter keeps one token bucket per key in process memory.
type InMemoryRateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.Mutex
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	rl := &InMemoryRateLimiter{
		buckets: make(map[string]*TokenBucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go rl.janitor(5 * time.Minute)

	return rl
}

func bucketKey(key string, limit int, window time.Duration) string {
	return fmt.Sprintf("%s:%d:%s", key, limit, window)
}

func (rl *InMemoryRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := bucketKey(key, limit, window)

	rl.mutex.Lock()
	bucket, exists := rl.buckets[k]
	if !exists {
		bucket = NewTokenBucket(limit, window, rl.now())
		rl.buckets[k] = bucket
	}
	rl.mutex.Unlock()

	return bucket.Take(rl.now()), nil
}

func (rl *InMemoryRateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	rl.mutex.Lock()
	bucket, exists := rl.buckets[bucketKey(key, limit, window)]
	rl.mutex.Unlock()

	if !exists {
		return limit, nil
	}
	return bucket.Tokens(rl.now()), nil
}

func (rl *InMemoryRateLimiter) Reset(ctx context.Context, key string) error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for k := range rl.buckets {
		if strings.HasPrefix(k, key+":") {
			delete(rl.buckets, k)
		}
	}
	return nil
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *InMemoryRateLimiter) Close() error {
	rl.once.Do(func() { close(rl.stop) })
	return nil
}

func (rl *InMemoryRateLimiter) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops buckets idle for more than two windows; they would be full again anyway.
func (rl *InMemoryRateLimiter) cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for k, bucket := range rl.buckets {
		if bucket.idleSince(now) > bucket.window*2 {
			delete(rl.buckets, k)
		}
	}
}
