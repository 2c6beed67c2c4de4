// Package ratelimit implements fixed-window rate limiting per logical key,
// with per-operation-class configuration and an independent block duration
// once a key exceeds its cap. Counter storage is pluggable: the in-memory
// store suits a single instance, the Redis store a fleet.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sentra-sec/sentra/internal/config"
	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
)

// Store persists window counters and blocks for the limiter.
type Store interface {
	// Incr adds one to the key's window counter, creating it with the window
	// TTL on first sight, and returns the new count and window reset time.
	Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error)

	// Peek returns the current count and reset time without incrementing.
	Peek(ctx context.Context, key string) (int, time.Time, bool, error)

	// Remove deletes the key's counter.
	Remove(ctx context.Context, key string) error

	// SetBlock marks the key blocked until the given time.
	SetBlock(ctx context.Context, key string, until time.Time) error

	// GetBlock returns the block expiry when the key is blocked.
	GetBlock(ctx context.Context, key string) (time.Time, bool, error)

	// Sweep removes entries whose window and block have both lapsed.
	Sweep(ctx context.Context) (int, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error
}

// Limiter enforces fixed-window limits over a Store.
type Limiter struct {
	store Store

	mu    sync.RWMutex
	rules map[constants.RateLimitClass]config.RateLimitRule

	// limits remembers the last limit applied per key so Info can report it.
	limits sync.Map // string → int

	now func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter over the given store with per-class rules.
// Classes missing from rules fall back to the built-in defaults.
func NewLimiter(store Store, rules map[string]config.RateLimitRule, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		rules: make(map[constants.RateLimitClass]config.RateLimitRule),
		now:   time.Now,
	}
	l.UpdateRules(rules)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// UpdateRules replaces the per-class rule table. Classes absent from the new
// table keep the built-in defaults.
func (l *Limiter) UpdateRules(rules map[string]config.RateLimitRule) {
	merged := config.DefaultRateLimitRules()
	for class, rule := range rules {
		merged[class] = rule
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = make(map[constants.RateLimitClass]config.RateLimitRule, len(merged))
	for class, rule := range merged {
		l.rules[constants.RateLimitClass(class)] = rule
	}
}

func (l *Limiter) rule(class constants.RateLimitClass) config.RateLimitRule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rule, ok := l.rules[class]; ok {
		return rule
	}
	return config.RateLimitRule{
		MaxRequests:   constants.DefaultRateLimitMax,
		Window:        constants.DefaultRateLimitWindow,
		BlockDuration: constants.DefaultRateLimitBlock,
	}
}

// CheckLimit counts one request against the key and reports whether it is
// allowed. Exceeding maxRequests blocks the key for the default block
// duration; blocked keys are denied without counting until the block lapses,
// after which the window starts fresh.
func (l *Limiter) CheckLimit(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	return l.check(ctx, key, maxRequests, window, constants.DefaultRateLimitBlock)
}

// CheckClass counts one request against the key under the class's configured
// rule. The stored key is namespaced by class so the same identifier can be
// limited independently per operation class.
func (l *Limiter) CheckClass(ctx context.Context, class constants.RateLimitClass, key string) (bool, error) {
	rule := l.rule(class)
	return l.check(ctx, string(class)+":"+key, rule.MaxRequests, rule.Window, rule.BlockDuration)
}

func (l *Limiter) check(ctx context.Context, key string, maxRequests int, window, blockDuration time.Duration) (bool, error) {
	if maxRequests <= 0 || window <= 0 {
		return false, errors.ErrInvalidRequest("rate limit requires positive max requests and window")
	}
	l.limits.Store(key, maxRequests)

	now := l.now()
	if expiry, blocked, err := l.store.GetBlock(ctx, key); err != nil {
		return false, err
	} else if blocked && expiry.After(now) {
		return false, nil
	}

	count, _, err := l.store.Incr(ctx, key, window)
	if err != nil {
		return false, err
	}
	if count <= maxRequests {
		return true, nil
	}

	// Over the cap: block the key and drop the counter so the window starts
	// fresh once the block lapses.
	if blockDuration > 0 {
		if err := l.store.SetBlock(ctx, key, now.Add(blockDuration)); err != nil {
			return false, err
		}
		if err := l.store.Remove(ctx, key); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Info returns the current state of a key, or nil when the key is untracked.
// Class-scoped keys are namespaced as "<class>:<key>".
func (l *Limiter) Info(ctx context.Context, key string) (*models.RateLimitInfo, error) {
	count, reset, tracked, err := l.store.Peek(ctx, key)
	if err != nil {
		return nil, err
	}
	blockExpiry, blocked, err := l.store.GetBlock(ctx, key)
	if err != nil {
		return nil, err
	}
	if !tracked && !blocked {
		return nil, nil
	}

	info := &models.RateLimitInfo{
		Key:          key,
		CurrentCount: count,
		ResetTime:    reset,
		Blocked:      blocked,
	}
	if blocked {
		info.BlockExpiry = blockExpiry
	}
	if limit, ok := l.limits.Load(key); ok {
		info.Limit = limit.(int)
	}
	return info, nil
}

// Sweep removes entries whose window and block have both lapsed, bounding
// store memory. Safe to call at arbitrary cadence.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx)
}

// Reset clears all tracked keys and blocks.
func (l *Limiter) Reset(ctx context.Context) error {
	l.limits.Range(func(k, _ any) bool {
		l.limits.Delete(k)
		return true
	})
	return l.store.Clear(ctx)
}
