// Package ratelimit implements a sliding-window rate limiter over the
// key-value store, shared by every instance behind the same backend.
//
// Each identifier's window is one KV record holding the timestamps of
// its recent requests. The read-modify-write is not atomic, so two
// instances admitting concurrently can each observe room in the window
// and both admit; the limit is approximate under contention, which is
// acceptable for traffic shaping. Records carry a TTL of one window so
// idle identifiers cost nothing.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/clock"
	"github.com/wardenhq/warden/pkg/kv"
)

const defaultKeyPrefix = "ratelimit:"

// Config defines one tier's window.
type Config struct {
	// MaxRequests is the number of requests admitted per window.
	MaxRequests int
	// Window is the sliding window duration.
	Window time.Duration
}

// ReadTierConfig limits plain reads. The most permissive tier.
func ReadTierConfig() Config {
	return Config{MaxRequests: 600, Window: time.Minute}
}

// CheckTierConfig limits permission and quota checks, the hot path for
// service callers.
func CheckTierConfig() Config {
	return Config{MaxRequests: 300, Window: time.Minute}
}

// WriteTierConfig limits mutations.
func WriteTierConfig() Config {
	return Config{MaxRequests: 120, Window: time.Minute}
}

// AdminTierConfig limits administrative operations. The strictest tier.
func AdminTierConfig() Config {
	return Config{MaxRequests: 30, Window: time.Minute}
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the oldest counted request leaves
	// the window. Zero when allowed.
	RetryAfter time.Duration
}

// window is the persisted per-identifier state.
type window struct {
	Identifier string      `json:"identifier"`
	Timestamps []time.Time `json:"timestamps"`
}

// Limiter admits or rejects requests for one tier.
type Limiter struct {
	store     kv.Store
	clock     clock.Clock
	tier      string
	config    Config
	keyPrefix string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithKeyPrefix overrides the key prefix, isolating deployments that
// share a backend.
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// NewLimiter creates a limiter for a named tier.
func NewLimiter(store kv.Store, clk clock.Clock, tier string, config Config, opts ...Option) *Limiter {
	if clk == nil {
		clk = clock.System{}
	}
	l := &Limiter{
		store:     store,
		clock:     clk,
		tier:      tier,
		config:    config,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tier returns the limiter's tier name.
func (l *Limiter) Tier() string { return l.tier }

// Limit returns the tier's per-window request budget.
func (l *Limiter) Limit() int { return l.config.MaxRequests }

func (l *Limiter) key(identifier string) string {
	return fmt.Sprintf("%s%s:%s", l.keyPrefix, l.tier, identifier)
}

// Check admits or rejects one request for the identifier. An admitted
// request is counted immediately; a rejected one leaves the window
// untouched.
func (l *Limiter) Check(ctx context.Context, identifier string) (*Result, error) {
	now := l.clock.Now()
	key := l.key(identifier)

	var win window
	data, err := l.store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
		win = window{Identifier: identifier}
	case err != nil:
		return nil, fmt.Errorf("failed to read rate limit window: %w", err)
	default:
		if err := json.Unmarshal(data, &win); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rate limit window: %w", err)
		}
	}

	cutoff := now.Add(-l.config.Window)
	live := win.Timestamps[:0]
	for _, ts := range win.Timestamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	win.Timestamps = live

	if len(win.Timestamps) >= l.config.MaxRequests {
		oldest := win.Timestamps[0]
		for _, ts := range win.Timestamps[1:] {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		retryAfter := oldest.Add(l.config.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &Result{
			Allowed:    false,
			Limit:      l.config.MaxRequests,
			Remaining:  0,
			RetryAfter: ceilSeconds(retryAfter),
		}, nil
	}

	win.Timestamps = append(win.Timestamps, now)
	data, err = json.Marshal(&win)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rate limit window: %w", err)
	}
	if err := l.store.Put(ctx, key, data, kv.WithTTL(l.config.Window)); err != nil {
		return nil, fmt.Errorf("failed to write rate limit window: %w", err)
	}

	return &Result{
		Allowed:   true,
		Limit:     l.config.MaxRequests,
		Remaining: l.config.MaxRequests - len(win.Timestamps),
	}, nil
}

// ceilSeconds rounds d up to a whole second. An exact multiple of a
// second stays as-is, so a full window never reports more than the
// window itself.
func ceilSeconds(d time.Duration) time.Duration {
	if r := d.Truncate(time.Second); r != d {
		return r + time.Second
	}
	return d
}
