package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

const defaultPolicyTTL = time.Minute

// PolicyCache caches resolved rate limit policies in Redis with a TTL.
// Key format: ratelimit:policy:<action_type>
//
// The TTL is the documented staleness bound: a policy change becomes visible
// on every instance within one TTL, or immediately after Invalidate. This
// replaces any process-global config map so multiple instances share one
// view.
type PolicyCache struct {
	client   *redis.Client
	fallback ports.PolicyProvider
	ttl      time.Duration
}

// NewPolicyCache wraps fallback with a Redis-backed cache. A non-positive
// ttl uses the default of one minute.
func NewPolicyCache(client *redis.Client, fallback ports.PolicyProvider, ttl time.Duration) *PolicyCache {
	if ttl <= 0 {
		ttl = defaultPolicyTTL
	}
	return &PolicyCache{client: client, fallback: fallback, ttl: ttl}
}

type cachedPolicy struct {
	MaxAttempts  int           `json:"max_attempts"`
	WindowLength time.Duration `json:"window_length"`
	FailMode     string        `json:"fail_mode"`
}

// Policy returns the cached policy for action, falling back to the wrapped
// provider (and populating the cache) on a miss. Cache errors degrade to the
// fallback; they never fail the admission path.
func (c *PolicyCache) Policy(ctx context.Context, action domain.ActionType) (domain.ActionPolicy, error) {
	raw, err := c.client.Get(ctx, c.key(action)).Result()
	if err == nil {
		var cp cachedPolicy
		if err := json.Unmarshal([]byte(raw), &cp); err == nil {
			return domain.ActionPolicy{
				MaxAttempts:  cp.MaxAttempts,
				WindowLength: cp.WindowLength,
				FailMode:     domain.FailMode(cp.FailMode),
			}, nil
		}
	}
	// redis.Nil and transport errors alike degrade to the source of truth;
	// the cache never fails the admission path.

	policy, err := c.fallback.Policy(ctx, action)
	if err != nil {
		return domain.ActionPolicy{}, err
	}

	// Best effort fill: a failure only costs the next lookup.
	_ = c.Set(ctx, action, policy)
	return policy, nil
}

// Set stores a policy with the configured TTL.
func (c *PolicyCache) Set(ctx context.Context, action domain.ActionType, policy domain.ActionPolicy) error {
	data, err := json.Marshal(cachedPolicy{
		MaxAttempts:  policy.MaxAttempts,
		WindowLength: policy.WindowLength,
		FailMode:     string(policy.FailMode),
	})
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	return c.client.Set(ctx, c.key(action), data, c.ttl).Err()
}

// Invalidate drops the cached policy for action so the next lookup hits the
// source of truth.
func (c *PolicyCache) Invalidate(ctx context.Context, action domain.ActionType) error {
	return c.client.Del(ctx, c.key(action)).Err()
}

func (c *PolicyCache) key(action domain.ActionType) string {
	return fmt.Sprintf("ratelimit:policy:%s", action)
}
