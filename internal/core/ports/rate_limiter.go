package ports

import (
	"context"
	"time"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// RateLimitRequest is a single admission request.
type RateLimitRequest struct {
	Actor      domain.Actor
	ActionType domain.ActionType
	// Cost is the quota consumed by this request. Zero means 1.
	Cost int
	// Override replaces the configured policy for this call only.
	Override *domain.ActionPolicy
}

// RateLimitCheck is the outcome of one admission decision. When Allowed is
// true the counter has already been durably incremented; there is no separate
// commit step, so a caller cannot probe without consuming quota.
type RateLimitCheck struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	// ResetAt is the window expiry, returned even when the window is already
	// exhausted so callers can communicate a concrete retry time.
	ResetAt       time.Time `json:"reset_at"`
	TotalInWindow int       `json:"total_in_window"`
}

// RateLimiter decides admit/deny for (actor, action) pairs.
type RateLimiter interface {
	Check(ctx context.Context, req RateLimitRequest) (*RateLimitCheck, error)
	// CheckAll evaluates requests in order and stops at the first denial,
	// returning the partial results. Used for compound actions where later
	// steps must not run if an earlier one would be throttled.
	CheckAll(ctx context.Context, reqs []RateLimitRequest) ([]RateLimitCheck, error)
}

// PolicyProvider resolves the effective rate limit policy for an action.
type PolicyProvider interface {
	Policy(ctx context.Context, action domain.ActionType) (domain.ActionPolicy, error)
}
