package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// RateLimiter decides admit/deny using rolling fixed windows anchored at the
// first write. A request after the window expiry opens a brand-new window, so
// the worst-case burst at a window boundary is 2x the limit. This imprecision
// is a known, accepted property of the fixed-window algorithm, not a bug.
type RateLimiter struct {
	store    ports.CounterStore
	policies ports.PolicyProvider
	audit    ports.AuditSink
	log      zerolog.Logger
	now      func() time.Time
}

// NewRateLimiter returns a RateLimiter backed by the given counter store.
func NewRateLimiter(store ports.CounterStore, policies ports.PolicyProvider, audit ports.AuditSink, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		store:    store,
		policies: policies,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// Check performs one admission decision. Admission and counting are the same
// atomic store operation: every call that returns Allowed=true has already
// durably consumed quota, so a caller cannot probe without spending it.
//
// When the store is unreachable the verdict follows the action's fail mode
// (deny for fail-closed, admit for fail-open) and the returned error wraps
// domain.ErrStoreUnavailable so callers can still distinguish the condition.
func (l *RateLimiter) Check(ctx context.Context, req ports.RateLimitRequest) (*ports.RateLimitCheck, error) {
	if !req.Actor.Valid() {
		return nil, fmt.Errorf("rate limit check: %w", domain.ErrInvalidActor)
	}

	policy, err := l.resolvePolicy(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	cost := req.Cost
	if cost <= 0 {
		cost = 1
	}

	now := l.now().UTC()
	win, err := l.store.Increment(ctx, req.Actor.Key(), req.ActionType, cost, now, policy.WindowLength)
	if err != nil {
		l.log.Error().Err(err).
			Str("actor", req.Actor.Key()).
			Str("action", string(req.ActionType)).
			Str("fail_mode", string(policy.FailMode)).
			Msg("counter store error")
		check := &ports.RateLimitCheck{Allowed: policy.FailMode == domain.FailOpen}
		return check, fmt.Errorf("rate limit check: %w", domain.ErrStoreUnavailable)
	}

	check := &ports.RateLimitCheck{
		Allowed:       win.Count <= policy.MaxAttempts,
		Remaining:     remaining(policy.MaxAttempts, win.Count),
		ResetAt:       win.ExpiresAt,
		TotalInWindow: win.Count,
	}

	if !check.Allowed {
		l.log.Warn().
			Str("actor", req.Actor.Key()).
			Str("action", string(req.ActionType)).
			Int("count", win.Count).
			Int("max", policy.MaxAttempts).
			Time("reset_at", check.ResetAt).
			Msg("rate limit exceeded")
		l.recordDenial(ctx, req, win)
	}

	return check, nil
}

// CheckAll evaluates requests in order and stops at the first denial or
// error, returning the partial results. This matches all-or-nothing compound
// actions where later steps must not run if an earlier one is throttled.
func (l *RateLimiter) CheckAll(ctx context.Context, reqs []ports.RateLimitRequest) ([]ports.RateLimitCheck, error) {
	results := make([]ports.RateLimitCheck, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		check, err := l.Check(ctx, req)
		if err != nil {
			if check != nil {
				results = append(results, *check)
			}
			return results, err
		}
		results = append(results, *check)
		if !check.Allowed {
			break
		}
	}
	return results, nil
}

// StartCleanup launches the periodic expired-window sweep. The sweep is
// best-effort housekeeping: admission queries exclude expired windows by
// timestamp regardless, so a missed run only wastes storage.
func (l *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := l.store.DeleteExpired(ctx, l.now().UTC())
				if err != nil {
					l.log.Warn().Err(err).Msg("rate window sweep failed")
					continue
				}
				if deleted > 0 {
					l.log.Debug().Int64("deleted", deleted).Msg("expired rate windows removed")
				}
			}
		}
	}()
}

func (l *RateLimiter) resolvePolicy(ctx context.Context, req ports.RateLimitRequest) (domain.ActionPolicy, error) {
	if req.Override != nil {
		return *req.Override, nil
	}
	return l.policies.Policy(ctx, req.ActionType)
}

// recordDenial writes a limiter denial to the audit sink (non-fatal on failure).
func (l *RateLimiter) recordDenial(ctx context.Context, req ports.RateLimitRequest, win *domain.RateWindow) {
	if l.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		ActorID:    req.Actor.UserID,
		ActionType: domain.AuditActionRateDenied,
		TargetType: "rate_window",
		Details:    fmt.Sprintf("action=%s count=%d", req.ActionType, win.Count),
		Timestamp:  l.now().UTC(),
	}
	if entry.ActorID == 0 {
		entry.ActorID = req.Actor.ExternalID
	}
	if err := l.audit.Append(ctx, entry); err != nil {
		l.log.Warn().Err(err).Msg("failed to audit rate limit denial")
	}
}

func remaining(max, count int) int {
	if count >= max {
		return 0
	}
	return max - count
}

// StaticPolicyProvider resolves policies from the built-in table.
type StaticPolicyProvider struct{}

// Policy returns the default policy for action, or ErrUnknownAction.
func (StaticPolicyProvider) Policy(_ context.Context, action domain.ActionType) (domain.ActionPolicy, error) {
	p, ok := domain.DefaultPolicies[action]
	if !ok {
		return domain.ActionPolicy{}, fmt.Errorf("%w: %s", domain.ErrUnknownAction, action)
	}
	return p, nil
}
