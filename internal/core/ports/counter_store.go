package ports

import (
	"context"
	"time"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// CounterStore persists rate windows, one row per (actor, action, window).
type CounterStore interface {
	// Increment atomically adds cost to the live window for (actorKey, action),
	// opening a new window anchored at now when none is live. The returned
	// window carries the post-increment count. Window creation is a
	// conditional insert: of two concurrent first requests exactly one
	// creates the row, the other retries as an increment against it.
	Increment(ctx context.Context, actorKey string, action domain.ActionType, cost int, now time.Time, windowLength time.Duration) (*domain.RateWindow, error)

	// DeleteExpired removes windows whose expiry has passed. Best-effort
	// housekeeping: admission queries filter by expiry regardless, so a
	// missed sweep only wastes storage.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
