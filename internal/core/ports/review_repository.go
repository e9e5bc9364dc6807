package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// ReviewUpdate carries the mutable review fields. Nil means unchanged.
type ReviewUpdate struct {
	Rating  *int
	Comment *string
}

// ReviewStats summarizes the visible review set for one client. A review is
// visible while it is Active or Flagged; hiding or deleting removes it.
type ReviewStats struct {
	Total int
	// AverageRating is nil when the visible set is empty, never 0.
	AverageRating *float64
}

// ReviewRepository persists reviews. The store enforces at most one
// non-deleted review per (client, reviewer) pair via a uniqueness constraint;
// Insert reports a violation as domain.ErrDuplicateReview.
type ReviewRepository interface {
	Insert(ctx context.Context, review *domain.Review) (*domain.Review, error)
	FindByID(ctx context.Context, id int64) (*domain.Review, error)

	// IncrementFlag atomically bumps the flag count, applies the new status,
	// and returns the post-increment document. The returned count is
	// read-after-write consistent so the auto-hide threshold is evaluated
	// against it, never a stale read.
	IncrementFlag(ctx context.Context, id int64, status domain.ReviewStatus) (*domain.Review, error)

	// SetStatus applies a moderation status transition.
	SetStatus(ctx context.Context, id int64, status domain.ReviewStatus) error

	Update(ctx context.Context, id int64, upd ReviewUpdate) (*domain.Review, error)

	// ActiveStats returns the count and mean rating of the client's visible
	// (Active or Flagged) reviews.
	ActiveStats(ctx context.Context, clientID int64) (*ReviewStats, error)
}
