package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// SubmitReviewInput carries all data needed to submit a new review.
type SubmitReviewInput struct {
	ClientID   int64
	ReviewerID int64
	Rating     int
	Comment    string
	IsVerified bool
}

// FlagReviewInput identifies one flag signal against a review.
type FlagReviewInput struct {
	ReviewID  int64
	FlaggedBy int64
	Reason    string
}

// UpdateReviewInput carries a reviewer edit or moderator correction.
type UpdateReviewInput struct {
	ReviewID  int64
	UpdatedBy int64
	Role      string
	Update    ReviewUpdate
}

// DeleteReviewInput identifies a soft delete request.
type DeleteReviewInput struct {
	ReviewID  int64
	DeletedBy int64
	Role      string
}

// ModerationService owns the review state machine: duplicate suppression,
// flag accumulation, auto-hide, soft delete.
type ModerationService interface {
	SubmitReview(ctx context.Context, in SubmitReviewInput) (*domain.Review, error)
	FlagReview(ctx context.Context, in FlagReviewInput) (*domain.Review, error)
	UpdateReview(ctx context.Context, in UpdateReviewInput) (*domain.Review, error)
	DeleteReview(ctx context.Context, in DeleteReviewInput) error
}
