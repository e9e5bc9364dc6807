package domain

import (
	"errors"
	"time"
)

// ReviewStatus represents the moderation state of a review.
type ReviewStatus string

const (
	ReviewActive  ReviewStatus = "active"
	ReviewFlagged ReviewStatus = "flagged"
	ReviewHidden  ReviewStatus = "hidden"
	ReviewDeleted ReviewStatus = "deleted"
)

// AutoHideThreshold is the flag count at which a review is suppressed
// without moderator involvement.
const AutoHideThreshold = 3

// validTransitions defines the allowed moderation state machine transitions.
// Deleted is terminal; reviewer edits never change status.
var validTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewActive:  {ReviewFlagged, ReviewDeleted},
	ReviewFlagged: {ReviewFlagged, ReviewHidden, ReviewDeleted},
	ReviewHidden:  {ReviewDeleted},
}

var ErrReviewNotFound = errors.New("review not found")
var ErrInvalidTransition = errors.New("invalid review status transition")
var ErrDuplicateReview = errors.New("review already exists for this client and reviewer")
var ErrUnauthorized = errors.New("not authorized")
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// CanTransitionTo reports whether a moderation transition from the current
// status to next is valid.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Live reports whether the review still exists from a reviewer's point of
// view. Live reviews block duplicate submission for the same pair.
func (s ReviewStatus) Live() bool {
	return s != ReviewDeleted
}

// Review is a trust signal from one reviewer about one client.
type Review struct {
	ID           int64        `json:"id" bson:"_id,omitempty"`
	ClientID     int64        `json:"client_id" bson:"client_id"`
	ReviewerID   int64        `json:"reviewer_id" bson:"reviewer_id"`
	Rating       int          `json:"rating" bson:"rating"`
	Comment      string       `json:"comment,omitempty" bson:"comment,omitempty"`
	Status       ReviewStatus `json:"status" bson:"status"`
	FlaggedCount int          `json:"flagged_count" bson:"flagged_count"`
	IsVerified   bool         `json:"is_verified" bson:"is_verified"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" bson:"updated_at"`
}

// CountsTowardStats reports whether the review participates in the client's
// trust aggregate. A review counts until it is hidden or deleted: flags below
// the auto-hide threshold do not suppress it.
func (r *Review) CountsTowardStats() bool {
	return r.Status == ReviewActive || r.Status == ReviewFlagged
}

// ValidRating reports whether rating is inside the accepted 1-5 range.
func ValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}
