package handler

import "time"

type submitReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

type flagReviewRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type reviewResponse struct {
	ID           int64     `json:"id"`
	ClientID     int64     `json:"client_id"`
	ReviewerID   int64     `json:"reviewer_id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	Status       string    `json:"status"`
	FlaggedCount int       `json:"flagged_count"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
