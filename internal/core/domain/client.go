package domain

import (
	"errors"
	"time"
)

var ErrClientNotFound = errors.New("client not found")
var ErrDuplicatePhoneNumber = errors.New("phone number already registered")

// ClientAggregate is the denormalized trust summary attached to a client
// profile. It is derived, never independently authored: only the trust
// aggregator writes it. AverageRating and AiSafetyScore are nil, not zero,
// when no underlying data exists.
type ClientAggregate struct {
	TotalReviews  int      `json:"total_reviews" bson:"total_reviews"`
	AverageRating *float64 `json:"average_rating" bson:"average_rating,omitempty"`
	AiSafetyScore *float64 `json:"ai_safety_score" bson:"ai_safety_score,omitempty"`
}

// ClientProfile is the verified third party users submit signals about.
type ClientProfile struct {
	ID          int64           `json:"id" bson:"_id,omitempty"`
	PhoneNumber string          `json:"phone_number" bson:"phone_number"`
	DisplayName string          `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Aggregate   ClientAggregate `json:"aggregate" bson:"aggregate"`
	IsDeleted   bool            `json:"-" bson:"is_deleted"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" bson:"updated_at"`
}
