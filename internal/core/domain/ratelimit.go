package domain

import (
	"errors"
	"fmt"
	"time"
)

// ActionType identifies the kind of action being rate limited.
type ActionType string

const (
	ActionCreateReview ActionType = "create_review"
	ActionFlagReview   ActionType = "flag_review"
	ActionUploadPhoto  ActionType = "upload_photo"
	ActionSearchClient ActionType = "search_client"
	ActionLoginAttempt ActionType = "login_attempt"
	ActionSubmitPhone  ActionType = "submit_phone"
)

var ErrInvalidActor = errors.New("rate limit request carries no actor identity")
var ErrStoreUnavailable = errors.New("store unavailable")
var ErrUnknownAction = errors.New("unknown action type")
var ErrRateLimited = errors.New("too many attempts")

// Actor identifies who is acting: exactly one of UserID (internal account) or
// ExternalID (bot/platform identifier) must be set.
type Actor struct {
	UserID     int64
	ExternalID int64
}

// Valid reports whether exactly one identity is present.
func (a Actor) Valid() bool {
	return (a.UserID != 0) != (a.ExternalID != 0)
}

// Key returns the canonical store key for the actor.
func (a Actor) Key() string {
	if a.UserID != 0 {
		return fmt.Sprintf("user:%d", a.UserID)
	}
	return fmt.Sprintf("ext:%d", a.ExternalID)
}

// RateWindow is one counting window for an (actor, action) pair.
// The window is anchored at the first write: requests within WindowStart +
// WindowLength increment the same counter, later requests open a new window.
type RateWindow struct {
	ActorKey    string     `bson:"actor_key"`
	ActionType  ActionType `bson:"action_type"`
	WindowStart time.Time  `bson:"window_start"`
	Count       int        `bson:"count"`
	ExpiresAt   time.Time  `bson:"expires_at"`
}

// FailMode decides the limiter verdict when the counter store is unreachable.
type FailMode string

const (
	// FailClosed denies on store errors. Default for safety-sensitive actions.
	FailClosed FailMode = "closed"
	// FailOpen admits on store errors. Used for informational actions only.
	FailOpen FailMode = "open"
)

// ActionPolicy is the rate limit configuration for a single action type.
type ActionPolicy struct {
	MaxAttempts  int
	WindowLength time.Duration
	FailMode     FailMode
}

// DefaultPolicies is the static policy table. Entries can be overridden per
// call or through the cached policy store.
var DefaultPolicies = map[ActionType]ActionPolicy{
	ActionCreateReview: {MaxAttempts: 5, WindowLength: time.Hour, FailMode: FailClosed},
	ActionFlagReview:   {MaxAttempts: 10, WindowLength: time.Hour, FailMode: FailClosed},
	ActionUploadPhoto:  {MaxAttempts: 10, WindowLength: time.Hour, FailMode: FailClosed},
	ActionSearchClient: {MaxAttempts: 30, WindowLength: time.Minute, FailMode: FailOpen},
	ActionLoginAttempt: {MaxAttempts: 5, WindowLength: 15 * time.Minute, FailMode: FailClosed},
	ActionSubmitPhone:  {MaxAttempts: 3, WindowLength: time.Hour, FailMode: FailClosed},
}
