package domain

import "time"

// Audit action names recorded by the moderation engine and rate limiter.
const (
	AuditActionFlag        = "flag_review"
	AuditActionAutoHide    = "auto_hide_review"
	AuditActionDelete      = "delete_review"
	AuditActionUpdate      = "update_review"
	AuditActionRateDenied  = "rate_limit_denied"
	AuditActionCorrectConf = "correct_confidence"
)

// AuditEntry is one append-only record of a moderation or limiter decision.
type AuditEntry struct {
	ActorID    int64     `json:"actor_id" bson:"actor_id"`
	ActionType string    `json:"action_type" bson:"action_type"`
	TargetType string    `json:"target_type" bson:"target_type"`
	TargetID   int64     `json:"target_id" bson:"target_id"`
	Details    string    `json:"details,omitempty" bson:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
