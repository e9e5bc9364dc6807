package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

const collectionAuditLog = "audit_log"

// AuditRepository implements ports.AuditSink on MongoDB. Append-only; the
// core exposes no query surface over it.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuditLog)}
}

func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"actor_id":    entry.ActorID,
		"action_type": entry.ActionType,
		"target_type": entry.TargetType,
		"target_id":   entry.TargetID,
		"timestamp":   entry.Timestamp.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if entry.Details != "" {
		doc["details"] = entry.Details
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
