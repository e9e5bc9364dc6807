package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

const collectionRateWindows = "rate_windows"

// incrementAttempts bounds the increment/insert retry loop. One lost insert
// race needs one extra pass; two passes of contention on the same pair is
// already pathological.
const incrementAttempts = 3

// CounterRepository implements ports.CounterStore on MongoDB.
//
// At most one live window exists per (actor, action): a unique partial index
// on (actor_key, action_type) filtered to live documents makes window
// creation a conditional insert. Retired windows keep their rows for
// statistics until the sweep removes them.
type CounterRepository struct {
	col *mongo.Collection
}

func NewCounterRepository(db *mongo.Database) *CounterRepository {
	return &CounterRepository{col: db.Collection(collectionRateWindows)}
}

type rateWindowDoc struct {
	ActorKey    string    `bson:"actor_key"`
	ActionType  string    `bson:"action_type"`
	WindowStart time.Time `bson:"window_start"`
	Count       int       `bson:"count"`
	ExpiresAt   time.Time `bson:"expires_at"`
	Live        bool      `bson:"live,omitempty"`
}

// Increment adds cost to the live window, opening one anchored at now when
// none is live. The admission filter always excludes expired windows by
// timestamp, so correctness never depends on the sweep having run.
func (r *CounterRepository) Increment(
	ctx context.Context,
	actorKey string,
	action domain.ActionType,
	cost int,
	now time.Time,
	windowLength time.Duration,
) (*domain.RateWindow, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pair := bson.M{"actor_key": actorKey, "action_type": string(action)}

	for attempt := 0; attempt < incrementAttempts; attempt++ {
		// Increment the current live, unexpired window.
		filter := bson.M{
			"actor_key":   actorKey,
			"action_type": string(action),
			"live":        true,
			"expires_at":  bson.M{"$gt": now},
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		var doc rateWindowDoc
		err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"count": cost}}, opts).Decode(&doc)
		if err == nil {
			return toRateWindow(&doc), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("increment rate window: %w", err)
		}

		// Retire an expired live window so the unique live slot frees up.
		retire := bson.M{
			"actor_key":   actorKey,
			"action_type": string(action),
			"live":        true,
			"expires_at":  bson.M{"$lte": now},
		}
		if _, err := r.col.UpdateOne(ctx, retire, bson.M{"$unset": bson.M{"live": ""}}); err != nil {
			return nil, fmt.Errorf("retire rate window: %w", err)
		}

		// Conditional insert of a fresh window anchored at now. Of two
		// concurrent first requests the unique index lets exactly one
		// through; the loser retries as an increment.
		fresh := rateWindowDoc{
			ActorKey:    actorKey,
			ActionType:  string(action),
			WindowStart: now,
			Count:       cost,
			ExpiresAt:   now.Add(windowLength),
			Live:        true,
		}
		if _, err := r.col.InsertOne(ctx, fresh); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return nil, fmt.Errorf("insert rate window: %w", err)
		}
		return toRateWindow(&fresh), nil
	}

	return nil, fmt.Errorf("increment rate window: contention on %v", pair)
}

// DeleteExpired removes windows whose expiry has passed.
func (r *CounterRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, fmt.Errorf("delete expired windows: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the indexes the window invariants rely on.
func (r *CounterRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			// One live window per (actor, action).
			Keys: bson.D{{Key: "actor_key", Value: 1}, {Key: "action_type", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"live": true}),
		},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func toRateWindow(doc *rateWindowDoc) *domain.RateWindow {
	return &domain.RateWindow{
		ActorKey:    doc.ActorKey,
		ActionType:  domain.ActionType(doc.ActionType),
		WindowStart: doc.WindowStart,
		Count:       doc.Count,
		ExpiresAt:   doc.ExpiresAt,
	}
}
