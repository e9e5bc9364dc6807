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
	"github.com/clientcheck/trust-system/internal/core/ports"
)

const collectionReviews = "reviews"

// ReviewRepository implements ports.ReviewRepository on MongoDB.
//
// A unique partial index on (client_id, reviewer_id) filtered to live
// documents enforces one non-deleted review per pair at the store level;
// an application pre-check alone would race between concurrent submissions.
type ReviewRepository struct {
	db  *mongo.Database
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{db: db, col: db.Collection(collectionReviews)}
}

type reviewDoc struct {
	ID           int64     `bson:"_id"`
	ClientID     int64     `bson:"client_id"`
	ReviewerID   int64     `bson:"reviewer_id"`
	Rating       int       `bson:"rating"`
	Comment      string    `bson:"comment,omitempty"`
	Status       string    `bson:"status"`
	FlaggedCount int       `bson:"flagged_count"`
	IsVerified   bool      `bson:"is_verified"`
	Live         bool      `bson:"live,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Insert persists a new review, reporting a live duplicate for the
// (client, reviewer) pair as domain.ErrDuplicateReview.
func (r *ReviewRepository) Insert(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionReviews)
	if err != nil {
		return nil, err
	}

	doc := reviewDoc{
		ID:           id,
		ClientID:     review.ClientID,
		ReviewerID:   review.ReviewerID,
		Rating:       review.Rating,
		Comment:      review.Comment,
		Status:       string(review.Status),
		FlaggedCount: review.FlaggedCount,
		IsVerified:   review.IsVerified,
		Live:         true,
		CreatedAt:    review.CreatedAt,
		UpdatedAt:    review.UpdatedAt,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateReview
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	return toReview(&doc), nil
}

func (r *ReviewRepository) FindByID(ctx context.Context, id int64) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc reviewDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return toReview(&doc), nil
}

// IncrementFlag atomically bumps the flag count and applies the new status,
// returning the post-increment document so threshold checks never act on a
// stale read.
func (r *ReviewRepository) IncrementFlag(ctx context.Context, id int64, status domain.ReviewStatus) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"flagged_count": 1},
		"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc reviewDoc
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, fmt.Errorf("increment flag: %w", err)
	}
	return toReview(&doc), nil
}

// SetStatus applies a status transition. Deleting drops the live marker so
// the pair's uniqueness slot frees up for a future review.
func (r *ReviewRepository) SetStatus(ctx context.Context, id int64, status domain.ReviewStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}}
	if status == domain.ReviewDeleted {
		update["$unset"] = bson.M{"live": ""}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("set review status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

func (r *ReviewRepository) Update(ctx context.Context, id int64, upd ports.ReviewUpdate) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Rating != nil {
		set["rating"] = *upd.Rating
	}
	if upd.Comment != nil {
		set["comment"] = *upd.Comment
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc reviewDoc
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, fmt.Errorf("update review: %w", err)
	}
	return toReview(&doc), nil
}

// ActiveStats aggregates the count and mean rating over the client's visible
// reviews in a single pipeline. Flagged reviews still count until the
// auto-hide threshold suppresses them.
func (r *ReviewRepository) ActiveStats(ctx context.Context, clientID int64) (*ports.ReviewStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"client_id": clientID,
			"status": bson.M{"$in": bson.A{
				string(domain.ReviewActive),
				string(domain.ReviewFlagged),
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"avg":   bson.M{"$avg": "$rating"},
		}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("active stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int     `bson:"total"`
		Avg   float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("active stats: %w", err)
	}

	if len(rows) == 0 {
		return &ports.ReviewStats{Total: 0, AverageRating: nil}, nil
	}

	avg := rows[0].Avg
	return &ports.ReviewStats{Total: rows[0].Total, AverageRating: &avg}, nil
}

// EnsureIndexes creates the indexes the review invariants rely on.
func (r *ReviewRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			// One live review per (client, reviewer).
			Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "reviewer_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"live": true}),
		},
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func toReview(doc *reviewDoc) *domain.Review {
	return &domain.Review{
		ID:           doc.ID,
		ClientID:     doc.ClientID,
		ReviewerID:   doc.ReviewerID,
		Rating:       doc.Rating,
		Comment:      doc.Comment,
		Status:       domain.ReviewStatus(doc.Status),
		FlaggedCount: doc.FlaggedCount,
		IsVerified:   doc.IsVerified,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
