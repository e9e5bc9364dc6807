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

const collectionClients = "clients"

// ClientRepository implements ports.ClientRepository on MongoDB. The derived
// aggregate lives on the profile document; only the trust aggregator writes
// it.
type ClientRepository struct {
	db  *mongo.Database
	col *mongo.Collection
}

func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{db: db, col: db.Collection(collectionClients)}
}

type clientAggregateDoc struct {
	TotalReviews  int      `bson:"total_reviews"`
	AverageRating *float64 `bson:"average_rating,omitempty"`
	AiSafetyScore *float64 `bson:"ai_safety_score,omitempty"`
}

type clientDoc struct {
	ID          int64              `bson:"_id"`
	PhoneNumber string             `bson:"phone_number"`
	DisplayName string             `bson:"display_name,omitempty"`
	Aggregate   clientAggregateDoc `bson:"aggregate"`
	IsDeleted   bool               `bson:"is_deleted"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

// FindByID returns a non-deleted client profile. Soft-deleted profiles keep
// their aggregate but are unreachable through normal read paths.
func (r *ClientRepository) FindByID(ctx context.Context, id int64) (*domain.ClientProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc clientDoc
	err := r.col.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	return toClient(&doc), nil
}

// Create inserts a new profile with an empty aggregate (zero reviews, null
// averages).
func (r *ClientRepository) Create(ctx context.Context, c *domain.ClientProfile) (*domain.ClientProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionClients)
	if err != nil {
		return nil, err
	}

	doc := clientDoc{
		ID:          id,
		PhoneNumber: c.PhoneNumber,
		DisplayName: c.DisplayName,
		Aggregate:   clientAggregateDoc{},
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicatePhoneNumber
		}
		return nil, fmt.Errorf("create client: %w", err)
	}
	return toClient(&doc), nil
}

// UpdateAggregate replaces the derived trust fields wholesale. Replacing the
// whole subdocument keeps nil (no data) distinct from zero.
func (r *ClientRepository) UpdateAggregate(ctx context.Context, clientID int64, agg domain.ClientAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"aggregate": clientAggregateDoc{
		TotalReviews:  agg.TotalReviews,
		AverageRating: agg.AverageRating,
		AiSafetyScore: agg.AiSafetyScore,
	}}}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

// ListIDs returns the ids of all non-deleted clients.
func (r *ClientRepository) ListIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.col.Find(ctx, bson.M{"is_deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("list client ids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list client ids: %w", err)
	}

	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// EnsureIndexes creates the phone number uniqueness index.
func (r *ClientRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func toClient(doc *clientDoc) *domain.ClientProfile {
	return &domain.ClientProfile{
		ID:          doc.ID,
		PhoneNumber: doc.PhoneNumber,
		DisplayName: doc.DisplayName,
		Aggregate: domain.ClientAggregate{
			TotalReviews:  doc.Aggregate.TotalReviews,
			AverageRating: doc.Aggregate.AverageRating,
			AiSafetyScore: doc.Aggregate.AiSafetyScore,
		},
		IsDeleted: doc.IsDeleted,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
