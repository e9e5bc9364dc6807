package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

const collectionAssessments = "ai_assessments"

// AssessmentRepository implements ports.AssessmentRepository on MongoDB.
// The collection is append-only; CorrectConfidence is the single sanctioned
// mutation and never alters history ordering.
type AssessmentRepository struct {
	db  *mongo.Database
	col *mongo.Collection
}

func NewAssessmentRepository(db *mongo.Database) *AssessmentRepository {
	return &AssessmentRepository{db: db, col: db.Collection(collectionAssessments)}
}

type assessmentDoc struct {
	ID               int64     `bson:"_id"`
	ClientID         int64     `bson:"client_id"`
	AnalysisType     string    `bson:"analysis_type"`
	OverallScore     float64   `bson:"overall_score"`
	Confidence       float64   `bson:"confidence"`
	ModelVersion     string    `bson:"model_version"`
	ProcessingTimeMs int64     `bson:"processing_time_ms"`
	CreatedAt        time.Time `bson:"created_at"`
}

func (r *AssessmentRepository) Insert(ctx context.Context, a *domain.AiAssessment) (*domain.AiAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextID(ctx, r.db, collectionAssessments)
	if err != nil {
		return nil, err
	}

	doc := assessmentDoc{
		ID:               id,
		ClientID:         a.ClientID,
		AnalysisType:     string(a.AnalysisType),
		OverallScore:     a.OverallScore,
		Confidence:       a.Confidence,
		ModelVersion:     a.ModelVersion,
		ProcessingTimeMs: a.ProcessingTimeMs,
		CreatedAt:        a.CreatedAt,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert assessment: %w", err)
	}
	return toAssessment(&doc), nil
}

// RecentByType returns up to limit assessments of the given kind for the
// client, most recent first.
func (r *AssessmentRepository) RecentByType(ctx context.Context, clientID int64, kind domain.AnalysisType, limit int) ([]*domain.AiAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"client_id": clientID, "analysis_type": string(kind)}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("recent assessments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []assessmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("recent assessments: %w", err)
	}

	out := make([]*domain.AiAssessment, 0, len(docs))
	for i := range docs {
		out = append(out, toAssessment(&docs[i]))
	}
	return out, nil
}

func (r *AssessmentRepository) CorrectConfidence(ctx context.Context, id int64, confidence float64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"confidence": confidence}})
	if err != nil {
		return fmt.Errorf("correct confidence: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAssessmentNotFound
	}
	return nil
}

// EnsureIndexes creates the history lookup index.
func (r *AssessmentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "client_id", Value: 1},
			{Key: "analysis_type", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func toAssessment(doc *assessmentDoc) *domain.AiAssessment {
	return &domain.AiAssessment{
		ID:               doc.ID,
		ClientID:         doc.ClientID,
		AnalysisType:     domain.AnalysisType(doc.AnalysisType),
		OverallScore:     doc.OverallScore,
		Confidence:       doc.Confidence,
		ModelVersion:     doc.ModelVersion,
		ProcessingTimeMs: doc.ProcessingTimeMs,
		CreatedAt:        doc.CreatedAt,
	}
}
