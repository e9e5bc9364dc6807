package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// AssessmentRepository persists AI assessments. The collection is
// append-only: records are never mutated after insert except for the
// explicit admin confidence correction.
type AssessmentRepository interface {
	Insert(ctx context.Context, a *domain.AiAssessment) (*domain.AiAssessment, error)

	// RecentByType returns up to limit assessments of the given kind for the
	// client, most recent first.
	RecentByType(ctx context.Context, clientID int64, kind domain.AnalysisType, limit int) ([]*domain.AiAssessment, error)

	// CorrectConfidence overwrites the confidence of one assessment. History
	// ordering is unaffected.
	CorrectConfidence(ctx context.Context, id int64, confidence float64) error
}
