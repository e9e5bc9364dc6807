package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

// AssessmentInput is the validated result of one external AI scorer call.
type AssessmentInput struct {
	ClientID         int64
	AnalysisType     domain.AnalysisType
	OverallScore     float64
	Confidence       float64
	ModelVersion     string
	ProcessingTimeMs int64
}

// TrustService recomputes client trust aggregates and ingests AI
// assessments.
type TrustService interface {
	// RecomputeClientStats rebuilds the client's aggregate from the current
	// Active review set and safety assessment history. Idempotent and safe
	// to run concurrently with itself; last writer wins.
	RecomputeClientStats(ctx context.Context, clientID int64) (*domain.ClientAggregate, error)

	// IngestAssessment validates, persists, and (for safety assessments)
	// triggers a recompute.
	IngestAssessment(ctx context.Context, in AssessmentInput) (*domain.AiAssessment, error)

	// RecomputeAll is the out-of-band repair sweep for detected drift.
	// Returns the number of clients recomputed.
	RecomputeAll(ctx context.Context) (int, error)

	// CorrectConfidence overwrites the confidence of one assessment, the
	// single sanctioned mutation on the append-only history.
	CorrectConfidence(ctx context.Context, id int64, confidence float64, correctedBy int64) error
}
