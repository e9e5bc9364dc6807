package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clientcheck/trust-system/internal/api/metrics"
	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

type trustService struct {
	reviews     ports.ReviewRepository
	assessments ports.AssessmentRepository
	clients     ports.ClientRepository
	audit       ports.AuditSink
	log         zerolog.Logger
}

// NewTrustService returns a TrustService implementation.
func NewTrustService(
	reviews ports.ReviewRepository,
	assessments ports.AssessmentRepository,
	clients ports.ClientRepository,
	audit ports.AuditSink,
	log zerolog.Logger,
) ports.TrustService {
	return &trustService{
		reviews:     reviews,
		assessments: assessments,
		clients:     clients,
		audit:       audit,
		log:         log,
	}
}

// RecomputeClientStats rebuilds the client aggregate from the current Active
// review set and recent safety assessments. The computation is a pure
// function of the underlying data, so it is idempotent and safe to run
// concurrently with itself for the same client: two concurrent runs converge
// to the same values unless the underlying set changed between reads, in
// which case the recompute triggered by the later write corrects it.
func (s *trustService) RecomputeClientStats(ctx context.Context, clientID int64) (*domain.ClientAggregate, error) {
	timer := prometheus.NewTimer(metrics.RecomputeDuration)
	defer timer.ObserveDuration()

	stats, err := s.reviews.ActiveStats(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("recompute stats: %w", err)
	}

	recent, err := s.assessments.RecentByType(ctx, clientID, domain.AnalysisSafety, domain.SafetyScoreWindow)
	if err != nil {
		return nil, fmt.Errorf("recompute stats: %w", err)
	}

	agg := domain.ClientAggregate{
		TotalReviews:  stats.Total,
		AverageRating: stats.AverageRating,
		AiSafetyScore: safetyScore(recent),
	}

	if err := s.clients.UpdateAggregate(ctx, clientID, agg); err != nil {
		return nil, fmt.Errorf("recompute stats: %w", err)
	}

	s.log.Debug().
		Int64("client_id", clientID).
		Int("total_reviews", agg.TotalReviews).
		Msg("client stats recomputed")

	return &agg, nil
}

// IngestAssessment validates and persists one external scorer result. Safety
// assessments feed the aggregate score and trigger a recompute; other kinds
// are recorded for audit only.
func (s *trustService) IngestAssessment(ctx context.Context, in ports.AssessmentInput) (*domain.AiAssessment, error) {
	if in.OverallScore < 0 || in.OverallScore > 10 {
		return nil, domain.ErrInvalidScore
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, domain.ErrInvalidConfidence
	}

	if _, err := s.clients.FindByID(ctx, in.ClientID); err != nil {
		return nil, fmt.Errorf("ingest assessment: %w", err)
	}

	assessment := &domain.AiAssessment{
		ClientID:         in.ClientID,
		AnalysisType:     in.AnalysisType,
		OverallScore:     in.OverallScore,
		Confidence:       in.Confidence,
		ModelVersion:     in.ModelVersion,
		ProcessingTimeMs: in.ProcessingTimeMs,
		CreatedAt:        time.Now().UTC(),
	}

	created, err := s.assessments.Insert(ctx, assessment)
	if err != nil {
		return nil, fmt.Errorf("ingest assessment: %w", err)
	}

	s.log.Info().
		Int64("client_id", in.ClientID).
		Str("analysis_type", string(in.AnalysisType)).
		Float64("score", in.OverallScore).
		Str("model_version", in.ModelVersion).
		Msg("assessment ingested")

	if created.FeedsSafetyScore() {
		if _, err := s.RecomputeClientStats(ctx, in.ClientID); err != nil {
			s.log.Warn().Err(err).Int64("client_id", in.ClientID).Msg("stats recompute failed after assessment")
		}
	}

	return created, nil
}

// RecomputeAll sweeps every client. Out-of-band repair tool for detected
// drift, not part of normal operation.
func (s *trustService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.clients.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute all: %w", err)
	}

	recomputed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return recomputed, err
		}
		if _, err := s.RecomputeClientStats(ctx, id); err != nil {
			s.log.Warn().Err(err).Int64("client_id", id).Msg("repair sweep: recompute failed")
			continue
		}
		recomputed++
	}

	s.log.Info().Int("clients", recomputed).Msg("repair sweep finished")
	return recomputed, nil
}

// CorrectConfidence applies an admin correction to one assessment's
// confidence. Score and ordering are untouched, so no recompute is needed.
func (s *trustService) CorrectConfidence(ctx context.Context, id int64, confidence float64, correctedBy int64) error {
	if confidence < 0 || confidence > 1 {
		return domain.ErrInvalidConfidence
	}

	if err := s.assessments.CorrectConfidence(ctx, id, confidence); err != nil {
		return fmt.Errorf("correct confidence: %w", err)
	}

	entry := &domain.AuditEntry{
		ActorID:    correctedBy,
		ActionType: domain.AuditActionCorrectConf,
		TargetType: "assessment",
		TargetID:   id,
		Details:    fmt.Sprintf("confidence=%g", confidence),
		Timestamp:  time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).Int64("assessment_id", id).Msg("failed to audit confidence correction")
	}

	return nil
}

// safetyScore is the unweighted mean of overall scores over the given
// assessments, or nil when there are none.
func safetyScore(recent []*domain.AiAssessment) *float64 {
	if len(recent) == 0 {
		return nil
	}
	var sum float64
	for _, a := range recent {
		sum += a.OverallScore
	}
	score := sum / float64(len(recent))
	return &score
}
