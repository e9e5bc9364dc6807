package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// StatsRecomputer abstracts the trust aggregator trigger.
type StatsRecomputer interface {
	RecomputeClientStats(ctx context.Context, clientID int64) (*domain.ClientAggregate, error)
}

type moderationService struct {
	reviews    ports.ReviewRepository
	clients    ports.ClientRepository
	audit      ports.AuditSink
	recomputer StatsRecomputer
	log        zerolog.Logger
}

// NewModerationService returns a ModerationService implementation.
func NewModerationService(
	reviews ports.ReviewRepository,
	clients ports.ClientRepository,
	audit ports.AuditSink,
	recomputer StatsRecomputer,
	log zerolog.Logger,
) ports.ModerationService {
	return &moderationService{
		reviews:    reviews,
		clients:    clients,
		audit:      audit,
		recomputer: recomputer,
		log:        log,
	}
}

// SubmitReview inserts a new Active review. At most one non-deleted review
// may exist per (client, reviewer) pair; the store enforces this with a
// uniqueness constraint, so concurrent duplicate submissions cannot both
// win. Reviewers edit via UpdateReview, never by resubmitting.
func (s *moderationService) SubmitReview(ctx context.Context, in ports.SubmitReviewInput) (*domain.Review, error) {
	if !domain.ValidRating(in.Rating) {
		return nil, domain.ErrInvalidRating
	}

	if _, err := s.clients.FindByID(ctx, in.ClientID); err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ClientID:   in.ClientID,
		ReviewerID: in.ReviewerID,
		Rating:     in.Rating,
		Comment:    in.Comment,
		Status:     domain.ReviewActive,
		IsVerified: in.IsVerified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.reviews.Insert(ctx, review)
	if err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}

	s.log.Info().
		Int64("review_id", created.ID).
		Int64("client_id", in.ClientID).
		Int64("reviewer_id", in.ReviewerID).
		Int("rating", in.Rating).
		Msg("review submitted")

	s.recompute(ctx, in.ClientID)
	return created, nil
}

// FlagReview records one flag signal. The count increments unconditionally
// (each flag is a distinct signal, even on an already-flagged review) and the
// auto-hide rule is evaluated against the post-increment count, so it fires
// deterministically even under concurrent flaggers. A flagged review keeps
// counting toward the client aggregate until the threshold hides it, so only
// the auto-hide branch triggers a recompute.
func (s *moderationService) FlagReview(ctx context.Context, in ports.FlagReviewInput) (*domain.Review, error) {
	current, err := s.reviews.FindByID(ctx, in.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("flag review: %w", err)
	}
	if current.Status == domain.ReviewDeleted {
		// Deleted is terminal and invisible to normal read paths.
		return nil, fmt.Errorf("flag review: %w", domain.ErrReviewNotFound)
	}

	// A hidden review keeps its status; the count still increments because
	// each flag is a distinct signal.
	newStatus := domain.ReviewFlagged
	if current.Status == domain.ReviewHidden {
		newStatus = domain.ReviewHidden
	}

	flagged, err := s.reviews.IncrementFlag(ctx, in.ReviewID, newStatus)
	if err != nil {
		return nil, fmt.Errorf("flag review: %w", err)
	}

	s.recordAudit(ctx, in.FlaggedBy, domain.AuditActionFlag, flagged.ID, in.Reason)

	if flagged.FlaggedCount >= domain.AutoHideThreshold && flagged.Status != domain.ReviewHidden {
		if err := s.reviews.SetStatus(ctx, flagged.ID, domain.ReviewHidden); err != nil {
			return nil, fmt.Errorf("flag review: auto-hide: %w", err)
		}
		flagged.Status = domain.ReviewHidden
		s.log.Info().
			Int64("review_id", flagged.ID).
			Int("flagged_count", flagged.FlaggedCount).
			Msg("review auto-hidden")
		s.recordAudit(ctx, in.FlaggedBy, domain.AuditActionAutoHide, flagged.ID,
			fmt.Sprintf("flagged_count=%d", flagged.FlaggedCount))
		// Hiding removes the review from the visible set.
		s.recompute(ctx, flagged.ClientID)
	}

	return flagged, nil
}

// UpdateReview applies a reviewer edit or moderator correction. Allowed for
// the review's author or an elevated role; edits never change status. Callers
// without access get the same not-found answer as a missing id, so the
// endpoint cannot be used to enumerate review ids.
func (s *moderationService) UpdateReview(ctx context.Context, in ports.UpdateReviewInput) (*domain.Review, error) {
	current, err := s.reviews.FindByID(ctx, in.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	if current.Status == domain.ReviewDeleted {
		// Deleted is terminal and invisible to normal read paths.
		return nil, fmt.Errorf("update review: %w", domain.ErrReviewNotFound)
	}
	if current.ReviewerID != in.UpdatedBy && !domain.Elevated(in.Role) {
		return nil, fmt.Errorf("update review: %w", domain.ErrReviewNotFound)
	}
	if in.Update.Rating != nil && !domain.ValidRating(*in.Update.Rating) {
		return nil, domain.ErrInvalidRating
	}

	updated, err := s.reviews.Update(ctx, in.ReviewID, in.Update)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	s.recordAudit(ctx, in.UpdatedBy, domain.AuditActionUpdate, updated.ID, "")

	if in.Update.Rating != nil && *in.Update.Rating != current.Rating {
		s.recompute(ctx, updated.ClientID)
	}
	return updated, nil
}

// DeleteReview soft-deletes a review. Deleted is terminal. Removing the
// review from the visible set changes the average, so recompute always runs.
// As with UpdateReview, callers without access see not-found.
func (s *moderationService) DeleteReview(ctx context.Context, in ports.DeleteReviewInput) error {
	current, err := s.reviews.FindByID(ctx, in.ReviewID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if current.ReviewerID != in.DeletedBy && !domain.Elevated(in.Role) {
		return fmt.Errorf("delete review: %w", domain.ErrReviewNotFound)
	}
	if !current.Status.CanTransitionTo(domain.ReviewDeleted) {
		return fmt.Errorf("delete review: %w", domain.ErrReviewNotFound)
	}

	if err := s.reviews.SetStatus(ctx, in.ReviewID, domain.ReviewDeleted); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	s.log.Info().
		Int64("review_id", in.ReviewID).
		Int64("deleted_by", in.DeletedBy).
		Msg("review deleted")

	s.recordAudit(ctx, in.DeletedBy, domain.AuditActionDelete, in.ReviewID, "")
	s.recompute(ctx, current.ClientID)
	return nil
}

// recompute triggers the trust aggregator synchronously. A failure here does
// not fail the ledger write that triggered it: the aggregate is derived and
// the next mutation (or the repair sweep) converges it.
func (s *moderationService) recompute(ctx context.Context, clientID int64) {
	if _, err := s.recomputer.RecomputeClientStats(ctx, clientID); err != nil {
		s.log.Warn().Err(err).Int64("client_id", clientID).Msg("stats recompute failed")
	}
}

// recordAudit appends an audit entry (non-fatal on failure).
func (s *moderationService) recordAudit(ctx context.Context, actorID int64, action string, reviewID int64, details string) {
	entry := &domain.AuditEntry{
		ActorID:    actorID,
		ActionType: action,
		TargetType: "review",
		TargetID:   reviewID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Int64("review_id", reviewID).Msg("failed to append audit entry")
	}
}
