package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubReviewRepo struct {
	reviews map[int64]*domain.Review
	nextID  int64

	insertErr    error
	setStatusErr error
}

func newStubReviewRepo() *stubReviewRepo {
	return &stubReviewRepo{reviews: make(map[int64]*domain.Review)}
}

func (r *stubReviewRepo) Insert(_ context.Context, review *domain.Review) (*domain.Review, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	for _, existing := range r.reviews {
		if existing.ClientID == review.ClientID &&
			existing.ReviewerID == review.ReviewerID &&
			existing.Status.Live() {
			return nil, domain.ErrDuplicateReview
		}
	}
	r.nextID++
	clone := *review
	clone.ID = r.nextID
	r.reviews[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubReviewRepo) FindByID(_ context.Context, id int64) (*domain.Review, error) {
	review, ok := r.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	clone := *review
	return &clone, nil
}

func (r *stubReviewRepo) IncrementFlag(_ context.Context, id int64, status domain.ReviewStatus) (*domain.Review, error) {
	review, ok := r.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	review.FlaggedCount++
	review.Status = status
	clone := *review
	return &clone, nil
}

func (r *stubReviewRepo) SetStatus(_ context.Context, id int64, status domain.ReviewStatus) error {
	if r.setStatusErr != nil {
		return r.setStatusErr
	}
	review, ok := r.reviews[id]
	if !ok {
		return domain.ErrReviewNotFound
	}
	review.Status = status
	return nil
}

func (r *stubReviewRepo) Update(_ context.Context, id int64, upd ports.ReviewUpdate) (*domain.Review, error) {
	review, ok := r.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	if upd.Rating != nil {
		review.Rating = *upd.Rating
	}
	if upd.Comment != nil {
		review.Comment = *upd.Comment
	}
	review.UpdatedAt = time.Now().UTC()
	clone := *review
	return &clone, nil
}

func (r *stubReviewRepo) ActiveStats(_ context.Context, clientID int64) (*ports.ReviewStats, error) {
	var total int
	var sum float64
	for _, review := range r.reviews {
		if review.ClientID == clientID && review.CountsTowardStats() {
			total++
			sum += float64(review.Rating)
		}
	}
	stats := &ports.ReviewStats{Total: total}
	if total > 0 {
		avg := sum / float64(total)
		stats.AverageRating = &avg
	}
	return stats, nil
}

type stubClientRepo struct {
	clients    map[int64]*domain.ClientProfile
	nextID     int64
	aggregates map[int64]domain.ClientAggregate

	updateErr error
}

func newStubClientRepo(ids ...int64) *stubClientRepo {
	r := &stubClientRepo{
		clients:    make(map[int64]*domain.ClientProfile),
		aggregates: make(map[int64]domain.ClientAggregate),
	}
	for _, id := range ids {
		r.clients[id] = &domain.ClientProfile{ID: id, PhoneNumber: "+5215500000000"}
		if id > r.nextID {
			r.nextID = id
		}
	}
	return r
}

func (r *stubClientRepo) FindByID(_ context.Context, id int64) (*domain.ClientProfile, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubClientRepo) Create(_ context.Context, c *domain.ClientProfile) (*domain.ClientProfile, error) {
	for _, existing := range r.clients {
		if existing.PhoneNumber == c.PhoneNumber {
			return nil, domain.ErrDuplicatePhoneNumber
		}
	}
	r.nextID++
	clone := *c
	clone.ID = r.nextID
	r.clients[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubClientRepo) UpdateAggregate(_ context.Context, clientID int64, agg domain.ClientAggregate) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.clients[clientID]; !ok {
		return domain.ErrClientNotFound
	}
	r.aggregates[clientID] = agg
	r.clients[clientID].Aggregate = agg
	return nil
}

func (r *stubClientRepo) ListIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids, nil
}

type recordingAudit struct {
	entries []*domain.AuditEntry
	err     error
}

func (a *recordingAudit) Append(_ context.Context, entry *domain.AuditEntry) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAudit) actions() []string {
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.ActionType)
	}
	return out
}

type recordingRecomputer struct {
	calls []int64
	err   error
}

func (r *recordingRecomputer) RecomputeClientStats(_ context.Context, clientID int64) (*domain.ClientAggregate, error) {
	r.calls = append(r.calls, clientID)
	if r.err != nil {
		return nil, r.err
	}
	return &domain.ClientAggregate{}, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type moderationFixture struct {
	svc        ports.ModerationService
	reviews    *stubReviewRepo
	clients    *stubClientRepo
	audit      *recordingAudit
	recomputer *recordingRecomputer
}

func newModerationFixture(clientIDs ...int64) *moderationFixture {
	f := &moderationFixture{
		reviews:    newStubReviewRepo(),
		clients:    newStubClientRepo(clientIDs...),
		audit:      &recordingAudit{},
		recomputer: &recordingRecomputer{},
	}
	f.svc = NewModerationService(f.reviews, f.clients, f.audit, f.recomputer, discardLogger)
	return f
}

func (f *moderationFixture) submit(t *testing.T, clientID, reviewerID int64, rating int) *domain.Review {
	t.Helper()
	review, err := f.svc.SubmitReview(context.Background(), ports.SubmitReviewInput{
		ClientID:   clientID,
		ReviewerID: reviewerID,
		Rating:     rating,
		Comment:    "ok experience",
	})
	if err != nil {
		t.Fatalf("submit review: %v", err)
	}
	return review
}

// ---------------------------------------------------------------------------
// SubmitReview
// ---------------------------------------------------------------------------

func TestSubmitReview_Succeeds(t *testing.T) {
	f := newModerationFixture(10)

	review := f.submit(t, 10, 100, 4)

	if review.ID == 0 {
		t.Error("expected an assigned id")
	}
	if review.Status != domain.ReviewActive {
		t.Errorf("status = %s, want active", review.Status)
	}
	if len(f.recomputer.calls) != 1 || f.recomputer.calls[0] != 10 {
		t.Errorf("recompute calls = %v, want [10]", f.recomputer.calls)
	}
}

func TestSubmitReview_InvalidRating(t *testing.T) {
	f := newModerationFixture(10)

	for _, rating := range []int{0, 6, -1} {
		_, err := f.svc.SubmitReview(context.Background(), ports.SubmitReviewInput{
			ClientID: 10, ReviewerID: 100, Rating: rating,
		})
		if !errors.Is(err, domain.ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestSubmitReview_UnknownClient(t *testing.T) {
	f := newModerationFixture(10)

	_, err := f.svc.SubmitReview(context.Background(), ports.SubmitReviewInput{
		ClientID: 999, ReviewerID: 100, Rating: 4,
	})
	if !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestSubmitReview_DuplicatePair(t *testing.T) {
	f := newModerationFixture(10)
	f.submit(t, 10, 100, 4)

	_, err := f.svc.SubmitReview(context.Background(), ports.SubmitReviewInput{
		ClientID: 10, ReviewerID: 100, Rating: 2,
	})
	if !errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("expected ErrDuplicateReview, got %v", err)
	}
}

func TestSubmitReview_AllowedAfterDelete(t *testing.T) {
	f := newModerationFixture(10)
	first := f.submit(t, 10, 100, 4)

	err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: first.ID, DeletedBy: 100, Role: domain.RoleUser,
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The deleted review no longer blocks the pair.
	f.submit(t, 10, 100, 5)
}

// ---------------------------------------------------------------------------
// FlagReview
// ---------------------------------------------------------------------------

func TestFlagReview_BelowThresholdStaysFlagged(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	for i := 1; i <= domain.AutoHideThreshold-1; i++ {
		flagged, err := f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
			ReviewID: review.ID, FlaggedBy: int64(200 + i), Reason: "spam",
		})
		if err != nil {
			t.Fatalf("flag %d: %v", i, err)
		}
		if flagged.FlaggedCount != i {
			t.Errorf("flag %d: count = %d, want %d", i, flagged.FlaggedCount, i)
		}
		if flagged.Status != domain.ReviewFlagged {
			t.Errorf("flag %d: status = %s, want flagged", i, flagged.Status)
		}
	}
}

func TestFlagReview_ThresholdAutoHides(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	var last *domain.Review
	for i := 1; i <= domain.AutoHideThreshold; i++ {
		var err error
		last, err = f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
			ReviewID: review.ID, FlaggedBy: int64(200 + i), Reason: "spam",
		})
		if err != nil {
			t.Fatalf("flag %d: %v", i, err)
		}
	}

	if last.Status != domain.ReviewHidden {
		t.Errorf("status after %d flags = %s, want hidden", domain.AutoHideThreshold, last.Status)
	}

	// Flags below the threshold leave the visible set unchanged, so only the
	// submit and the hide recompute.
	if len(f.recomputer.calls) != 2 {
		t.Errorf("recompute calls = %v, want submit + auto-hide", f.recomputer.calls)
	}

	var sawAutoHide bool
	for _, action := range f.audit.actions() {
		if action == domain.AuditActionAutoHide {
			sawAutoHide = true
		}
	}
	if !sawAutoHide {
		t.Error("expected an auto-hide audit entry")
	}
}

func TestFlagReview_HiddenKeepsCounting(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	for i := 1; i <= domain.AutoHideThreshold+2; i++ {
		flagged, err := f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
			ReviewID: review.ID, FlaggedBy: int64(200 + i), Reason: "spam",
		})
		if err != nil {
			t.Fatalf("flag %d: %v", i, err)
		}
		if flagged.FlaggedCount != i {
			t.Errorf("flag %d: count = %d, want %d", i, flagged.FlaggedCount, i)
		}
		if i >= domain.AutoHideThreshold && flagged.Status != domain.ReviewHidden {
			t.Errorf("flag %d: status = %s, want hidden", i, flagged.Status)
		}
	}
}

func TestFlagReview_FlaggedStillCounted(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)
	f.submit(t, 10, 101, 2)

	if _, err := f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
		ReviewID: review.ID, FlaggedBy: 200, Reason: "spam",
	}); err != nil {
		t.Fatalf("flag: %v", err)
	}

	stats, err := f.reviews.ActiveStats(context.Background(), 10)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("flagged review dropped from stats: total = %d, want 2", stats.Total)
	}
	if stats.AverageRating == nil || *stats.AverageRating != 3.0 {
		t.Errorf("average = %v, want 3.0", stats.AverageRating)
	}

	// Once the threshold hides it, only the untouched review remains.
	for i := 2; i <= domain.AutoHideThreshold; i++ {
		if _, err := f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
			ReviewID: review.ID, FlaggedBy: int64(200 + i), Reason: "spam",
		}); err != nil {
			t.Fatalf("flag %d: %v", i, err)
		}
	}
	stats, err = f.reviews.ActiveStats(context.Background(), 10)
	if err != nil {
		t.Fatalf("stats after hide: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total after hide = %d, want 1", stats.Total)
	}
	if stats.AverageRating == nil || *stats.AverageRating != 2.0 {
		t.Errorf("average after hide = %v, want 2.0", stats.AverageRating)
	}
}

func TestFlagReview_DeletedReviewNotFound(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	if err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: review.ID, DeletedBy: 100, Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err := f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
		ReviewID: review.ID, FlaggedBy: 200, Reason: "spam",
	})
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound for deleted review, got %v", err)
	}
}

func TestFlagReview_MissingReview(t *testing.T) {
	f := newModerationFixture(10)

	_, err := f.svc.FlagReview(context.Background(), ports.FlagReviewInput{
		ReviewID: 404, FlaggedBy: 200,
	})
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// UpdateReview
// ---------------------------------------------------------------------------

func TestUpdateReview_AuthorCanEdit(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	newRating := 2
	updated, err := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  review.ID,
		UpdatedBy: 100,
		Role:      domain.RoleUser,
		Update:    ports.ReviewUpdate{Rating: &newRating},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Rating != 2 {
		t.Errorf("rating = %d, want 2", updated.Rating)
	}
	// Rating changed, so the aggregate is stale: submit + update recomputes.
	if len(f.recomputer.calls) != 2 {
		t.Errorf("recompute calls = %v, want 2", f.recomputer.calls)
	}
}

func TestUpdateReview_StrangerSeesNotFound(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	// A non-author gets the same answer as for a missing id, so the endpoint
	// cannot be used to probe which ids exist.
	comment := "edited"
	_, err := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  review.ID,
		UpdatedBy: 999,
		Role:      domain.RoleUser,
		Update:    ports.ReviewUpdate{Comment: &comment},
	})
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}

	_, missingErr := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  404,
		UpdatedBy: 999,
		Role:      domain.RoleUser,
		Update:    ports.ReviewUpdate{Comment: &comment},
	})
	if !errors.Is(missingErr, domain.ErrReviewNotFound) {
		t.Fatalf("missing id: expected ErrReviewNotFound, got %v", missingErr)
	}
}

func TestUpdateReview_DeletedReviewNotFound(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	if err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: review.ID, DeletedBy: 100, Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	callsAfterDelete := len(f.recomputer.calls)

	newRating := 1
	_, err := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  review.ID,
		UpdatedBy: 100,
		Role:      domain.RoleUser,
		Update:    ports.ReviewUpdate{Rating: &newRating},
	})
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound for deleted review, got %v", err)
	}
	if f.reviews.reviews[review.ID].Rating != 4 {
		t.Error("deleted review must not be edited")
	}
	if len(f.recomputer.calls) != callsAfterDelete {
		t.Error("rejected edit must not trigger a recompute")
	}
}

func TestUpdateReview_ModeratorCanEdit(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	comment := "moderated"
	_, err := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  review.ID,
		UpdatedBy: 999,
		Role:      domain.RoleManager,
		Update:    ports.ReviewUpdate{Comment: &comment},
	})
	if err != nil {
		t.Fatalf("manager edit: %v", err)
	}
}

func TestUpdateReview_CommentOnlySkipsRecompute(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)
	callsAfterSubmit := len(f.recomputer.calls)

	comment := "edited"
	if _, err := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  review.ID,
		UpdatedBy: 100,
		Role:      domain.RoleUser,
		Update:    ports.ReviewUpdate{Comment: &comment},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(f.recomputer.calls) != callsAfterSubmit {
		t.Error("comment-only edit must not trigger a recompute")
	}
}

func TestUpdateReview_InvalidRating(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	bad := 9
	_, err := f.svc.UpdateReview(context.Background(), ports.UpdateReviewInput{
		ReviewID:  review.ID,
		UpdatedBy: 100,
		Role:      domain.RoleUser,
		Update:    ports.ReviewUpdate{Rating: &bad},
	})
	if !errors.Is(err, domain.ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// DeleteReview
// ---------------------------------------------------------------------------

func TestDeleteReview_SoftDeletesAndRecomputes(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)
	callsAfterSubmit := len(f.recomputer.calls)

	if err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: review.ID, DeletedBy: 100, Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored := f.reviews.reviews[review.ID]
	if stored.Status != domain.ReviewDeleted {
		t.Errorf("status = %s, want deleted", stored.Status)
	}
	if len(f.recomputer.calls) != callsAfterSubmit+1 {
		t.Error("delete must trigger a recompute")
	}
}

func TestDeleteReview_StrangerSeesNotFound(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: review.ID, DeletedBy: 999, Role: domain.RoleUser,
	})
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
	if f.reviews.reviews[review.ID].Status != domain.ReviewActive {
		t.Error("review must remain untouched")
	}
}

func TestDeleteReview_AdminCanDelete(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	if err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: review.ID, DeletedBy: 999, Role: domain.RoleAdmin,
	}); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestDeleteReview_Twice(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)

	in := ports.DeleteReviewInput{ReviewID: review.ID, DeletedBy: 100, Role: domain.RoleUser}
	if err := f.svc.DeleteReview(context.Background(), in); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	err := f.svc.DeleteReview(context.Background(), in)
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("second delete: expected ErrReviewNotFound, got %v", err)
	}
}

func TestDeleteReview_RecomputeFailureDoesNotFailDelete(t *testing.T) {
	f := newModerationFixture(10)
	review := f.submit(t, 10, 100, 4)
	f.recomputer.err = errors.New("aggregate store down")

	if err := f.svc.DeleteReview(context.Background(), ports.DeleteReviewInput{
		ReviewID: review.ID, DeletedBy: 100, Role: domain.RoleUser,
	}); err != nil {
		t.Fatalf("delete must succeed despite recompute failure, got %v", err)
	}
}
