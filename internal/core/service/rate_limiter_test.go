package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clientcheck/trust-system/internal/core/domain"
	"github.com/clientcheck/trust-system/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub counter store
// ---------------------------------------------------------------------------

type stubCounterStore struct {
	mu      sync.Mutex
	windows map[string]*domain.RateWindow
	err     error // if set, Increment returns this error
}

func newStubCounterStore() *stubCounterStore {
	return &stubCounterStore{windows: make(map[string]*domain.RateWindow)}
}

// Increment mirrors the real store's conditional-insert-else-increment
// semantics: the mutex stands in for the unique live-window index.
func (s *stubCounterStore) Increment(_ context.Context, actorKey string, action domain.ActionType, cost int, now time.Time, windowLength time.Duration) (*domain.RateWindow, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := actorKey + "|" + string(action)
	w, ok := s.windows[key]
	if !ok || !now.Before(w.ExpiresAt) {
		w = &domain.RateWindow{
			ActorKey:    actorKey,
			ActionType:  action,
			WindowStart: now,
			ExpiresAt:   now.Add(windowLength),
		}
		s.windows[key] = w
	}
	w.Count += cost
	clone := *w
	return &clone, nil
}

func (s *stubCounterStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, w := range s.windows {
		if w.ExpiresAt.Before(now) {
			delete(s.windows, key)
			deleted++
		}
	}
	return deleted, nil
}

type nopAudit struct{}

func (nopAudit) Append(context.Context, *domain.AuditEntry) error { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var discardLogger = zerolog.Nop()

func newTestLimiter(store ports.CounterStore) *RateLimiter {
	return NewRateLimiter(store, StaticPolicyProvider{}, nopAudit{}, discardLogger)
}

func limitedRequest(userID int64, max int, window time.Duration) ports.RateLimitRequest {
	return ports.RateLimitRequest{
		Actor:      domain.Actor{UserID: userID},
		ActionType: domain.ActionCreateReview,
		Override:   &domain.ActionPolicy{MaxAttempts: max, WindowLength: window, FailMode: domain.FailClosed},
	}
}

// ---------------------------------------------------------------------------
// Check tests
// ---------------------------------------------------------------------------

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	limiter := newTestLimiter(newStubCounterStore())
	req := limitedRequest(1, 5, time.Minute)

	for i := 1; i <= 5; i++ {
		check, err := limiter.Check(context.Background(), req)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if !check.Allowed {
			t.Fatalf("call %d: expected allowed", i)
		}
		if want := 5 - i; check.Remaining != want {
			t.Errorf("call %d: remaining = %d, want %d", i, check.Remaining, want)
		}
		if check.TotalInWindow != i {
			t.Errorf("call %d: total = %d, want %d", i, check.TotalInWindow, i)
		}
	}

	check, err := limiter.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("6th call: unexpected error: %v", err)
	}
	if check.Allowed {
		t.Error("6th call within window must be denied")
	}
	if check.Remaining != 0 {
		t.Errorf("remaining after exhaustion = %d, want 0", check.Remaining)
	}
}

func TestRateLimiter_ResetAtEqualsExpiryWhenExhausted(t *testing.T) {
	store := newStubCounterStore()
	limiter := newTestLimiter(store)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return start }

	req := limitedRequest(1, 1, time.Minute)

	first, err := limiter.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	denied, err := limiter.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	want := start.Add(time.Minute)
	if !first.ResetAt.Equal(want) || !denied.ResetAt.Equal(want) {
		t.Errorf("reset_at = %v / %v, want %v (window expiry, even when exhausted)", first.ResetAt, denied.ResetAt, want)
	}
}

func TestRateLimiter_NewWindowAfterExpiry(t *testing.T) {
	store := newStubCounterStore()
	limiter := newTestLimiter(store)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter.now = func() time.Time { return now }

	req := limitedRequest(1, 2, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(context.Background(), req); err != nil {
			t.Fatalf("warmup call %d: %v", i, err)
		}
	}
	if check, _ := limiter.Check(context.Background(), req); check.Allowed {
		t.Fatal("third call inside window must be denied")
	}

	// Advance past the window: the next request opens a fresh counter.
	now = start.Add(time.Minute + time.Second)
	check, err := limiter.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("call after expiry: %v", err)
	}
	if !check.Allowed {
		t.Error("first call after window expiry must be admitted")
	}
	if check.TotalInWindow != 1 {
		t.Errorf("fresh window count = %d, want 1", check.TotalInWindow)
	}
}

func TestRateLimiter_InvalidActor(t *testing.T) {
	limiter := newTestLimiter(newStubCounterStore())

	_, err := limiter.Check(context.Background(), ports.RateLimitRequest{
		ActionType: domain.ActionSearchClient,
	})
	if !errors.Is(err, domain.ErrInvalidActor) {
		t.Fatalf("expected ErrInvalidActor, got %v", err)
	}

	_, err = limiter.Check(context.Background(), ports.RateLimitRequest{
		Actor:      domain.Actor{UserID: 1, ExternalID: 2},
		ActionType: domain.ActionSearchClient,
	})
	if !errors.Is(err, domain.ErrInvalidActor) {
		t.Fatalf("both identities set: expected ErrInvalidActor, got %v", err)
	}
}

func TestRateLimiter_UnknownAction(t *testing.T) {
	limiter := newTestLimiter(newStubCounterStore())

	_, err := limiter.Check(context.Background(), ports.RateLimitRequest{
		Actor:      domain.Actor{UserID: 1},
		ActionType: "no_such_action",
	})
	if !errors.Is(err, domain.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestRateLimiter_StoreError_FailClosed(t *testing.T) {
	store := newStubCounterStore()
	store.err = errors.New("connection refused")
	limiter := newTestLimiter(store)

	check, err := limiter.Check(context.Background(), limitedRequest(1, 5, time.Minute))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if check == nil || check.Allowed {
		t.Error("fail-closed action must be denied on store error")
	}
}

func TestRateLimiter_StoreError_FailOpen(t *testing.T) {
	store := newStubCounterStore()
	store.err = errors.New("connection refused")
	limiter := newTestLimiter(store)

	req := ports.RateLimitRequest{
		Actor:      domain.Actor{UserID: 1},
		ActionType: domain.ActionSearchClient,
		Override:   &domain.ActionPolicy{MaxAttempts: 5, WindowLength: time.Minute, FailMode: domain.FailOpen},
	}

	check, err := limiter.Check(context.Background(), req)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if check == nil || !check.Allowed {
		t.Error("fail-open action must be admitted on store error")
	}
}

func TestRateLimiter_SeparateActorsSeparateWindows(t *testing.T) {
	store := newStubCounterStore()
	limiter := newTestLimiter(store)

	a := limitedRequest(1, 1, time.Minute)
	b := limitedRequest(2, 1, time.Minute)

	if check, _ := limiter.Check(context.Background(), a); !check.Allowed {
		t.Fatal("actor 1 first call must be admitted")
	}
	if check, _ := limiter.Check(context.Background(), b); !check.Allowed {
		t.Fatal("actor 2 must not share actor 1's window")
	}
	if check, _ := limiter.Check(context.Background(), a); check.Allowed {
		t.Fatal("actor 1 second call must be denied")
	}
}

func TestRateLimiter_ConcurrentFirstCalls_OneWindow(t *testing.T) {
	store := newStubCounterStore()
	limiter := newTestLimiter(store)
	req := limitedRequest(7, 10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.Check(context.Background(), req); err != nil {
				t.Errorf("concurrent check: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(store.windows) != 1 {
		t.Fatalf("expected exactly one window row, got %d", len(store.windows))
	}
	for _, w := range store.windows {
		if w.Count != 2 {
			t.Errorf("window count = %d, want 2", w.Count)
		}
	}
}

// ---------------------------------------------------------------------------
// CheckAll tests
// ---------------------------------------------------------------------------

func TestRateLimiter_CheckAll_FailFast(t *testing.T) {
	limiter := newTestLimiter(newStubCounterStore())

	exhausted := limitedRequest(1, 1, time.Minute)
	if _, err := limiter.Check(context.Background(), exhausted); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	reqs := []ports.RateLimitRequest{
		limitedRequest(2, 5, time.Minute), // allowed
		exhausted,                         // denied: stops here
		limitedRequest(3, 5, time.Minute), // must never be evaluated
	}

	results, err := limiter.CheckAll(context.Background(), reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 partial results, got %d", len(results))
	}
	if !results[0].Allowed || results[1].Allowed {
		t.Errorf("results = %+v, want [allowed, denied]", results)
	}
}

func TestRateLimiter_CheckAll_ThirdRequestNotCharged(t *testing.T) {
	store := newStubCounterStore()
	limiter := newTestLimiter(store)

	exhausted := limitedRequest(1, 1, time.Minute)
	if _, err := limiter.Check(context.Background(), exhausted); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	_, err := limiter.CheckAll(context.Background(), []ports.RateLimitRequest{
		exhausted,
		limitedRequest(9, 5, time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second actor must have no window: evaluation stopped first.
	if _, ok := store.windows["user:9|create_review"]; ok {
		t.Error("request after a denial must not consume quota")
	}
}

func TestRateLimiter_CheckAll_CancelledContext(t *testing.T) {
	limiter := newTestLimiter(newStubCounterStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := limiter.CheckAll(ctx, []ports.RateLimitRequest{
		limitedRequest(1, 5, time.Minute),
	})
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(results) != 0 {
		t.Errorf("expected no results after cancellation, got %d", len(results))
	}
}

// ---------------------------------------------------------------------------
// Cleanup tests
// ---------------------------------------------------------------------------

func TestCounterStore_DeleteExpiredOnlyRemovesExpired(t *testing.T) {
	store := newStubCounterStore()
	limiter := newTestLimiter(store)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return start }

	if _, err := limiter.Check(context.Background(), limitedRequest(1, 5, time.Minute)); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if _, err := limiter.Check(context.Background(), limitedRequest(2, 5, time.Hour)); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	deleted, err := store.DeleteExpired(context.Background(), start.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if len(store.windows) != 1 {
		t.Errorf("remaining windows = %d, want 1", len(store.windows))
	}
}
