package enhance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"photoenhance/internal/domain"
	"photoenhance/internal/providers/genai"
)

var owner = Identity{UserID: ownerID}

func TestEnhanceSuccessChargesOnce(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)

	res, err := f.orch.Enhance(context.Background(), photoID, owner)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if res.Status != domain.PhotoStatusCompleted || res.EnhancedLocation == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusCompleted || got.Enhanced() != res.EnhancedLocation {
		t.Fatalf("photo not completed: %+v", got)
	}
	if got.LastError != nil {
		t.Fatalf("lastError should be cleared, got %q", got.ErrorText())
	}
	if bal := f.ledger.balance(ownerID); bal != 0 {
		t.Fatalf("balance = %d, want 0", bal)
	}
}

func TestEnhanceCompletedIsConflictWithoutSideEffects(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 2, time.Second)
	if _, err := f.orch.Enhance(context.Background(), photoID, owner); err != nil {
		t.Fatalf("first Enhance: %v", err)
	}
	gets, aiCalls := f.storage.gets.Load(), f.ai.calls.Load()

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Enhance err = %v, want conflict", err)
	}
	if f.storage.gets.Load() != gets || f.ai.calls.Load() != aiCalls {
		t.Fatal("conflict must not touch storage or the AI service")
	}
	if bal := f.ledger.balance(ownerID); bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}
}

func TestEnhanceProcessingIsConflict(t *testing.T) {
	f := newFixture(domain.PhotoStatusProcessing, 1, time.Second)

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if f.ai.calls.Load() != 0 || f.storage.gets.Load() != 0 {
		t.Fatal("conflict must not call collaborators")
	}
	if got := f.photos.get(photoID); got.Status != domain.PhotoStatusProcessing {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestEnhanceNoImageProducedFails(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	f.ai.fn = func(ctx context.Context) (*genai.EnhancedImage, error) {
		return nil, genai.ErrNoImageProduced
	}

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if !errors.Is(err, domain.ErrAIService) {
		t.Fatalf("err = %v, want ai_service", err)
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusFailed || got.ErrorText() != domain.MsgNoImageProduced {
		t.Fatalf("photo = %+v", got)
	}
	if got.EnhancedLocation != nil {
		t.Fatal("failed photo must not carry an enhanced location")
	}
	if bal := f.ledger.balance(ownerID); bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}
	if f.storage.puts.Load() != 0 {
		t.Fatal("nothing should be written when no image was produced")
	}
}

func TestEnhanceTimeoutFailsWithinBound(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, 50*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	f.ai.fn = func(ctx context.Context) (*genai.EnhancedImage, error) {
		// Ignores ctx.
		<-release
		return nil, errors.New("late")
	}

	start := time.Now()
	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Enhance took %s", elapsed)
	}
	if !errors.Is(err, domain.ErrAIService) {
		t.Fatalf("err = %v, want ai_service", err)
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusFailed || got.ErrorText() != domain.MsgAITimeout {
		t.Fatalf("photo = %+v", got)
	}
}

func TestEnhanceCallerCancelStillRecordsFailure(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	f.ai.fn = func(aiCtx context.Context) (*genai.EnhancedImage, error) {
		cancel()
		<-aiCtx.Done()
		return nil, aiCtx.Err()
	}

	if _, err := f.orch.Enhance(ctx, photoID, owner); err == nil {
		t.Fatal("expected error")
	}
	if got := f.photos.get(photoID); got.Status != domain.PhotoStatusFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
}

func TestEnhanceValidationFailure(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	f.validator.ok = false

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusFailed || got.ErrorText() != domain.MsgResultNotAccessible {
		t.Fatalf("photo = %+v", got)
	}
	if got.EnhancedLocation != nil {
		t.Fatal("enhanced location must stay absent")
	}
	if bal := f.ledger.balance(ownerID); bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}
}

func TestEnhanceStorageWriteFailure(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	f.storage.putErr = domain.NewPipelineError(domain.KindStorageUnavailable, domain.MsgStorageWriteFailed, errors.New("disk full"))

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want storage_unavailable", err)
	}
	if got := f.photos.get(photoID); got.ErrorText() != domain.MsgStorageWriteFailed {
		t.Fatalf("lastError = %q", got.ErrorText())
	}
}

func TestEnhanceInsufficientCredits(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 0, time.Second)

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want insufficient_credits", err)
	}
	if f.ai.calls.Load() != 0 {
		t.Fatal("AI must not be called without credits")
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusFailed || got.ErrorText() != domain.MsgInsufficientCredits {
		t.Fatalf("photo = %+v", got)
	}
}

func TestEnhancePrivilegedBalanceUnchanged(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 0, time.Second)
	f.ledger.privileged[ownerID] = true

	if _, err := f.orch.Enhance(context.Background(), photoID, owner); err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if bal := f.ledger.balance(ownerID); bal != 0 {
		t.Fatalf("balance = %d, want unchanged 0", bal)
	}
}

func TestEnhanceRetryAfterFailuresChargesOnce(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 3, time.Second)
	failures := 2
	f.ai.fn = func(ctx context.Context) (*genai.EnhancedImage, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("upstream 500")
		}
		return &genai.EnhancedImage{Data: []byte("ok"), MIMEType: "image/jpeg"}, nil
	}

	for i := 0; i < 2; i++ {
		if _, err := f.orch.Enhance(context.Background(), photoID, owner); err == nil {
			t.Fatalf("attempt %d: expected failure", i+1)
		}
		if got := f.photos.get(photoID); got.ErrorText() != domain.MsgAIFailure {
			t.Fatalf("attempt %d lastError = %q", i+1, got.ErrorText())
		}
	}
	res, err := f.orch.Enhance(context.Background(), photoID, owner)
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if res.Attempt != 3 {
		t.Fatalf("attempt = %d, want 3", res.Attempt)
	}
	if bal := f.ledger.balance(ownerID); bal != 2 {
		t.Fatalf("balance = %d, want 2", bal)
	}
}

func TestEnhanceCompleteFailureRefunds(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	f.photos.completeErr = errors.New("connection reset")

	if _, err := f.orch.Enhance(context.Background(), photoID, owner); err == nil {
		t.Fatal("expected error")
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusFailed || got.ErrorText() != domain.MsgPersistFailed {
		t.Fatalf("photo = %+v", got)
	}
	if bal := f.ledger.balance(ownerID); bal != 1 {
		t.Fatalf("balance = %d, want refunded 1", bal)
	}
}

func TestEnhanceCompleteConflictReportsPersistFailure(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	f.photos.completeErr = fmt.Errorf("complete %s: %w", photoID, domain.ErrConflict)

	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	var pe *domain.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want pipeline error", err)
	}
	if pe.Kind != domain.KindStorageUnavailable || pe.Message != domain.MsgPersistFailed {
		t.Fatalf("kind=%s message=%q", pe.Kind, pe.Message)
	}
	if got := f.photos.get(photoID); got.ErrorText() != domain.MsgPersistFailed {
		t.Fatalf("lastError = %q", got.ErrorText())
	}
	if bal := f.ledger.balance(ownerID); bal != 1 {
		t.Fatalf("balance = %d, want refunded 1", bal)
	}
}

func TestEnhanceAttemptBudgetCoversStorage(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)
	f.storage.slowGet = true
	f.orch = NewOrchestrator(Deps{
		Photos:    f.photos,
		Storage:   f.storage,
		AI:        f.ai,
		Validator: f.validator,
		Ledger:    f.ledger,
	}, Options{Timeout: 20 * time.Millisecond, AttemptTimeout: 50 * time.Millisecond, FinalizeTimeout: time.Second})

	start := time.Now()
	_, err := f.orch.Enhance(context.Background(), photoID, owner)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Enhance took %s", elapsed)
	}
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want storage_unavailable", err)
	}
	got := f.photos.get(photoID)
	if got.Status != domain.PhotoStatusFailed || got.ErrorText() != domain.MsgStorageReadFailed {
		t.Fatalf("photo = %+v", got)
	}
	if f.ai.calls.Load() != 0 {
		t.Fatal("AI must not be called without the original")
	}
	if bal := f.ledger.balance(ownerID); bal != 1 {
		t.Fatalf("balance = %d, want 1", bal)
	}
}

func TestEnhanceOwnership(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 1, time.Second)

	if _, err := f.orch.Enhance(context.Background(), photoID, Identity{UserID: "intruder"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if _, err := f.orch.Enhance(context.Background(), photoID, Identity{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if _, err := f.orch.Enhance(context.Background(), "missing", owner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if got := f.photos.get(photoID); got.Status != domain.PhotoStatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
	if _, err := f.orch.Enhance(context.Background(), photoID, Identity{Internal: true}); err != nil {
		t.Fatalf("internal caller: %v", err)
	}
}

func TestEnhanceConcurrentCallsSingleWinner(t *testing.T) {
	f := newFixture(domain.PhotoStatusPending, 5, time.Second)
	gate := make(chan struct{})
	f.ai.fn = func(ctx context.Context) (*genai.EnhancedImage, error) {
		<-gate
		return &genai.EnhancedImage{Data: []byte("ok"), MIMEType: "image/png"}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Enhance(context.Background(), photoID, owner)
			errs <- err
		}()
	}
	// Let the losers observe PROCESSING before the winner finishes.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != callers-1 {
		t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
	}
	if f.ai.calls.Load() != 1 {
		t.Fatalf("AI calls = %d, want 1", f.ai.calls.Load())
	}
	if bal := f.ledger.balance(ownerID); bal != 4 {
		t.Fatalf("balance = %d, want 4", bal)
	}
}
