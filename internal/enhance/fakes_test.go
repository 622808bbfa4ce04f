package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"photoenhance/internal/domain"
	"photoenhance/internal/providers/genai"
)

type memPhotos struct {
	mu     sync.Mutex
	photos map[string]*domain.Photo
	// completeErr, when set, makes Complete fail once.
	completeErr error
}

func newMemPhotos(photos ...domain.Photo) *memPhotos {
	m := &memPhotos{photos: map[string]*domain.Photo{}}
	for i := range photos {
		p := photos[i]
		m.photos[p.ID] = &p
	}
	return m
}

func (m *memPhotos) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memPhotos) BeginProcessing(ctx context.Context, id string) (*domain.Photo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok || !p.Status.Eligible() {
		return nil, false, nil
	}
	p.Status = domain.PhotoStatusProcessing
	p.Attempts++
	clone := *p
	return &clone, true, nil
}

func (m *memPhotos) Complete(ctx context.Context, id, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		err := m.completeErr
		m.completeErr = nil
		return err
	}
	p, ok := m.photos[id]
	if !ok || p.Status != domain.PhotoStatusProcessing {
		return fmt.Errorf("complete %s: %w", id, domain.ErrConflict)
	}
	p.Status = domain.PhotoStatusCompleted
	p.EnhancedLocation = &location
	p.LastError = nil
	return nil
}

func (m *memPhotos) Fail(ctx context.Context, id, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok || p.Status != domain.PhotoStatusProcessing {
		return fmt.Errorf("fail %s: %w", id, domain.ErrConflict)
	}
	p.Status = domain.PhotoStatusFailed
	p.EnhancedLocation = nil
	p.LastError = &lastError
	return nil
}

func (m *memPhotos) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]domain.Photo, error) {
	return nil, nil
}

func (m *memPhotos) FailStale(ctx context.Context, olderThanMinutes int, lastError string) (int64, error) {
	return 0, nil
}

func (m *memPhotos) get(id string) domain.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.photos[id]
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	// slowGet makes Get wait for ctx before answering.
	slowGet bool
	gets    atomic.Int32
	puts    atomic.Int32
}

func newMemStorage(objects map[string][]byte) *memStorage {
	if objects == nil {
		objects = map[string][]byte{}
	}
	return &memStorage{objects: objects}
}

func (s *memStorage) Put(ctx context.Context, data []byte, suggestedName, contentType string) (string, error) {
	s.puts.Add(1)
	if s.putErr != nil {
		return "", s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := "mem://" + suggestedName
	s.objects[location] = data
	return location, nil
}

func (s *memStorage) Get(ctx context.Context, location string) ([]byte, error) {
	s.gets.Add(1)
	if s.slowGet {
		<-ctx.Done()
		return nil, domain.NewPipelineError(domain.KindStorageUnavailable, domain.MsgStorageReadFailed, ctx.Err())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[location]
	if !ok {
		return nil, domain.NewPipelineError(domain.KindStorageUnavailable, domain.MsgStorageReadFailed, errors.New("missing"))
	}
	return data, nil
}

func (s *memStorage) Exists(ctx context.Context, location string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects[location]) > 0, nil
}

func (s *memStorage) Backend() string { return "memory" }

type stubAI struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (*genai.EnhancedImage, error)
}

func (a *stubAI) Generate(ctx context.Context, imageBytes []byte, mimeType, instruction string) (*genai.EnhancedImage, error) {
	a.calls.Add(1)
	if a.fn == nil {
		return &genai.EnhancedImage{Data: []byte("enhanced"), MIMEType: "image/png"}, nil
	}
	return a.fn(ctx)
}

type stubValidator struct {
	ok    bool
	calls atomic.Int32
}

func (v *stubValidator) Validate(ctx context.Context, location string) bool {
	v.calls.Add(1)
	return v.ok && strings.TrimSpace(location) != ""
}

// memLedger mirrors the SQL ledger: charge is keyed by photo, privileged
// users are never debited.
type memLedger struct {
	mu         sync.Mutex
	balances   map[string]int
	privileged map[string]bool
	charged    map[string]string
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[string]int{}, privileged: map[string]bool{}, charged: map[string]string{}}
}

func (l *memLedger) CanCharge(ctx context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.privileged[userID] || l.balances[userID] > 0, nil
}

func (l *memLedger) Charge(ctx context.Context, userID, photoID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.privileged[userID] {
		return nil
	}
	if _, ok := l.charged[photoID]; ok {
		return nil
	}
	if l.balances[userID] <= 0 {
		return domain.NewPipelineError(domain.KindInsufficientCredits, domain.MsgInsufficientCredits, nil)
	}
	l.balances[userID]--
	l.charged[photoID] = userID
	return nil
}

func (l *memLedger) Refund(ctx context.Context, userID, photoID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if owner, ok := l.charged[photoID]; ok {
		delete(l.charged, photoID)
		l.balances[owner]++
	}
	return nil
}

func (l *memLedger) balance(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

type fixture struct {
	photos    *memPhotos
	storage   *memStorage
	ai        *stubAI
	validator *stubValidator
	ledger    *memLedger
	orch      *Orchestrator
}

const (
	ownerID  = "user-1"
	photoID  = "photo-1"
	original = "mem://originals/photo-1.jpg"
)

func newFixture(status domain.PhotoStatus, credits int, timeout time.Duration) *fixture {
	f := &fixture{
		photos: newMemPhotos(domain.Photo{
			ID:               photoID,
			OwnerID:          ownerID,
			OriginalLocation: original,
			Status:           status,
		}),
		storage:   newMemStorage(map[string][]byte{original: []byte("\xff\xd8\xff\xe0original")}),
		ai:        &stubAI{},
		validator: &stubValidator{ok: true},
		ledger:    newMemLedger(),
	}
	f.ledger.balances[ownerID] = credits
	f.orch = NewOrchestrator(Deps{
		Photos:    f.photos,
		Storage:   f.storage,
		AI:        f.ai,
		Validator: f.validator,
		Ledger:    f.ledger,
	}, Options{Timeout: timeout, FinalizeTimeout: time.Second})
	return f
}
