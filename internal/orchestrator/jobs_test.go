package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/lock"
	"github.com/shaiso/sortie/internal/repo"
)

// --- Фейковое хранилище событий ---

type fakeEventStore struct {
	mu         sync.Mutex
	toStart    []domain.Event
	toConclude []domain.Event
	byID       map[uuid.UUID]*domain.Event
	failUpdate map[uuid.UUID]error
	updates    []uuid.UUID
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		byID:       make(map[uuid.UUID]*domain.Event),
		failUpdate: make(map[uuid.UUID]error),
	}
}

func (s *fakeEventStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *ev
	return &copied, nil
}

func (s *fakeEventStore) ListToStart(_ context.Context, _ time.Time, limit int) ([]domain.Event, error) {
	return s.take(s.toStart, limit), nil
}

func (s *fakeEventStore) ListToConclude(_ context.Context, _ time.Time, limit int) ([]domain.Event, error) {
	return s.take(s.toConclude, limit), nil
}

func (s *fakeEventStore) take(events []domain.Event, limit int) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > len(events) {
		limit = len(events)
	}
	return append([]domain.Event(nil), events[:limit]...)
}

func (s *fakeEventStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failUpdate[id]; err != nil {
		return err
	}
	ev, ok := s.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	ev.Status = status
	s.updates = append(s.updates, id)
	return nil
}

func (s *fakeEventStore) status(t *testing.T, id uuid.UUID) domain.EventStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.byID[id]
	if !ok {
		t.Fatalf("event %s not in store", id)
	}
	return ev.Status
}

// seed кладёт событие в хранилище и возвращает его копию для списков.
func (s *fakeEventStore) seed(name string, status domain.EventStatus) domain.Event {
	ev := domain.Event{
		ID:      uuid.New(),
		Name:    name,
		StartAt: time.Now().Add(-5 * time.Minute),
		EndAt:   time.Now().Add(2 * time.Hour),
		Status:  status,
	}
	s.mu.Lock()
	stored := ev
	s.byID[ev.ID] = &stored
	s.mu.Unlock()
	return ev
}

func newTransitionConfig(store *fakeEventStore) (TransitionConfig, *lock.MemoryLocker) {
	locker := lock.NewMemoryLocker()
	cfg := TransitionConfig{
		Events: store,
		Locker: locker,
		Logger: testLogger(),
	}
	return cfg, locker
}

// --- Тесты переходов ---

func TestStartedJob_MovesDueEvents(t *testing.T) {
	store := newFakeEventStore()
	first := store.seed("Operation Dawn Patrol", domain.StatusScheduled)
	second := store.seed("Operation Night Watch", domain.StatusScheduled)
	store.toStart = []domain.Event{first, second}

	cfg, _ := newTransitionConfig(store)
	job := NewStartedJob(cfg)

	if got := job.Name(); got != "starts" {
		t.Errorf("job name = %q, want starts", got)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := store.status(t, first.ID); got != domain.StatusInProgress {
		t.Errorf("first event status = %s, want IN_PROGRESS", got)
	}
	if got := store.status(t, second.ID); got != domain.StatusInProgress {
		t.Errorf("second event status = %s, want IN_PROGRESS", got)
	}
}

func TestConcludedJob_MovesEndedEvents(t *testing.T) {
	store := newFakeEventStore()
	ev := store.seed("Operation Dawn Patrol", domain.StatusInProgress)
	store.toConclude = []domain.Event{ev}

	cfg, _ := newTransitionConfig(store)
	job := NewConcludedJob(cfg)

	if got := job.Name(); got != "conclusions" {
		t.Errorf("job name = %q, want conclusions", got)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := store.status(t, ev.ID); got != domain.StatusConcluded {
		t.Errorf("event status = %s, want CONCLUDED", got)
	}
}

func TestTransition_SkipsCancelledEvent(t *testing.T) {
	store := newFakeEventStore()
	ev := store.seed("Operation Dawn Patrol", domain.StatusScheduled)

	// Список вернул событие, но к моменту обработки его отменили
	listed := ev
	store.toStart = []domain.Event{listed}
	store.byID[ev.ID].Status = domain.StatusCancelled

	cfg, _ := newTransitionConfig(store)
	if err := NewStartedJob(cfg).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := store.status(t, ev.ID); got != domain.StatusCancelled {
		t.Errorf("event status = %s, want CANCELLED untouched", got)
	}
	if len(store.updates) != 0 {
		t.Errorf("updates = %v, want none", store.updates)
	}
}

func TestTransition_SkipsDeletedEvent(t *testing.T) {
	store := newFakeEventStore()
	ghost := domain.Event{
		ID:     uuid.New(),
		Name:   "Operation Dawn Patrol",
		Status: domain.StatusScheduled,
	}
	store.toStart = []domain.Event{ghost}

	cfg, _ := newTransitionConfig(store)
	if err := NewStartedJob(cfg).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(store.updates) != 0 {
		t.Errorf("updates = %v, want none", store.updates)
	}
}

func TestTransition_LockedEventSkipped(t *testing.T) {
	store := newFakeEventStore()
	ev := store.seed("Operation Dawn Patrol", domain.StatusScheduled)
	store.toStart = []domain.Event{ev}

	cfg, locker := newTransitionConfig(store)
	job := NewStartedJob(cfg)

	lease, err := locker.TryAcquire(context.Background(), lock.KeyFor(ev.ID))
	if err != nil {
		t.Fatalf("pre-acquire lock: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := store.status(t, ev.ID); got != domain.StatusScheduled {
		t.Errorf("locked event status = %s, want SCHEDULED untouched", got)
	}

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run after release failed: %v", err)
	}
	if got := store.status(t, ev.ID); got != domain.StatusInProgress {
		t.Errorf("event status = %s, want IN_PROGRESS", got)
	}
}

func TestTransition_ContinuesAfterFailure(t *testing.T) {
	store := newFakeEventStore()
	broken := store.seed("Operation Dawn Patrol", domain.StatusScheduled)
	healthy := store.seed("Operation Night Watch", domain.StatusScheduled)
	store.toStart = []domain.Event{broken, healthy}
	store.failUpdate[broken.ID] = errors.New("db down")

	cfg, _ := newTransitionConfig(store)
	err := NewStartedJob(cfg).Run(context.Background())
	if err == nil {
		t.Fatal("expected error for broken event")
	}
	if !strings.Contains(err.Error(), "db down") {
		t.Errorf("error = %q, want db down", err)
	}

	if got := store.status(t, healthy.ID); got != domain.StatusInProgress {
		t.Errorf("healthy event status = %s, want IN_PROGRESS", got)
	}
}

// --- Тесты TickJob ---

type fakeTicker struct {
	ticks int
	err   error
}

func (f *fakeTicker) Tick(context.Context) error {
	f.ticks++
	return f.err
}

func TestTickJob_DelegatesToTicker(t *testing.T) {
	ticker := &fakeTicker{}
	job := NewTickJob("publications", ticker)

	if got := job.Name(); got != "publications" {
		t.Errorf("job name = %q, want publications", got)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ticker.ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticker.ticks)
	}

	ticker.err = errors.New("tick failed")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected ticker error to propagate")
	}
}
