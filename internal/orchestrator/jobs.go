package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/lock"
	"github.com/shaiso/sortie/internal/repo"
	"github.com/shaiso/sortie/internal/telemetry"
)

// Ticker — компонент с периодическим проходом по своей части
// расписания (процессоры публикаций и напоминаний).
type Ticker interface {
	Tick(ctx context.Context) error
}

// TickJob адаптирует Ticker к интерфейсу Job.
type TickJob struct {
	name   string
	ticker Ticker
}

// NewTickJob создаёт задание, выполняющее Tick компонента.
func NewTickJob(name string, ticker Ticker) *TickJob {
	return &TickJob{name: name, ticker: ticker}
}

// Name возвращает имя задания.
func (j *TickJob) Name() string { return j.name }

// Run выполняет один тик.
func (j *TickJob) Run(ctx context.Context) error { return j.ticker.Tick(ctx) }

// EventStore — операции жизненного цикла событий, нужные заданиям
// перехода статусов.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListToStart(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	ListToConclude(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error
}

// TransitionConfig — зависимости заданий перехода статусов.
type TransitionConfig struct {
	Events    EventStore
	Locker    lock.Locker
	Logger    *slog.Logger
	BatchSize int // событий за один проход (default: 100)
}

// TransitionJob переводит наступившие события в следующий статус
// жизненного цикла.
type TransitionJob struct {
	name    string
	list    func(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	from    domain.EventStatus
	to      domain.EventStatus
	message string

	events EventStore
	locker lock.Locker
	logger *slog.Logger
	batch  int
}

// NewStartedJob создаёт задание "starts": события, чьё время начала
// наступило, переходят SCHEDULED → IN_PROGRESS.
func NewStartedJob(cfg TransitionConfig) *TransitionJob {
	j := newTransition(cfg)
	j.name = "starts"
	j.list = cfg.Events.ListToStart
	j.from = domain.StatusScheduled
	j.to = domain.StatusInProgress
	j.message = "event started"
	return j
}

// NewConcludedJob создаёт задание "conclusions": события, чьё время
// окончания прошло, переходят IN_PROGRESS → CONCLUDED. Напоминания
// и таймеры отсчёта завершённого события отмирают сами: их процессоры
// пропускают неактивные события.
func NewConcludedJob(cfg TransitionConfig) *TransitionJob {
	j := newTransition(cfg)
	j.name = "conclusions"
	j.list = cfg.Events.ListToConclude
	j.from = domain.StatusInProgress
	j.to = domain.StatusConcluded
	j.message = "event concluded"
	return j
}

func newTransition(cfg TransitionConfig) *TransitionJob {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TransitionJob{
		events: cfg.Events,
		locker: cfg.Locker,
		logger: logger,
		batch:  batch,
	}
}

// Name возвращает имя задания.
func (t *TransitionJob) Name() string { return t.name }

// Run выполняет один проход: находит наступившие события и переводит
// их в целевой статус. Ошибка одного события не блокирует остальные.
func (t *TransitionJob) Run(ctx context.Context) error {
	now := time.Now()

	events, err := t.list(ctx, now, t.batch)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for i := range events {
		ev := &events[i]

		moved, err := t.transition(ctx, ev.ID)
		if err != nil {
			if errors.Is(err, lock.ErrBusy) {
				telemetry.LockContention.Inc()
				t.logger.Debug("event held by another worker", "event_id", ev.ID)
				continue
			}
			t.logger.Error("failed to transition event",
				"event_id", ev.ID,
				"event_name", ev.Name,
				"to", t.to,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		if moved {
			t.logger.Info(t.message,
				"event_id", ev.ID,
				"event_name", ev.Name,
			)
		}
	}

	return errors.Join(errs...)
}

// transition переводит одно событие под блокировкой.
// Возвращает false, если переход не понадобился.
func (t *TransitionJob) transition(ctx context.Context, id uuid.UUID) (bool, error) {
	lease, err := t.locker.TryAcquire(ctx, lock.KeyFor(id))
	if err != nil {
		return false, err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			t.logger.Warn("failed to release lock", "event_id", id, "error", err)
		}
	}()

	// Перечитываем под блокировкой: событие могли отменить
	// или перевести параллельно
	fresh, err := t.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			t.logger.Debug("event gone before transition", "event_id", id)
			return false, nil
		}
		return false, fmt.Errorf("get event: %w", err)
	}
	if fresh.Status != t.from {
		t.logger.Debug("event status changed, skipping transition",
			"event_id", id,
			"status", fresh.Status,
		)
		return false, nil
	}

	if err := t.events.UpdateStatus(ctx, id, t.to); err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return true, nil
}
