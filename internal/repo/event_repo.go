package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/sortie/internal/domain"
)

// EventRepo — репозиторий для работы с events.
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create создаёт новое событие вместе со списком участвующих эскадрилий.
func (r *EventRepo) Create(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (id, name, description, start_at, end_at, status,
		                    timezone, use_threads,
		                    notify_accepted, notify_tentative, notify_declined, notify_no_response,
		                    first_reminder_value, first_reminder_unit,
		                    second_reminder_value, second_reminder_unit,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	firstVal, firstUnit := reminderColumns(event.Settings.FirstReminder)
	secondVal, secondUnit := reminderColumns(event.Settings.SecondReminder)

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.StartAt,
		event.EndAt,
		event.Status,
		event.Settings.Timezone,
		event.Settings.UseThreads,
		event.Settings.NotifyAccepted,
		event.Settings.NotifyTentative,
		event.Settings.NotifyDeclined,
		event.Settings.NotifyNoResponse,
		firstVal,
		firstUnit,
		secondVal,
		secondUnit,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert event: %w", err)
	}

	for i, sqID := range event.SquadronIDs {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO event_squadrons (event_id, squadron_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (event_id, squadron_id) DO NOTHING
		`, event.ID, sqID, i)
		if err != nil {
			return fmt.Errorf("insert event squadron: %w", err)
		}
	}
	return nil
}

// GetByID возвращает событие по ID вместе с эскадрильями и публикациями.
func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `
		SELECT id, name, description, start_at, end_at, status,
		       timezone, use_threads,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       first_reminder_value, first_reminder_unit,
		       second_reminder_value, second_reminder_unit,
		       created_at, updated_at
		FROM events
		WHERE id = $1
	`
	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List возвращает список событий с фильтрацией по статусу.
// Связанные публикации и эскадрильи не загружаются.
func (r *EventRepo) List(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	query := `
		SELECT id, name, description, start_at, end_at, status,
		       timezone, use_threads,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       first_reminder_value, first_reminder_unit,
		       second_reminder_value, second_reminder_unit,
		       created_at, updated_at
		FROM events
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY start_at ASC
		LIMIT $2 OFFSET $3
	`
	var status *string
	if filter.Status != "" {
		s := filter.Status.String()
		status = &s
	}
	rows, err := r.pool.Query(ctx, query, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListToStart возвращает запланированные события, чьё время начала наступило.
func (r *EventRepo) ListToStart(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	query := `
		SELECT id, name, description, start_at, end_at, status,
		       timezone, use_threads,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       first_reminder_value, first_reminder_unit,
		       second_reminder_value, second_reminder_unit,
		       created_at, updated_at
		FROM events
		WHERE status = 'SCHEDULED' AND start_at <= $1
		ORDER BY start_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list events to start: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListToConclude возвращает идущие события, чьё время окончания наступило.
func (r *EventRepo) ListToConclude(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	query := `
		SELECT id, name, description, start_at, end_at, status,
		       timezone, use_threads,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       first_reminder_value, first_reminder_unit,
		       second_reminder_value, second_reminder_unit,
		       created_at, updated_at
		FROM events
		WHERE status = 'IN_PROGRESS' AND end_at <= $1
		ORDER BY end_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list events to conclude: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListActive возвращает незавершённые опубликованные события вместе
// с публикациями. Используется при старте для восстановления таймеров
// обратного отсчёта.
func (r *EventRepo) ListActive(ctx context.Context) ([]domain.Event, error) {
	query := `
		SELECT id, name, description, start_at, end_at, status,
		       timezone, use_threads,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       first_reminder_value, first_reminder_unit,
		       second_reminder_value, second_reminder_unit,
		       created_at, updated_at
		FROM events
		WHERE status IN ('SCHEDULED', 'IN_PROGRESS')
		ORDER BY start_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	defer rows.Close()

	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if err := r.loadRelations(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// CountActive возвращает число незавершённых событий.
func (r *EventRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM events WHERE status IN ('SCHEDULED', 'IN_PROGRESS')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active events: %w", err)
	}
	return n, nil
}

// UpdateStatus переводит событие в новый статус.
func (r *EventRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет событие. Публикации, расписания и напоминания
// удаляются каскадно.
func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// EventFilter — параметры фильтрации событий.
type EventFilter struct {
	Status domain.EventStatus
	Limit  int
	Offset int
}

// loadRelations дозагружает эскадрильи и публикации события.
func (r *EventRepo) loadRelations(ctx context.Context, event *domain.Event) error {
	rows, err := r.pool.Query(ctx, `
		SELECT squadron_id FROM event_squadrons
		WHERE event_id = $1
		ORDER BY position ASC
	`, event.ID)
	if err != nil {
		return fmt.Errorf("load event squadrons: %w", err)
	}
	defer rows.Close()

	event.SquadronIDs = event.SquadronIDs[:0]
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan event squadron: %w", err)
		}
		event.SquadronIDs = append(event.SquadronIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	pubs, err := listPublications(ctx, r.pool, event.ID)
	if err != nil {
		return err
	}
	event.Publications = pubs
	return nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var firstVal, secondVal *int
	var firstUnit, secondUnit *string

	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.StartAt,
		&e.EndAt,
		&e.Status,
		&e.Settings.Timezone,
		&e.Settings.UseThreads,
		&e.Settings.NotifyAccepted,
		&e.Settings.NotifyTentative,
		&e.Settings.NotifyDeclined,
		&e.Settings.NotifyNoResponse,
		&firstVal,
		&firstUnit,
		&secondVal,
		&secondUnit,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	e.Settings.FirstReminder = reminderFromColumns(firstVal, firstUnit)
	e.Settings.SecondReminder = reminderFromColumns(secondVal, secondUnit)
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// reminderColumns раскладывает смещение напоминания в пару nullable-колонок.
func reminderColumns(off *domain.ReminderOffset) (*int, *string) {
	if off == nil {
		return nil, nil
	}
	v := off.Value
	u := string(off.Unit)
	return &v, &u
}

// reminderFromColumns собирает смещение из пары колонок.
func reminderFromColumns(value *int, unit *string) *domain.ReminderOffset {
	if value == nil || unit == nil {
		return nil
	}
	return &domain.ReminderOffset{Value: *value, Unit: domain.ReminderUnit(*unit)}
}
