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

// ReminderRepo — репозиторий для работы с reminders.
type ReminderRepo struct {
	pool *pgxpool.Pool
}

// NewReminderRepo создаёт новый ReminderRepo.
func NewReminderRepo(pool *pgxpool.Pool) *ReminderRepo {
	return &ReminderRepo{pool: pool}
}

// Create добавляет напоминание. На пару (event_id, kind) действует
// уникальный индекс: повторное планирование того же вида возвращает
// ErrAlreadyExists.
func (r *ReminderRepo) Create(ctx context.Context, rem *domain.Reminder) error {
	query := `
		INSERT INTO reminders (id, event_id, kind, scheduled_at,
		                       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		                       sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		rem.ID,
		rem.EventID,
		rem.Kind,
		rem.ScheduledAt,
		rem.NotifyAccepted,
		rem.NotifyTentative,
		rem.NotifyDeclined,
		rem.NotifyNoResponse,
		rem.Sent,
		rem.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// GetByID возвращает напоминание по ID.
func (r *ReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error) {
	query := `
		SELECT id, event_id, kind, scheduled_at,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       sent, created_at
		FROM reminders
		WHERE id = $1
	`
	return scanReminder(r.pool.QueryRow(ctx, query, id))
}

// ListDue возвращает необработанные напоминания, чьё время наступило.
func (r *ReminderRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	query := `
		SELECT id, event_id, kind, scheduled_at,
		       notify_accepted, notify_tentative, notify_declined, notify_no_response,
		       sent, created_at
		FROM reminders
		WHERE NOT sent AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var due []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *rem)
	}
	return due, rows.Err()
}

// MarkSent помечает напоминание обработанным.
func (r *ReminderRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE reminders SET sent = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending возвращает количество необработанных напоминаний.
func (r *ReminderRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reminders WHERE NOT sent
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending reminders: %w", err)
	}
	return n, nil
}

func scanReminder(row pgx.Row) (*domain.Reminder, error) {
	var rem domain.Reminder
	err := row.Scan(
		&rem.ID,
		&rem.EventID,
		&rem.Kind,
		&rem.ScheduledAt,
		&rem.NotifyAccepted,
		&rem.NotifyTentative,
		&rem.NotifyDeclined,
		&rem.NotifyNoResponse,
		&rem.Sent,
		&rem.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reminder: %w", err)
	}
	return &rem, nil
}
