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

// ScheduleRepo — репозиторий для работы с scheduled_publications.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create добавляет строку расписания публикации.
func (r *ScheduleRepo) Create(ctx context.Context, sp *domain.ScheduledPublication) error {
	query := `
		INSERT INTO scheduled_publications (id, event_id, scheduled_at, sent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		sp.ID,
		sp.EventID,
		sp.ScheduledAt,
		sp.Sent,
		sp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled publication: %w", err)
	}
	return nil
}

// GetByID возвращает строку расписания по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledPublication, error) {
	query := `
		SELECT id, event_id, scheduled_at, sent, created_at
		FROM scheduled_publications
		WHERE id = $1
	`
	return scanScheduledPublication(r.pool.QueryRow(ctx, query, id))
}

// ListDue возвращает необработанные строки, чьё время наступило.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledPublication, error) {
	query := `
		SELECT id, event_id, scheduled_at, sent, created_at
		FROM scheduled_publications
		WHERE NOT sent AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due publications: %w", err)
	}
	defer rows.Close()

	var due []domain.ScheduledPublication
	for rows.Next() {
		sp, err := scanScheduledPublication(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *sp)
	}
	return due, rows.Err()
}

// MarkSent помечает строку обработанной. Выставляется после любой
// попытки публикации, удачной или нет, чтобы строка не зацикливалась.
func (r *ScheduleRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE scheduled_publications SET sent = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending возвращает количество необработанных строк расписания.
func (r *ScheduleRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_publications WHERE NOT sent
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending publications: %w", err)
	}
	return n, nil
}

func scanScheduledPublication(row pgx.Row) (*domain.ScheduledPublication, error) {
	var sp domain.ScheduledPublication
	err := row.Scan(
		&sp.ID,
		&sp.EventID,
		&sp.ScheduledAt,
		&sp.Sent,
		&sp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan scheduled publication: %w", err)
	}
	return &sp, nil
}
