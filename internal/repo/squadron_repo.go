package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/sortie/internal/domain"
)

// SquadronRepo — репозиторий для работы с squadrons и их составом.
type SquadronRepo struct {
	pool *pgxpool.Pool
}

// NewSquadronRepo создаёт новый SquadronRepo.
func NewSquadronRepo(pool *pgxpool.Pool) *SquadronRepo {
	return &SquadronRepo{pool: pool}
}

// Create добавляет эскадрилью.
func (r *SquadronRepo) Create(ctx context.Context, sq *domain.Squadron) error {
	query := `
		INSERT INTO squadrons (id, name, server_id, channel_id, allow_threads, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		sq.ID,
		sq.Name,
		sq.ServerID,
		sq.ChannelID,
		sq.AllowThreads,
		sq.Active,
		sq.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert squadron: %w", err)
	}
	return nil
}

// GetByID возвращает эскадрилью по ID.
func (r *SquadronRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Squadron, error) {
	query := `
		SELECT id, name, server_id, channel_id, allow_threads, active, created_at
		FROM squadrons
		WHERE id = $1
	`
	return scanSquadron(r.pool.QueryRow(ctx, query, id))
}

// ListByIDs возвращает эскадрильи в порядке входного списка.
// Порядок важен: первая эскадрилья направления становится первым
// автором публикации. Несуществующие ID молча пропускаются.
func (r *SquadronRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Squadron, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, server_id, channel_id, allow_threads, active, created_at
		FROM squadrons
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list squadrons: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.Squadron, len(ids))
	for rows.Next() {
		sq, err := scanSquadron(rows)
		if err != nil {
			return nil, err
		}
		byID[sq.ID] = *sq
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]domain.Squadron, 0, len(byID))
	for _, id := range ids {
		if sq, ok := byID[id]; ok {
			ordered = append(ordered, sq)
		}
	}
	return ordered, nil
}

// ListMembers возвращает участников указанных эскадрилий, включая
// неактивных. Фильтрация по активности — на стороне резолвера:
// ему нужны счётчики до и после.
func (r *SquadronRepo) ListMembers(ctx context.Context, squadronIDs []uuid.UUID) ([]domain.Member, error) {
	if len(squadronIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT squadron_id, identity, display_name, active
		FROM squadron_members
		WHERE squadron_id = ANY($1)
		ORDER BY squadron_id, identity
	`
	rows, err := r.pool.Query(ctx, query, squadronIDs)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.SquadronID, &m.Identity, &m.DisplayName, &m.Active); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpsertMember добавляет или обновляет участника эскадрильи.
func (r *SquadronRepo) UpsertMember(ctx context.Context, m *domain.Member) error {
	query := `
		INSERT INTO squadron_members (squadron_id, identity, display_name, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (squadron_id, identity)
		DO UPDATE SET display_name = $3, active = $4
	`
	_, err := r.pool.Exec(ctx, query, m.SquadronID, m.Identity, m.DisplayName, m.Active)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func scanSquadron(row pgx.Row) (*domain.Squadron, error) {
	var sq domain.Squadron
	err := row.Scan(
		&sq.ID,
		&sq.Name,
		&sq.ServerID,
		&sq.ChannelID,
		&sq.AllowThreads,
		&sq.Active,
		&sq.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan squadron: %w", err)
	}
	return &sq, nil
}
