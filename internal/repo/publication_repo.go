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

// PublicationRepo — репозиторий для работы с publications.
type PublicationRepo struct {
	pool *pgxpool.Pool
}

// NewPublicationRepo создаёт новый PublicationRepo.
func NewPublicationRepo(pool *pgxpool.Pool) *PublicationRepo {
	return &PublicationRepo{pool: pool}
}

// Create добавляет публикацию события. Уникальный индекс
// (event_id, server_id, channel_id) защищает от двойной публикации
// в одно направление: конфликт возвращается как ErrAlreadyExists.
func (r *PublicationRepo) Create(ctx context.Context, pub *domain.Publication) error {
	query := `
		INSERT INTO publications (id, event_id, server_id, channel_id, squadron_id,
		                          message_id, thread_id, reminder_message_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		pub.ID,
		pub.EventID,
		pub.ServerID,
		pub.ChannelID,
		pub.SquadronID,
		pub.MessageID,
		pub.Thread.StorageValue(),
		pub.ReminderMessageIDs,
		pub.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert publication: %w", err)
	}
	return nil
}

// GetByID возвращает публикацию по ID.
func (r *PublicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Publication, error) {
	query := `
		SELECT id, event_id, server_id, channel_id, squadron_id,
		       message_id, thread_id, reminder_message_ids, created_at
		FROM publications
		WHERE id = $1
	`
	return scanPublication(r.pool.QueryRow(ctx, query, id))
}

// ListByEvent возвращает публикации события в порядке создания.
func (r *PublicationRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Publication, error) {
	return listPublications(ctx, r.pool, eventID)
}

// SetThread записывает состояние треда публикации.
func (r *PublicationRepo) SetThread(ctx context.Context, id uuid.UUID, state domain.ThreadState) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE publications SET thread_id = $2 WHERE id = $1
	`, id, state.StorageValue())
	if err != nil {
		return fmt.Errorf("set thread: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddReminderMessageID дописывает идентификатор разосланного напоминания.
func (r *PublicationRepo) AddReminderMessageID(ctx context.Context, id uuid.UUID, messageID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE publications
		SET reminder_message_ids = array_append(reminder_message_ids, $2)
		WHERE id = $1
	`, id, messageID)
	if err != nil {
		return fmt.Errorf("add reminder message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func listPublications(ctx context.Context, pool *pgxpool.Pool, eventID uuid.UUID) ([]domain.Publication, error) {
	query := `
		SELECT id, event_id, server_id, channel_id, squadron_id,
		       message_id, thread_id, reminder_message_ids, created_at
		FROM publications
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	var pubs []domain.Publication
	for rows.Next() {
		pub, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, *pub)
	}
	return pubs, rows.Err()
}

func scanPublication(row pgx.Row) (*domain.Publication, error) {
	var p domain.Publication
	var threadID *string

	err := row.Scan(
		&p.ID,
		&p.EventID,
		&p.ServerID,
		&p.ChannelID,
		&p.SquadronID,
		&p.MessageID,
		&threadID,
		&p.ReminderMessageIDs,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan publication: %w", err)
	}

	p.Thread = domain.ThreadStateFromStorage(threadID)
	return &p, nil
}
