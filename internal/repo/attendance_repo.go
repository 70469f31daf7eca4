package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/sortie/internal/domain"
)

// AttendanceRepo — репозиторий для работы с attendance_records.
type AttendanceRepo struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepo создаёт новый AttendanceRepo.
func NewAttendanceRepo(pool *pgxpool.Pool) *AttendanceRepo {
	return &AttendanceRepo{pool: pool}
}

// Upsert записывает отметку участника. Повторная отметка на том же
// сообщении перезаписывает ответ и обновляет updated_at.
func (r *AttendanceRepo) Upsert(ctx context.Context, rec *domain.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records (message_id, identity, display_name, response, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id, identity)
		DO UPDATE SET display_name = $3, response = $4, updated_at = $5
	`
	_, err := r.pool.Exec(ctx, query,
		rec.MessageID,
		rec.Identity,
		rec.DisplayName,
		rec.Response,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListForMessages возвращает отметки по всем сообщениям-анонсам события,
// свежие первыми. Порядок важен: участник мог отметиться на нескольких
// анонсах, актуален последний по updated_at ответ.
func (r *AttendanceRepo) ListForMessages(ctx context.Context, messageIDs []string) ([]domain.AttendanceRecord, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, message_id, identity, display_name, response, updated_at
		FROM attendance_records
		WHERE message_id = ANY($1)
		ORDER BY updated_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		err := rows.Scan(
			&rec.ID,
			&rec.MessageID,
			&rec.Identity,
			&rec.DisplayName,
			&rec.Response,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteForMessages удаляет отметки указанных сообщений. Вызывается
// при зачистке удалённого события: записи не связаны с events по FK.
func (r *AttendanceRepo) DeleteForMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM attendance_records WHERE message_id = ANY($1)
	`, messageIDs)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}
