package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/sortie/internal/domain"
)

// SettingsRepo — репозиторий общих настроек (singleton-строка).
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// NewSettingsRepo создаёт новый SettingsRepo.
func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Get возвращает настройки хранилища. Если строка ещё не создана,
// возвращаются значения по умолчанию.
func (r *SettingsRepo) Get(ctx context.Context) (domain.EngineSettings, error) {
	var s domain.EngineSettings
	err := r.pool.QueryRow(ctx, `
		SELECT default_timezone, countdown_enabled, updated_at
		FROM engine_settings
	`).Scan(&s.DefaultTimezone, &s.CountdownEnabled, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultEngineSettings(), nil
	}
	if err != nil {
		return s, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// Save записывает настройки хранилища.
func (r *SettingsRepo) Save(ctx context.Context, s domain.EngineSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engine_settings (onerow, default_timezone, countdown_enabled, updated_at)
		VALUES (TRUE, $1, $2, NOW())
		ON CONFLICT (onerow)
		DO UPDATE SET default_timezone = $1, countdown_enabled = $2, updated_at = NOW()
	`, s.DefaultTimezone, s.CountdownEnabled)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
