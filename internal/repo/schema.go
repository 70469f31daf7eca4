package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBSchemas — схема БД движка. Применяется при старте процесса;
// выражения идемпотентны, порядок важен (FK-зависимости).
var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,

	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	start_at TIMESTAMPTZ NOT NULL,
	end_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'SCHEDULED',

	timezone TEXT NOT NULL DEFAULT '',
	use_threads BOOLEAN NOT NULL DEFAULT FALSE,
	notify_accepted BOOLEAN NOT NULL DEFAULT TRUE,
	notify_tentative BOOLEAN NOT NULL DEFAULT TRUE,
	notify_declined BOOLEAN NOT NULL DEFAULT FALSE,
	notify_no_response BOOLEAN NOT NULL DEFAULT TRUE,
	first_reminder_value INT,
	first_reminder_unit TEXT,
	second_reminder_value INT,
	second_reminder_unit TEXT,

	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, `
CREATE TABLE IF NOT EXISTS squadrons (
	id UUID PRIMARY KEY,

	name TEXT NOT NULL,
	server_id TEXT NOT NULL DEFAULT '',
	channel_id TEXT NOT NULL DEFAULT '',
	allow_threads BOOLEAN NOT NULL DEFAULT TRUE,
	active BOOLEAN NOT NULL DEFAULT TRUE,

	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, `
CREATE TABLE IF NOT EXISTS squadron_members (
	squadron_id UUID NOT NULL REFERENCES squadrons (id) ON DELETE CASCADE,
	identity TEXT NOT NULL,

	display_name TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,

	PRIMARY KEY (squadron_id, identity)
);
`, `
CREATE TABLE IF NOT EXISTS event_squadrons (
	event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	squadron_id UUID NOT NULL REFERENCES squadrons (id) ON DELETE CASCADE,
	position INT NOT NULL,

	PRIMARY KEY (event_id, squadron_id)
);
`, `
CREATE TABLE IF NOT EXISTS publications (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,

	server_id TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	squadron_id UUID NOT NULL,
	message_id TEXT NOT NULL,
	thread_id TEXT,
	reminder_message_ids TEXT[] NOT NULL DEFAULT '{}',

	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	UNIQUE (event_id, server_id, channel_id)
);
`, `
CREATE TABLE IF NOT EXISTS scheduled_publications (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,

	scheduled_at TIMESTAMPTZ NOT NULL,
	sent BOOLEAN NOT NULL DEFAULT FALSE,

	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, `
CREATE INDEX IF NOT EXISTS idx_scheduled_publications_due
	ON scheduled_publications (scheduled_at) WHERE NOT sent;
`, `
CREATE TABLE IF NOT EXISTS reminders (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,

	kind TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	notify_accepted BOOLEAN NOT NULL DEFAULT TRUE,
	notify_tentative BOOLEAN NOT NULL DEFAULT TRUE,
	notify_declined BOOLEAN NOT NULL DEFAULT FALSE,
	notify_no_response BOOLEAN NOT NULL DEFAULT TRUE,
	sent BOOLEAN NOT NULL DEFAULT FALSE,

	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	UNIQUE (event_id, kind)
);
`, `
CREATE INDEX IF NOT EXISTS idx_reminders_due
	ON reminders (scheduled_at) WHERE NOT sent;
`, `
CREATE TABLE IF NOT EXISTS attendance_records (
	id BIGSERIAL PRIMARY KEY,

	message_id TEXT NOT NULL,
	identity TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	response TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	UNIQUE (message_id, identity)
);
`, `
CREATE INDEX IF NOT EXISTS idx_attendance_message
	ON attendance_records (message_id);
`, `
CREATE TABLE IF NOT EXISTS engine_settings (
	onerow BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (onerow),

	default_timezone TEXT NOT NULL DEFAULT 'UTC',
	countdown_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`}

// InitSchema применяет DBSchemas к базе. Безопасно вызывать при каждом
// старте: все выражения — IF NOT EXISTS.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range DBSchemas {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema %d: %w", i, err)
		}
	}
	return nil
}
