package telemetry

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// LogLevel читает уровень логирования из переменной LOG_LEVEL.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер движка.
//
// Формат задаёт переменная LOG_FORMAT: "json" (по умолчанию) для
// production, "text" — человекочитаемый вывод для разработки.
// На уровне DEBUG к записям добавляется источник вызова.
func SetupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithEventID возвращает логгер с привязанным event_id.
func WithEventID(logger *slog.Logger, eventID uuid.UUID) *slog.Logger {
	return logger.With("event_id", eventID)
}

// WithReminderID возвращает логгер с привязанным reminder_id.
func WithReminderID(logger *slog.Logger, reminderID uuid.UUID) *slog.Logger {
	return logger.With("reminder_id", reminderID)
}

// WithJob возвращает логгер с именем задания оркестратора.
func WithJob(logger *slog.Logger, job string) *slog.Logger {
	return logger.With("job", job)
}
