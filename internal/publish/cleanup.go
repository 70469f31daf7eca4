package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/sortie/internal/domain"
	"github.com/shaiso/sortie/internal/mq"
	"github.com/shaiso/sortie/internal/platform"
)

// AttendanceCleaner — удаление отметок посещаемости.
type AttendanceCleaner interface {
	DeleteForMessages(ctx context.Context, messageIDs []string) error
}

// Cache — сброс кеша посещаемости.
type Cache interface {
	Invalidate(ctx context.Context, eventID uuid.UUID)
}

// TimerRemover — снятие таймеров обратного отсчёта.
type TimerRemover interface {
	RemoveEvent(eventID uuid.UUID)
}

// Cleaner убирает внешние артефакты удалённого события: тред,
// сообщения-анонсы, разосланные напоминания, отметки посещаемости,
// кеш и таймеры. Вызывается по сообщению event.deleted; снимок
// публикаций приезжает в payload, потому что строк в базе к этому
// моменту уже нет.
type Cleaner struct {
	client     platform.Client
	attendance AttendanceCleaner
	cache      Cache
	countdown  TimerRemover
	logger     *slog.Logger
}

// CleanerConfig — конфигурация Cleaner.
type CleanerConfig struct {
	Client     platform.Client
	Attendance AttendanceCleaner
	Cache      Cache        // опционально
	Countdown  TimerRemover // опционально
	Logger     *slog.Logger
}

// NewCleaner создаёт новый Cleaner.
func NewCleaner(cfg CleanerConfig) *Cleaner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cleaner{
		client:     cfg.Client,
		attendance: cfg.Attendance,
		cache:      cfg.Cache,
		countdown:  cfg.Countdown,
		logger:     logger,
	}
}

// HandleEventDeleted — обработчик сообщения event.deleted.
//
// Зачистка платформы best-effort: уже удалённые и недоступные
// артефакты логируются и пропускаются. Ошибка хранилища возвращается
// наружу — сообщение уйдёт в retry, повторная зачистка безопасна.
func (c *Cleaner) HandleEventDeleted(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.EventDeletedPayload](msg)
	if err != nil {
		return fmt.Errorf("parse event.deleted payload: %w", err)
	}

	c.logger.Info("cleaning up deleted event",
		"event_id", payload.EventID,
		"publications", len(payload.Publications),
	)

	messageIDs := make([]string, 0, len(payload.Publications))
	for _, pub := range payload.Publications {
		messageIDs = append(messageIDs, pub.MessageID)

		// Тред уносит свои сообщения с собой
		if id, ok := domain.ThreadStateFromStorage(&pub.ThreadID).Created(); ok {
			c.deleteThread(ctx, id)
		}

		// Напоминания, разосланные в канал мимо треда
		for _, rmID := range pub.ReminderMessageIDs {
			c.deleteMessage(ctx, pub.ChannelID, rmID)
		}

		c.deleteMessage(ctx, pub.ChannelID, pub.MessageID)
	}

	if len(messageIDs) > 0 {
		if err := c.attendance.DeleteForMessages(ctx, messageIDs); err != nil {
			return fmt.Errorf("delete attendance records: %w", err)
		}
	}

	if c.cache != nil {
		c.cache.Invalidate(ctx, payload.EventID)
	}
	if c.countdown != nil {
		c.countdown.RemoveEvent(payload.EventID)
	}

	c.logger.Info("event cleanup completed", "event_id", payload.EventID)

	return nil
}

// deleteThread удаляет тред; отсутствие треда — не ошибка.
func (c *Cleaner) deleteThread(ctx context.Context, threadID string) {
	err := c.client.DeleteThread(ctx, threadID)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		c.logger.Warn("failed to delete thread",
			"thread_id", threadID,
			"error", err,
		)
	}
}

// deleteMessage удаляет сообщение; отсутствие сообщения — не ошибка.
func (c *Cleaner) deleteMessage(ctx context.Context, channelID, messageID string) {
	err := c.client.DeleteMessage(ctx, channelID, messageID)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		c.logger.Warn("failed to delete message",
			"channel_id", channelID,
			"message_id", messageID,
			"error", err,
		)
	}
}
