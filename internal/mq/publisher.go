package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType различает сообщения внутри конверта Message.
type MessageType string

// Сообщения движка.
const (
	MessageTypeEventPublished MessageType = "event.published"
	MessageTypeEventDeleted   MessageType = "event.deleted"
)

// Message — конверт сообщения: тип, полезная нагрузка и метаданные.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventPublishedPayload — payload для события «опубликовано».
// Потребитель: countdown updater, чтобы подхватить новые сообщения
// сразу, а не на следующей пересборке расписания.
type EventPublishedPayload struct {
	EventID    uuid.UUID `json:"event_id"`
	MessageIDs []string  `json:"message_ids"`
}

// DeletedPublication — снимок одной публикации удалённого события.
// Снимок едет в payload, потому что к моменту обработки строк
// публикаций в базе может уже не быть.
type DeletedPublication struct {
	ChannelID          string   `json:"channel_id"`
	MessageID          string   `json:"message_id"`
	ThreadID           string   `json:"thread_id,omitempty"`
	ReminderMessageIDs []string `json:"reminder_message_ids,omitempty"`
}

// EventDeletedPayload — payload для события «удалено».
// Потребитель: cleanup handler, удаляющий внешние артефакты.
type EventDeletedPayload struct {
	EventID      uuid.UUID            `json:"event_id"`
	Publications []DeletedPublication `json:"publications"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт издателя поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // переживает рестарт брокера
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	}

	err = ch.PublishWithContext(ctx,
		string(exchange),   // exchange
		string(routingKey), // routing key
		false,              // mandatory
		false,              // immediate
		pub,
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"type", msg.Type,
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
	)

	return nil
}

// PublishEventPublished публикует уведомление об успешной публикации события.
func (p *Publisher) PublishEventPublished(ctx context.Context, eventID uuid.UUID, messageIDs []string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEventPublished,
		Payload:   EventPublishedPayload{EventID: eventID, MessageIDs: messageIDs},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyPublished, msg)
}

// PublishEventDeleted публикует запрос на удаление внешних артефактов события.
func (p *Publisher) PublishEventDeleted(ctx context.Context, payload EventDeletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEventDeleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyDeleted, msg)
}
