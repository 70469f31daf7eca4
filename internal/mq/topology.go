package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents Exchange = "sortie.events"
	ExchangeDLQ    Exchange = "sortie.dlq"
)

// Queues — имена очередей.
const (
	QueueEventsPublished Queue = "events.published"
	QueueEventsDeleted   Queue = "events.deleted"
	QueueDLQEvents       Queue = "dlq.events"
)

// Routing keys.
const (
	RoutingKeyPublished RoutingKey = "published"
	RoutingKeyDeleted   RoutingKey = "deleted"
	RoutingKeyDLQEvents RoutingKey = "events"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Идемпотентна: повторный вызов на живом брокере ничего не меняет.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	if err := declareExchanges(ch); err != nil {
		return err
	}
	if err := declareQueues(ch); err != nil {
		return err
	}
	return bindQueues(ch)
}

// declareExchanges создаёт обменники. Оба direct: маршрутизация
// здесь — по фиксированному имени сообщения, без шаблонов.
func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeEvents, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди движка.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// events.published — без DLQ: это нотификации, пропуск
		// компенсируется периодической пересборкой расписания
		{QueueEventsPublished, nil},

		// events.deleted — с DLQ: запрос на очистку терять нельзя
		{QueueEventsDeleted, dlqArgs},

		// dlq.events — сама DLQ очередь
		{QueueDLQEvents, nil},
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues связывает очереди с обменниками по таблице привязок.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueEventsPublished, RoutingKeyPublished, ExchangeEvents},
		{QueueEventsDeleted, RoutingKeyDeleted, ExchangeEvents},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Sortie RabbitMQ Topology:

    sortie.events (direct)
    ├── events.published [routing: published]
    │       Consumer: countdown updater
    └── events.deleted [routing: deleted]
            Consumer: cleanup handler
            DLQ: dlq.events

    sortie.dlq (direct)
    └── dlq.events [routing: events]
            Manual processing
  `
}
