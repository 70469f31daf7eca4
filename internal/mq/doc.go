// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - event.published — событие опубликовано, появились новые сообщения
//   - event.deleted   — событие удалено, нужно убрать внешние артефакты
//
// Exchanges:
//   - sortie.events — события жизненного цикла
//   - sortie.dlq    — dead letter queue
package mq
