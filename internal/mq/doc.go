// Package mq — уведомления очереди job через RabbitMQ.
//
// RabbitMQ не хранит job: единственный источник истины — таблица jobs.
// Сообщения только сокращают задержку между Enqueue и Claim в других
// процессах и дают операторам поток dead-letter событий.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация job.enqueued / job.dead (queue.Notifier)
//   - consumer.go   — потребление; WakeupListener будит queue.Shared
//
// Топология:
//   - matchcore.wakeup (fanout) — у каждого воркера своя exclusive очередь
//   - matchcore.jobs (direct) → jobs.dead [routing: dead]
package mq
