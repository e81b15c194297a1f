// Package queue реализует планировщик фоновых job.
//
// # Обзор
//
// Очередь выполняет фоновую работу платформы: загрузку профилей, оценку
// пар и отправку уведомлений. Контракт один (Queue), реализаций две:
//
//   - Memory — backlog в памяти, одна job за раз, для одного процесса
//   - Shared — backlog в Postgres, много процессов и слотов на процесс
//
// Реализация выбирается при сборке процесса и передаётся зависимостям
// явно; глобального экземпляра нет.
//
// # Жизненный цикл job
//
//  1. Enqueue: вычисляется отпечаток (PayloadHash). Если есть живая
//     (PENDING/PROCESSING) job с тем же отпечатком — возвращается её ID.
//  2. Claim: готовая job (retryAfter пуст или в прошлом) с наибольшим
//     приоритетом, при равенстве — самая ранняя. Attempts++.
//  3. Успех → COMPLETED.
//  4. Ошибка → если Attempts < MaxAttempts, PENDING с retryAfter
//     по Backoff; иначе DEAD.
//
// # Дедупликация
//
//   - EvaluatePair — идентификаторы сортируются, порядок аргументов не важен
//   - IngestProfile — по идентификатору сущности
//   - SendNotification — никогда (nil отпечаток)
//
// # Остановка
//
// Stop прекращает claim новых job и ждёт завершения уже выполняющихся.
// Отмены job посреди выполнения нет.
//
// # Метрики
//
// Prometheus: matchcore_queue_* (enqueued, deduplicated, completed,
// retried, dead, claim_errors, in_flight, duration) с меткой backend.
package queue
