// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - http.go — HTTP endpoint'ы /metrics и /healthz
//
// Все процессы используют единый формат логирования. Идентификаторы
// job и сущности, положенные в context через WithJobID/WithEntityID,
// попадают в каждую запись, сделанную методами *Context логгера.
package telemetry
