package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownPayload — для payload нет обработчика.
	ErrUnknownPayload = errors.New("unknown payload")

	// ErrNoHandler — обработчик для kind не сконфигурирован.
	ErrNoHandler = errors.New("handler not configured")

	// ErrEntityNotFound — сущность пары отсутствует.
	ErrEntityNotFound = errors.New("entity not found")
)
