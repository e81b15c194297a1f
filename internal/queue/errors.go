package queue

import "errors"

// Ошибки очереди.
var (
	// ErrJobNotFound — job с таким ID нет.
	ErrJobNotFound = errors.New("job not found")

	// ErrNilHandler — Start вызван без обработчика.
	ErrNilHandler = errors.New("nil job handler")

	// ErrNilPayload — Enqueue вызван без payload.
	ErrNilPayload = errors.New("nil job payload")
)
