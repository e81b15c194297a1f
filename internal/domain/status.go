package domain

import "strconv"

// JobStatus — статус job в очереди.
//
// Жизненный цикл:
//
//	PENDING → PROCESSING → COMPLETED
//	              ↘ PENDING (retry с retryAfter)
//	              ↘ DEAD    (попытки исчерпаны)
//
// Отдельного состояния FAILED нет: неудачная попытка либо возвращает job
// в PENDING, либо переводит её в DEAD.
type JobStatus string

const (
	// JobStatusPending — job ожидает claim.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusProcessing — job захвачена воркером и выполняется.
	JobStatusProcessing JobStatus = "PROCESSING"

	// JobStatusCompleted — job успешно выполнена.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusDead — все попытки исчерпаны, нужен оператор.
	JobStatusDead JobStatus = "DEAD"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusDead:
		return true
	default:
		return false
	}
}

// IsLive возвращает true для статусов, участвующих в дедупликации.
func (s JobStatus) IsLive() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// ParseJobStatus парсит строку в JobStatus.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch s {
	case "PENDING":
		return JobStatusPending, true
	case "PROCESSING":
		return JobStatusProcessing, true
	case "COMPLETED":
		return JobStatusCompleted, true
	case "DEAD":
		return JobStatusDead, true
	default:
		return "", false
	}
}

// Priority — приоритет job. Большее значение обслуживается раньше.
type Priority int

// Именованные уровни приоритета.
const (
	PriorityBackground  Priority = -10
	PriorityNormal      Priority = 0
	PriorityInteractive Priority = 10
)

// String возвращает имя уровня или число для произвольных значений.
func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityNormal:
		return "normal"
	case PriorityInteractive:
		return "interactive"
	default:
		return strconv.Itoa(int(p))
	}
}

