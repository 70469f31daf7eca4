package domain

// EventStatus — статус жизненного цикла события.
//
// Жизненный цикл:
//
//	SCHEDULED → IN_PROGRESS → CONCLUDED
//	          ↘ CANCELLED (из SCHEDULED или IN_PROGRESS)
//
// Переходы по времени выполняет оркестратор; отмена приходит
// извне через очередь сообщений.
type EventStatus string

const (
	// StatusScheduled — событие запланировано, ещё не началось.
	StatusScheduled EventStatus = "SCHEDULED"

	// StatusInProgress — событие идёт в данный момент.
	StatusInProgress EventStatus = "IN_PROGRESS"

	// StatusConcluded — событие завершилось.
	StatusConcluded EventStatus = "CONCLUDED"

	// StatusCancelled — событие отменено до завершения.
	StatusCancelled EventStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (работы по событию нет).
func (s EventStatus) IsTerminal() bool {
	switch s {
	case StatusConcluded, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если по событию ещё ведётся работа:
// рассылаются напоминания, обновляется обратный отсчёт.
func (s EventStatus) IsActive() bool {
	switch s {
	case StatusScheduled, StatusInProgress:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление EventStatus.
func (s EventStatus) String() string {
	return string(s)
}

// ParseEventStatus парсит строку в EventStatus.
func ParseEventStatus(s string) EventStatus {
	switch s {
	case "IN_PROGRESS":
		return StatusInProgress
	case "CONCLUDED":
		return StatusConcluded
	case "CANCELLED":
		return StatusCancelled
	default:
		return StatusScheduled
	}
}
