package models

// События жизненного цикла заявки.
const (
	EventAccept   = "accept"
	EventComplete = "complete"
	EventCancel   = "cancel"
)

// transitions описывает допустимые переходы статусов.
// Конечные статусы (completed, cancelled) переходов не имеют.
var transitions = map[string]map[string]string{
	RequestStatusPending: {
		EventAccept: RequestStatusAccepted,
		EventCancel: RequestStatusCancelled,
	},
	RequestStatusAccepted: {
		EventComplete: RequestStatusCompleted,
		EventCancel:   RequestStatusCancelled,
	},
}

// NextStatus возвращает статус, в который ведёт событие из текущего статуса.
// Второе значение false означает недопустимый переход.
func NextStatus(from, event string) (string, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// IsTerminalStatus сообщает, является ли статус конечным.
func IsTerminalStatus(status string) bool {
	return status == RequestStatusCompleted || status == RequestStatusCancelled
}
