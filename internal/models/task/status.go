package task

type Status string

// порядок статусов определяет "вперёд" и "назад" в воркфлоу
const (
	StatusRequested    Status = "Requested"
	StatusClientReview Status = "Client Review"
	StatusConfirmed    Status = "Confirmed"
	StatusApproved     Status = "Approved"
	StatusWorkingOnIt  Status = "Working On It"
	StatusCompleted    Status = "Completed"
	StatusHandover     Status = "Handover"
)

var statusOrder = []Status{
	StatusRequested,
	StatusClientReview,
	StatusConfirmed,
	StatusApproved,
	StatusWorkingOnIt,
	StatusCompleted,
	StatusHandover,
}

// AllStatuses возвращает статусы в порядке жизненного цикла
func AllStatuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// StatusIndex возвращает позицию статуса в жизненном цикле, -1 для неизвестного
func StatusIndex(s Status) int {
	for i, v := range statusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

func IsValidStatus(s Status) bool {
	return StatusIndex(s) >= 0
}

// NextStatus возвращает следующий статус жизненного цикла
func NextStatus(s Status) (Status, bool) {
	i := StatusIndex(s)
	if i < 0 || i+1 >= len(statusOrder) {
		return "", false
	}
	return statusOrder[i+1], true
}

// IsAdvanced — статус "Confirmed" и дальше, для правил отката
func IsAdvanced(s Status) bool {
	return StatusIndex(s) >= StatusIndex(StatusConfirmed)
}
