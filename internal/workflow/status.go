package workflow

import "changeTracker/internal/models/task"

// CanTransition — единственное правило легальности перехода:
// тот же статус (пересохранение), непосредственно следующий статус,
// либо откат с Confirmed-или-позже назад в Client Review.
// Любые прыжки через стадии и другие движения назад запрещены.
func CanTransition(from, to task.Status) bool {
	if !task.IsValidStatus(from) || !task.IsValidStatus(to) {
		return false
	}
	if to == from {
		return true
	}
	if next, ok := task.NextStatus(from); ok && to == next {
		return true
	}
	return IsRollback(from, to)
}

// IsRollback — откат всегда целится именно в Client Review
// (первая стадия ревью под контролем менеджера), никогда в другие ранние стадии
func IsRollback(from, to task.Status) bool {
	return to == task.StatusClientReview && task.IsAdvanced(from)
}

// RequiresEstimate — статусы, в которые нельзя войти без положительной оценки часов
func RequiresEstimate(s task.Status) bool {
	return task.IsAdvanced(s)
}
