package workflow

import (
	"fmt"
	"math"
	"strings"
	"time"

	"changeTracker/internal/models/task"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// TransitionRequest — запрос перехода задачи в следующий статус
type TransitionRequest struct {
	NextStatus             task.Status
	Note                   string
	StatusDate             *time.Time
	EstimatedHoursOverride *float64
	DeliveryDateOverride   *time.Time
	Now                    time.Time
}

// ApplyTransition — чистая функция над снимком задачи: валидация полностью
// предшествует мутации, при ошибке возвращается исходное состояние нетронутым.
// Вызывающая сторона отвечает за commit-and-persist.
func ApplyTransition(t *task.Task, req TransitionRequest) (*task.Task, error) {
	if !CanTransition(t.Status, req.NextStatus) {
		return nil, newRuleError(CodeInvalidTransition,
			fmt.Sprintf("переход из %q в %q запрещён", t.Status, req.NextStatus),
			map[string]any{"from": t.Status, "to": req.NextStatus})
	}

	rollback := IsRollback(t.Status, req.NextStatus)
	note := strings.TrimSpace(req.Note)

	if rollback && note == "" {
		return nil, newRuleError(CodeRollbackReasonRequired,
			"откат в Client Review требует причины", nil)
	}

	genuine := req.NextStatus != t.Status
	// вход в Confirmed без даты поставки где-либо — незавершённое
	// двухшаговое подтверждение: дата статуса ещё не обязательна,
	// но ниже движок приостановится и попросит дату поставки
	confirmPending := genuine && req.NextStatus == task.StatusConfirmed &&
		t.DeliveryDate == nil && req.DeliveryDateOverride == nil
	if genuine && !confirmPending {
		if req.NextStatus == task.StatusConfirmed {
			if req.StatusDate == nil && req.DeliveryDateOverride == nil {
				return nil, newRuleError(CodeStatusDateRequired,
					"смена статуса требует даты", map[string]any{"status": req.NextStatus})
			}
		} else if req.StatusDate == nil {
			return nil, newRuleError(CodeStatusDateRequired,
				"смена статуса требует даты", map[string]any{"status": req.NextStatus})
		}
	}

	if req.EstimatedHoursOverride != nil && !isValidHours(*req.EstimatedHoursOverride) {
		return nil, newRuleError(CodeInvalidHours,
			"оценка часов должна быть неотрицательным числом", nil)
	}

	effectiveEstimate := t.EstimatedHours
	if req.EstimatedHoursOverride != nil {
		effectiveEstimate = *req.EstimatedHoursOverride
	}
	if RequiresEstimate(req.NextStatus) && (!isFinite(effectiveEstimate) || effectiveEstimate <= 0) {
		return nil, newRuleError(CodeEstimateRequired,
			fmt.Sprintf("статус %q требует положительной оценки часов", req.NextStatus),
			map[string]any{"status": req.NextStatus})
	}

	if confirmPending {
		return nil, newRuleError(CodeDeliveryDateRequired,
			"для подтверждения требуется дата поставки", nil)
	}

	// валидация пройдена — дальше только мутация копии
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	next := t.Clone()
	nextEstimate := effectiveEstimate

	if rollback {
		// откат обнуляет оценку и стирает все вехи от Confirmed и дальше
		nextEstimate = 0
		clearAdvancedMilestones(next)
		next.ClientReviewDate = copyTime(req.StatusDate)
	} else if genuine {
		applyMilestone(next, req.NextStatus, req.StatusDate, req.DeliveryDateOverride)
	}

	if t.EstimatedHours != nextEstimate {
		reason := "Status update"
		if rollback {
			reason = note
		}
		next.HourRevisions = append(next.HourRevisions, task.HourRevision{
			ID:                     uuid.New(),
			PreviousEstimatedHours: t.EstimatedHours,
			NextEstimatedHours:     nextEstimate,
			ChangedAt:              now,
			Reason:                 reason,
		})
	}
	next.EstimatedHours = nextEstimate
	next.Status = req.NextStatus

	noteDate := req.StatusDate
	if noteDate == nil && req.NextStatus == task.StatusConfirmed {
		noteDate = req.DeliveryDateOverride
	}
	next.History = append(next.History, task.HistoryEntry{
		ID:        uuid.New(),
		Status:    req.NextStatus,
		ChangedAt: now,
		Note:      formatHistoryNote(note, noteDate),
	})
	next.UpdatedAt = now

	return next, nil
}

// EditRequest — массовая правка полей из редактора деталей задачи.
// Даты вех приходят по одной на целевой статус, а не одной датой.
type EditRequest struct {
	Title          *string
	ChangePoints   []string // nil — не менять
	ClientName     *string
	RequestedDate  *time.Time
	Status         *task.Status
	MilestoneDates map[task.Status]*time.Time
	DeliveryDate   *time.Time
	EstimatedHours *float64
	LoggedHours    *float64
	HourlyRate     *float64
	Note           string
	Now            time.Time
}

// DescriptiveOnly — правка затрагивает только описательные поля:
// единственное, что разрешено клиентской роли
func (r EditRequest) DescriptiveOnly() bool {
	return r.Status == nil &&
		r.EstimatedHours == nil &&
		r.LoggedHours == nil &&
		r.HourlyRate == nil &&
		r.DeliveryDate == nil &&
		len(r.MilestoneDates) == 0
}

// ApplyEdit применяет массовую правку с теми же правилами переходов,
// что и ApplyTransition
func ApplyEdit(t *task.Task, req EditRequest) (*task.Task, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, newRuleError(CodeValidation, "название не может быть пустым",
			map[string]any{"field": "title"})
	}
	for field, v := range map[string]*float64{
		"estimated_hours": req.EstimatedHours,
		"logged_hours":    req.LoggedHours,
		"hourly_rate":     req.HourlyRate,
	} {
		if v != nil && !isValidHours(*v) {
			return nil, newRuleError(CodeInvalidHours,
				"часы должны быть неотрицательным числом", map[string]any{"field": field})
		}
	}

	note := strings.TrimSpace(req.Note)
	statusChanging := req.Status != nil && *req.Status != t.Status
	rollback := false
	var milestoneDate *time.Time

	if req.Status != nil {
		if !CanTransition(t.Status, *req.Status) {
			return nil, newRuleError(CodeInvalidTransition,
				fmt.Sprintf("переход из %q в %q запрещён", t.Status, *req.Status),
				map[string]any{"from": t.Status, "to": *req.Status})
		}
	}

	if statusChanging {
		target := *req.Status
		rollback = IsRollback(t.Status, target)
		if rollback && note == "" {
			return nil, newRuleError(CodeRollbackReasonRequired,
				"откат в Client Review требует причины", nil)
		}

		milestoneDate = req.MilestoneDates[target]
		confirmPending := false
		if target == task.StatusConfirmed {
			if milestoneDate == nil {
				milestoneDate = req.DeliveryDate
			}
			// незавершённое двухшаговое подтверждение, см. ApplyTransition
			confirmPending = t.DeliveryDate == nil && req.DeliveryDate == nil && milestoneDate == nil
			if !confirmPending && milestoneDate == nil {
				return nil, newRuleError(CodeStatusDateRequired,
					"смена статуса требует даты вехи", map[string]any{"status": target})
			}
		} else if milestoneDate == nil {
			return nil, newRuleError(CodeStatusDateRequired,
				"смена статуса требует даты вехи", map[string]any{"status": target})
		}

		effectiveEstimate := t.EstimatedHours
		if req.EstimatedHours != nil {
			effectiveEstimate = *req.EstimatedHours
		}
		if RequiresEstimate(target) && (!isFinite(effectiveEstimate) || effectiveEstimate <= 0) {
			return nil, newRuleError(CodeEstimateRequired,
				fmt.Sprintf("статус %q требует положительной оценки часов", target),
				map[string]any{"status": target})
		}

		if confirmPending {
			return nil, newRuleError(CodeDeliveryDateRequired,
				"для подтверждения требуется дата поставки", nil)
		}
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	next := t.Clone()

	if req.Title != nil {
		next.Title = strings.TrimSpace(*req.Title)
	}
	if req.ChangePoints != nil {
		next.ChangePoints = append([]string(nil), req.ChangePoints...)
	}
	if req.ClientName != nil {
		next.ClientName = *req.ClientName
	}
	if req.RequestedDate != nil {
		next.RequestedDate = copyTime(req.RequestedDate)
	}
	if req.LoggedHours != nil {
		next.LoggedHours = *req.LoggedHours
	}
	if req.HourlyRate != nil {
		rate := *req.HourlyRate
		next.HourlyRate = &rate
	}

	nextEstimate := t.EstimatedHours
	if req.EstimatedHours != nil {
		nextEstimate = *req.EstimatedHours
	}

	if statusChanging {
		target := *req.Status
		if rollback {
			nextEstimate = 0
			clearAdvancedMilestones(next)
			next.ClientReviewDate = copyTime(milestoneDate)
		} else {
			applyMilestone(next, target, milestoneDate, req.DeliveryDate)
		}
		next.Status = target
	}

	if t.EstimatedHours != nextEstimate {
		reason := note
		if reason == "" {
			reason = "Task details updated"
		}
		next.HourRevisions = append(next.HourRevisions, task.HourRevision{
			ID:                     uuid.New(),
			PreviousEstimatedHours: t.EstimatedHours,
			NextEstimatedHours:     nextEstimate,
			ChangedAt:              now,
			Reason:                 reason,
		})
	}
	next.EstimatedHours = nextEstimate

	historyNote := note
	if historyNote == "" {
		historyNote = "Task details updated"
	}
	var noteDate *time.Time
	if statusChanging {
		noteDate = milestoneDate
	}
	next.History = append(next.History, task.HistoryEntry{
		ID:        uuid.New(),
		Status:    next.Status,
		ChangedAt: now,
		Note:      formatHistoryNote(historyNote, noteDate),
	})
	next.UpdatedAt = now

	return next, nil
}

// ApplyHours обновляет учёт часов; статус утверждения не трогает
func ApplyHours(t *task.Task, estimated, logged float64, rate *float64, reason string, now time.Time) (*task.Task, error) {
	if !isValidHours(estimated) || !isValidHours(logged) {
		return nil, newRuleError(CodeInvalidHours,
			"часы должны быть неотрицательным числом", nil)
	}
	if rate != nil && !isValidHours(*rate) {
		return nil, newRuleError(CodeInvalidHours,
			"ставка должна быть неотрицательным числом", map[string]any{"field": "hourly_rate"})
	}

	if now.IsZero() {
		now = time.Now()
	}

	next := t.Clone()
	reason = strings.TrimSpace(reason)

	// ревизия добавляется только если оценка реально изменила значение
	if t.EstimatedHours != estimated {
		revReason := reason
		if revReason == "" {
			revReason = "Hours updated"
		}
		next.HourRevisions = append(next.HourRevisions, task.HourRevision{
			ID:                     uuid.New(),
			PreviousEstimatedHours: t.EstimatedHours,
			NextEstimatedHours:     estimated,
			ChangedAt:              now,
			Reason:                 revReason,
		})
	}

	next.EstimatedHours = estimated
	next.LoggedHours = logged
	if rate != nil {
		r := *rate
		next.HourlyRate = &r
	}

	summary := fmt.Sprintf("Hours updated: estimated %s → %s, logged %s → %s",
		formatHours(t.EstimatedHours), formatHours(estimated),
		formatHours(t.LoggedHours), formatHours(logged))
	if reason != "" {
		summary = summary + " | " + reason
	}
	next.History = append(next.History, task.HistoryEntry{
		ID:        uuid.New(),
		Status:    next.Status,
		ChangedAt: now,
		Note:      summary,
	})
	next.UpdatedAt = now

	return next, nil
}

// applyMilestone ставит дату вехи целевого статуса, если она ещё не стоит.
// Для Confirmed датой вехи служит дата поставки.
func applyMilestone(t *task.Task, s task.Status, statusDate, deliveryOverride *time.Time) {
	switch s {
	case task.StatusClientReview:
		if t.ClientReviewDate == nil {
			t.ClientReviewDate = copyTime(statusDate)
		}
	case task.StatusConfirmed:
		if t.DeliveryDate == nil {
			if deliveryOverride != nil {
				t.DeliveryDate = copyTime(deliveryOverride)
			} else {
				t.DeliveryDate = copyTime(statusDate)
			}
		}
		if t.ConfirmedDate == nil {
			if statusDate != nil {
				t.ConfirmedDate = copyTime(statusDate)
			} else {
				t.ConfirmedDate = copyTime(deliveryOverride)
			}
		}
	case task.StatusApproved:
		if t.ApprovedDate == nil {
			t.ApprovedDate = copyTime(statusDate)
		}
	case task.StatusWorkingOnIt:
		if t.StartDate == nil {
			t.StartDate = copyTime(statusDate)
		}
	case task.StatusCompleted:
		if t.CompletedDate == nil {
			t.CompletedDate = copyTime(statusDate)
		}
	case task.StatusHandover:
		if t.HandoverDate == nil {
			t.HandoverDate = copyTime(statusDate)
		}
	}
}

// clearAdvancedMilestones стирает вехи от Confirmed и дальше (откат)
func clearAdvancedMilestones(t *task.Task) {
	t.DeliveryDate = nil
	t.ConfirmedDate = nil
	t.ApprovedDate = nil
	t.StartDate = nil
	t.CompletedDate = nil
	t.HandoverDate = nil
}

func formatHistoryNote(note string, statusDate *time.Time) string {
	if statusDate == nil {
		return note
	}
	formatted := statusDate.Format(dateLayout)
	if note == "" {
		return "Status date: " + formatted
	}
	return note + " | Status date: " + formatted
}

func formatHours(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isValidHours(v float64) bool {
	return isFinite(v) && v >= 0
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
