package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	ChangePoints  []string   `json:"change_points" db:"change_points"`
	ClientName    string     `json:"client_name,omitempty" db:"client_name"`
	RequestedDate *time.Time `json:"requested_date,omitempty" db:"requested_date"`

	Status Status `json:"status" db:"status"`

	// даты вех: каждая заполняется при входе в соответствующий статус
	ClientReviewDate *time.Time `json:"client_review_date,omitempty" db:"client_review_date"`
	DeliveryDate     *time.Time `json:"delivery_date,omitempty" db:"delivery_date"`
	ConfirmedDate    *time.Time `json:"confirmed_date,omitempty" db:"confirmed_date"`
	ApprovedDate     *time.Time `json:"approved_date,omitempty" db:"approved_date"`
	StartDate        *time.Time `json:"start_date,omitempty" db:"start_date"`
	CompletedDate    *time.Time `json:"completed_date,omitempty" db:"completed_date"`
	HandoverDate     *time.Time `json:"handover_date,omitempty" db:"handover_date"`

	EstimatedHours float64  `json:"estimated_hours" db:"estimated_hours"`
	LoggedHours    float64  `json:"logged_hours" db:"logged_hours"`
	HourlyRate     *float64 `json:"hourly_rate,omitempty" db:"hourly_rate"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Version   int       `json:"version" db:"version"`

	History       []HistoryEntry `json:"history"`
	HourRevisions []HourRevision `json:"hour_revisions"`
}

// HistoryEntry — запись журнала переходов, только добавляется
type HistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

// HourRevision — запись об изменении оценки часов
type HourRevision struct {
	ID                     uuid.UUID `json:"id"`
	PreviousEstimatedHours float64   `json:"previous_estimated_hours"`
	NextEstimatedHours     float64   `json:"next_estimated_hours"`
	ChangedAt              time.Time `json:"changed_at"`
	Reason                 string    `json:"reason,omitempty"`
}

// New создаёт задачу в статусе Requested с затравочной записью истории
func New(title string, changePoints []string, clientName string, requestedDate *time.Time, estimatedHours float64, now time.Time) *Task {
	t := &Task{
		ID:             uuid.New(),
		Title:          title,
		ChangePoints:   changePoints,
		ClientName:     clientName,
		RequestedDate:  requestedDate,
		Status:         StatusRequested,
		EstimatedHours: estimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	note := "Request received"
	if estimatedHours <= 0 {
		note = "Request received, estimate pending"
	}
	t.History = append(t.History, HistoryEntry{
		ID:        uuid.New(),
		Status:    StatusRequested,
		ChangedAt: now,
		Note:      note,
	})
	return t
}

// Clone возвращает глубокую копию — движок работает со снимком,
// а не с объектом из хранилища
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.ChangePoints = append([]string(nil), t.ChangePoints...)
	c.History = append([]HistoryEntry(nil), t.History...)
	c.HourRevisions = append([]HourRevision(nil), t.HourRevisions...)
	c.RequestedDate = cloneTime(t.RequestedDate)
	c.ClientReviewDate = cloneTime(t.ClientReviewDate)
	c.DeliveryDate = cloneTime(t.DeliveryDate)
	c.ConfirmedDate = cloneTime(t.ConfirmedDate)
	c.ApprovedDate = cloneTime(t.ApprovedDate)
	c.StartDate = cloneTime(t.StartDate)
	c.CompletedDate = cloneTime(t.CompletedDate)
	c.HandoverDate = cloneTime(t.HandoverDate)
	if t.HourlyRate != nil {
		rate := *t.HourlyRate
		c.HourlyRate = &rate
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MilestoneDate возвращает дату вехи для статуса (для Confirmed это delivery date)
func (t *Task) MilestoneDate(s Status) *time.Time {
	switch s {
	case StatusClientReview:
		return t.ClientReviewDate
	case StatusConfirmed:
		return t.DeliveryDate
	case StatusApproved:
		return t.ApprovedDate
	case StatusWorkingOnIt:
		return t.StartDate
	case StatusCompleted:
		return t.CompletedDate
	case StatusHandover:
		return t.HandoverDate
	}
	return nil
}
