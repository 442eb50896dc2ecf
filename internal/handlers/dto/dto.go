package dto

import (
	"time"

	"changeTracker/internal/models/meta"
	"changeTracker/internal/models/task"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title          string   `json:"title"`
	ChangePoints   []string `json:"change_points"`
	ClientName     string   `json:"client_name"`
	RequestedDate  *string  `json:"requested_date,omitempty"`
	EstimatedHours float64  `json:"estimated_hours"`
}

type TransitionRequest struct {
	NextStatus     string   `json:"next_status"`
	Note           string   `json:"note"`
	StatusDate     *string  `json:"status_date,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	DeliveryDate   *string  `json:"delivery_date,omitempty"`
	Version        int      `json:"version"`
}

type EditTaskRequest struct {
	Title          *string           `json:"title,omitempty"`
	ChangePoints   []string          `json:"change_points,omitempty"`
	ClientName     *string           `json:"client_name,omitempty"`
	RequestedDate  *string           `json:"requested_date,omitempty"`
	Status         *string           `json:"status,omitempty"`
	MilestoneDates map[string]string `json:"milestone_dates,omitempty"`
	DeliveryDate   *string           `json:"delivery_date,omitempty"`
	EstimatedHours *float64          `json:"estimated_hours,omitempty"`
	LoggedHours    *float64          `json:"logged_hours,omitempty"`
	HourlyRate     *float64          `json:"hourly_rate,omitempty"`
	Note           string            `json:"note"`
	Version        int               `json:"version"`
}

type HoursRequest struct {
	EstimatedHours float64  `json:"estimated_hours"`
	LoggedHours    float64  `json:"logged_hours"`
	HourlyRate     *float64 `json:"hourly_rate,omitempty"`
	Reason         string   `json:"reason"`
	Version        int      `json:"version"`
}

type ApprovalDecisionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserDecisionRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// TaskResponse — задача вместе со статусом утверждения из мета-записи
type TaskResponse struct {
	*task.Task
	OwnerUserID    *uuid.UUID          `json:"owner_user_id,omitempty"`
	ApprovalStatus meta.ApprovalStatus `json:"approval_status,omitempty"`
	DecisionNote   string              `json:"decision_note,omitempty"`
}

func FromTask(t *task.Task, m *meta.TaskAccessMeta) TaskResponse {
	resp := TaskResponse{Task: t}
	if m != nil {
		resp.OwnerUserID = m.OwnerUserID
		resp.ApprovalStatus = m.ApprovalStatus
		resp.DecisionNote = m.DecisionNote
	}
	return resp
}

func FromTaskList(tasks []*task.Task, metas map[uuid.UUID]*meta.TaskAccessMeta) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t, metas[t.ID])
	}
	return result
}

// ParseDate принимает "2006-01-02" или RFC3339
func ParseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, *s); err == nil {
			return &parsed
		}
	}
	return nil
}
