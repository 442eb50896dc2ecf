package meta

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// TaskAccessMeta — боковая запись владения и утверждения, 1:1 с задачей.
// Хранится отдельно, чтобы мутации задачи и мутации утверждения
// можно было рассматривать независимо.
type TaskAccessMeta struct {
	TaskID          uuid.UUID      `json:"task_id" db:"task_id"`
	OwnerUserID     *uuid.UUID     `json:"owner_user_id,omitempty" db:"owner_user_id"`
	ApprovalStatus  ApprovalStatus `json:"approval_status" db:"approval_status"`
	DecisionNote    string         `json:"decision_note,omitempty" db:"decision_note"`
	DecidedByUserID *uuid.UUID     `json:"decided_by_user_id,omitempty" db:"decided_by_user_id"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty" db:"decided_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

func (m *TaskAccessMeta) Clone() *TaskAccessMeta {
	if m == nil {
		return nil
	}
	c := *m
	if m.OwnerUserID != nil {
		id := *m.OwnerUserID
		c.OwnerUserID = &id
	}
	if m.DecidedByUserID != nil {
		id := *m.DecidedByUserID
		c.DecidedByUserID = &id
	}
	if m.DecidedAt != nil {
		at := *m.DecidedAt
		c.DecidedAt = &at
	}
	return &c
}
