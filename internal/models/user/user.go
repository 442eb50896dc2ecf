package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient    Role = "client"
	RoleAdmin     Role = "admin"
	RoleSuperUser Role = "super_user"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Status       Status    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// связь с утвердившим регистрацию
	ApprovedByUserID *uuid.UUID `json:"approved_by_user_id,omitempty" db:"approved_by_user_id"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectionReason  string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
}

// IsManager — admin или super_user, привилегирован над клиентами
func (u *User) IsManager() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.Role == RoleSuperUser
}

// IsSuperUser — высшая роль: решения по задачам и регистрациям, удаления
func (u *User) IsSuperUser() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleSuperUser
}

func IsValidRole(r Role) bool {
	return r == RoleClient || r == RoleAdmin || r == RoleSuperUser
}

// ParseRole возвращает роль из строки, по умолчанию client
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSuperUser:
		return RoleSuperUser
	default:
		return RoleClient
	}
}
