package handlers

import (
	"context"
	"time"

	"changeTracker/internal/auth"
	"changeTracker/internal/models/meta"
	"changeTracker/internal/models/task"
	"changeTracker/internal/models/user"
	"changeTracker/internal/service"
	"changeTracker/internal/workflow"

	"github.com/google/uuid"
)

type TaskService interface {
	HealthCheck(ctx context.Context) error
	CreateTask(ctx context.Context, actor *user.User, title string, changePoints []string, clientName string, requestedDate *time.Time, estimatedHours float64) (*task.Task, error)
	GetVisibleTasks(ctx context.Context, actor *user.User) ([]*task.Task, map[uuid.UUID]*meta.TaskAccessMeta, error)
	GetTaskByID(ctx context.Context, actor *user.User, id uuid.UUID) (*task.Task, *meta.TaskAccessMeta, error)
	Transition(ctx context.Context, actor *user.User, id uuid.UUID, req workflow.TransitionRequest, expectedVersion int) (*task.Task, error)
	EditTask(ctx context.Context, actor *user.User, id uuid.UUID, req workflow.EditRequest, expectedVersion int) (*task.Task, error)
	UpdateHours(ctx context.Context, actor *user.User, id uuid.UUID, estimated, logged float64, rate *float64, reason string, expectedVersion int) (*task.Task, error)
	DecideApproval(ctx context.Context, actor *user.User, id uuid.UUID, approve bool, note string) (*meta.TaskAccessMeta, error)
	DeleteTask(ctx context.Context, actor *user.User, id uuid.UUID) error
	ExportTasks(ctx context.Context, actor *user.User) (string, error)
	ImportTasks(ctx context.Context, actor *user.User, data []byte) ([]*task.Task, error)
	Stats(ctx context.Context, actor *user.User) (*service.TaskStats, error)
}

type UserService interface {
	Register(ctx context.Context, name, email, password, role string) (*user.User, error)
	Login(ctx context.Context, email, password string) (string, *user.User, error)
	ResolveSession(ctx context.Context, claims *auth.Claims) (*user.User, error)
	ListUsers(ctx context.Context, actor *user.User) ([]*user.User, error)
	DecideRegistration(ctx context.Context, actor *user.User, userID uuid.UUID, approve bool, reason string) (*user.User, error)
}
