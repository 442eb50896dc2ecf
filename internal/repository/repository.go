package repository

import (
	"context"
	"errors"

	"changeTracker/internal/models/meta"
	"changeTracker/internal/models/task"
	"changeTracker/internal/models/user"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("запись не найдена")
	ErrVersionConflict = errors.New("конфликт версий")
	ErrDuplicateEmail  = errors.New("email уже занят")
)

// TaskRepository — контракт хранилища задач. Update выполняет оптимистичную
// проверку: версия в аргументе должна совпадать с сохранённой, иначе
// ErrVersionConflict; успешная запись инкрементирует версию.
type TaskRepository interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	GetAll(ctx context.Context) ([]*task.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceAll(ctx context.Context, tasks []*task.Task) error
}

// MetaRepository — хранилище боковых записей доступа/утверждения
type MetaRepository interface {
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*meta.TaskAccessMeta, error)
	GetAll(ctx context.Context) (map[uuid.UUID]*meta.TaskAccessMeta, error)
	Upsert(ctx context.Context, m *meta.TaskAccessMeta) error
	Delete(ctx context.Context, taskID uuid.UUID) error
	ReplaceAll(ctx context.Context, metas map[uuid.UUID]*meta.TaskAccessMeta) error
}

// UserRepository — хранилище пользователей
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	Update(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetAll(ctx context.Context) ([]*user.User, error)
}
