package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"changeTracker/internal/access"
	"changeTracker/internal/export"
	"changeTracker/internal/logger"
	"changeTracker/internal/models/meta"
	"changeTracker/internal/models/task"
	"changeTracker/internal/models/user"
	rep "changeTracker/internal/repository"
	"changeTracker/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskService оркестрирует чистые движки воркфлоу и доступа поверх
// репозиториев: загрузить снимок, прогнать движок, зафиксировать результат
type TaskService struct {
	tasks rep.TaskRepository
	metas rep.MetaRepository
}

func NewTaskService(tasks rep.TaskRepository, metas rep.MetaRepository) TaskService {
	return TaskService{
		tasks: tasks,
		metas: metas,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	return s.tasks.HealthCheck(ctx)
}

// CreateTask — задачу может завести любой аутентифицированный пользователь
func (s *TaskService) CreateTask(ctx context.Context, actor *user.User, title string, changePoints []string, clientName string, requestedDate *time.Time, estimatedHours float64) (*task.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewValidationError("title", "пустое значение")
	}
	if estimatedHours < 0 {
		return nil, NewBusinessError(workflow.CodeInvalidHours, "оценка часов не может быть отрицательной")
	}

	now := time.Now()
	t := task.New(title, changePoints, clientName, requestedDate, estimatedHours, now)
	m := access.MetaForNewTask(t.ID, actor, now)

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}
	if err := s.metas.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("создание меты: %w", err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", t.ID.String()),
		zap.String("owner", actor.ID.String()))
	return t, nil
}

// loadSynced читает обе коллекции и сверяет их; дрейф дописывается обратно.
// Сверка идемпотентна, поэтому её безопасно гонять на каждом чтении.
func (s *TaskService) loadSynced(ctx context.Context, actor *user.User) ([]*task.Task, map[uuid.UUID]*meta.TaskAccessMeta, error) {
	tasks, err := s.tasks.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("получение задач: %w", err)
	}
	metas, err := s.metas.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("получение мет: %w", err)
	}

	res := access.EnsureTaskMetaSync(tasks, actor, metas, time.Now())
	if res.Changed {
		if err := s.metas.ReplaceAll(ctx, res.Next); err != nil {
			// деградация: работаем со сверенным снимком в памяти, не падаем
			logger.Warn("Service: Не удалось сохранить сверенные меты", zap.Error(err))
		}
	}
	return tasks, res.Next, nil
}

// GetVisibleTasks — менеджеры видят всё, клиент только свои задачи
func (s *TaskService) GetVisibleTasks(ctx context.Context, actor *user.User) ([]*task.Task, map[uuid.UUID]*meta.TaskAccessMeta, error) {
	tasks, metas, err := s.loadSynced(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	visible := access.VisibleTasks(tasks, metas, actor)
	return visible, metas, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, actor *user.User, id uuid.UUID) (*task.Task, *meta.TaskAccessMeta, error) {
	t, m, err := s.loadTaskWithMeta(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanViewTask(actor, m) {
		return nil, nil, NewAccessDenied("view_task")
	}
	return t, m, nil
}

func (s *TaskService) loadTaskWithMeta(ctx context.Context, actor *user.User, id uuid.UUID) (*task.Task, *meta.TaskAccessMeta, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, nil, NewNotFound("задача", id.String())
		}
		return nil, nil, fmt.Errorf("получение задачи: %w", err)
	}

	m, err := s.metas.GetByTaskID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			// мета отстала от задачи — синтезируем на месте, как при сверке
			m = access.MetaForNewTask(t.ID, actor, time.Now())
			if upErr := s.metas.Upsert(ctx, m); upErr != nil {
				logger.Warn("Service: Не удалось дозаписать мету", zap.Error(upErr))
			}
		} else {
			return nil, nil, fmt.Errorf("получение меты: %w", err)
		}
	}
	return t, m, nil
}

// Transition выполняет переход статуса: валидация движком, условная запись,
// затем пересчёт статуса утверждения
func (s *TaskService) Transition(ctx context.Context, actor *user.User, id uuid.UUID, req workflow.TransitionRequest, expectedVersion int) (*task.Task, error) {
	t, m, err := s.loadTaskWithMeta(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !access.CanEditTask(actor, m) {
		return nil, NewAccessDenied("transition_task")
	}
	if !actor.IsManager() {
		// переходы статуса — прерогатива менеджеров
		return nil, NewAccessDenied("transition_task")
	}
	if expectedVersion > 0 && expectedVersion != t.Version {
		return nil, NewVersionConflict("задача", id.String())
	}

	next, err := workflow.ApplyTransition(t, req)
	if err != nil {
		return nil, fromWorkflowError(err)
	}

	if err := s.persistMutation(ctx, actor, next, m); err != nil {
		return nil, err
	}

	logger.Info("Service: Переход статуса выполнен",
		zap.String("task_id", id.String()),
		zap.String("to", string(req.NextStatus)))
	return next, nil
}

// EditTask — массовая правка; клиентская роль ограничена описательными полями
func (s *TaskService) EditTask(ctx context.Context, actor *user.User, id uuid.UUID, req workflow.EditRequest, expectedVersion int) (*task.Task, error) {
	t, m, err := s.loadTaskWithMeta(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !access.CanEditTask(actor, m) {
		return nil, NewAccessDenied("edit_task")
	}
	if !actor.IsManager() && !req.DescriptiveOnly() {
		return nil, NewAccessDenied("edit_task_fields")
	}
	if expectedVersion > 0 && expectedVersion != t.Version {
		return nil, NewVersionConflict("задача", id.String())
	}

	next, err := workflow.ApplyEdit(t, req)
	if err != nil {
		return nil, fromWorkflowError(err)
	}

	if err := s.persistMutation(ctx, actor, next, m); err != nil {
		return nil, err
	}
	return next, nil
}

// UpdateHours — учёт часов доступен только менеджерам;
// статус утверждения при этом не трогается
func (s *TaskService) UpdateHours(ctx context.Context, actor *user.User, id uuid.UUID, estimated, logged float64, rate *float64, reason string, expectedVersion int) (*task.Task, error) {
	if !actor.IsManager() {
		return nil, NewAccessDenied("manage_hours")
	}

	t, _, err := s.loadTaskWithMeta(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && expectedVersion != t.Version {
		return nil, NewVersionConflict("задача", id.String())
	}

	next, err := workflow.ApplyHours(t, estimated, logged, rate, reason, time.Now())
	if err != nil {
		return nil, fromWorkflowError(err)
	}

	if err := s.updateTask(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// DecideApproval — явное решение по задаче, только высшая роль.
// Отклонение дописывает запись "rejected" в историю, саму задачу не откатывает.
func (s *TaskService) DecideApproval(ctx context.Context, actor *user.User, id uuid.UUID, approve bool, note string) (*meta.TaskAccessMeta, error) {
	t, m, err := s.loadTaskWithMeta(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	nextMeta, err := access.DecideApproval(m, actor, approve, note, now)
	if err != nil {
		if errors.Is(err, access.ErrAccessDenied) {
			return nil, NewAccessDenied("decide_approval")
		}
		return nil, err
	}

	if !approve {
		historyNote := "rejected"
		if strings.TrimSpace(note) != "" {
			historyNote = "rejected: " + strings.TrimSpace(note)
		}
		next := t.Clone()
		next.History = append(next.History, task.HistoryEntry{
			ID:        uuid.New(),
			Status:    next.Status,
			ChangedAt: now,
			Note:      historyNote,
		})
		next.UpdatedAt = now
		if err := s.updateTask(ctx, next); err != nil {
			return nil, err
		}
	}

	if err := s.metas.Upsert(ctx, nextMeta); err != nil {
		return nil, fmt.Errorf("сохранение меты: %w", err)
	}

	logger.Info("Service: Решение по задаче принято",
		zap.String("task_id", id.String()),
		zap.Bool("approved", approve))
	return nextMeta, nil
}

// DeleteTask удаляет задачу вместе с её мета-записью
func (s *TaskService) DeleteTask(ctx context.Context, actor *user.User, id uuid.UUID) error {
	_, m, err := s.loadTaskWithMeta(ctx, actor, id)
	if err != nil {
		return err
	}
	if !access.CanDeleteTask(actor, m) {
		return NewAccessDenied("delete_task")
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return NewNotFound("задача", id.String())
		}
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if err := s.metas.Delete(ctx, id); err != nil {
		logger.Warn("Service: Не удалось удалить мету задачи",
			zap.String("task_id", id.String()), zap.Error(err))
	}

	logger.Info("Service: Задача удалена", zap.String("task_id", id.String()))
	return nil
}

// ExportTasks выгружает видимые актору задачи в JSON-массив
func (s *TaskService) ExportTasks(ctx context.Context, actor *user.User) (string, error) {
	visible, _, err := s.GetVisibleTasks(ctx, actor)
	if err != nil {
		return "", err
	}
	return export.ExportTasks(visible)
}

// ImportTasks полностью заменяет коллекцию задач; только менеджер
func (s *TaskService) ImportTasks(ctx context.Context, actor *user.User, data []byte) ([]*task.Task, error) {
	if !actor.IsManager() {
		return nil, NewAccessDenied("import_tasks")
	}

	tasks, err := export.ImportTasks(data)
	if err != nil {
		return nil, NewBusinessError(CodeImportError, err.Error())
	}

	if err := s.tasks.ReplaceAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("импорт задач: %w", err)
	}

	// после импорта меты гарантированно сверяются с новой коллекцией
	metas, err := s.metas.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение мет: %w", err)
	}
	res := access.EnsureTaskMetaSync(tasks, actor, metas, time.Now())
	if res.Changed {
		if err := s.metas.ReplaceAll(ctx, res.Next); err != nil {
			return nil, fmt.Errorf("сверка мет после импорта: %w", err)
		}
	}

	logger.Info("Service: Импорт задач завершён", zap.Int("count", len(tasks)))
	return tasks, nil
}

// TaskStats — чистая проекция по видимым задачам
type TaskStats struct {
	Total          int                 `json:"total"`
	ByStatus       map[task.Status]int `json:"by_status"`
	EstimatedHours float64             `json:"estimated_hours"`
	LoggedHours    float64             `json:"logged_hours"`
	EstimatedCost  float64             `json:"estimated_cost"`
}

func (s *TaskService) Stats(ctx context.Context, actor *user.User) (*TaskStats, error) {
	visible, _, err := s.GetVisibleTasks(ctx, actor)
	if err != nil {
		return nil, err
	}

	stats := &TaskStats{ByStatus: make(map[task.Status]int)}
	for _, t := range visible {
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.EstimatedHours += t.EstimatedHours
		stats.LoggedHours += t.LoggedHours
		if t.HourlyRate != nil {
			stats.EstimatedCost += t.EstimatedHours * *t.HourlyRate
		}
	}
	return stats, nil
}

// persistMutation пишет задачу и применяет побочный эффект к статусу
// утверждения: сброс в pending либо авто-утверждение менеджером
func (s *TaskService) persistMutation(ctx context.Context, actor *user.User, next *task.Task, m *meta.TaskAccessMeta) error {
	if err := s.updateTask(ctx, next); err != nil {
		return err
	}

	nextMeta := access.ApplyMutationSideEffect(m, actor, time.Now())
	if err := s.metas.Upsert(ctx, nextMeta); err != nil {
		return fmt.Errorf("сохранение меты: %w", err)
	}
	return nil
}

func (s *TaskService) updateTask(ctx context.Context, next *task.Task) error {
	if err := s.tasks.Update(ctx, next); err != nil {
		switch {
		case errors.Is(err, rep.ErrVersionConflict):
			logger.Warn("Service: Конфликт версий при записи задачи",
				zap.String("task_id", next.ID.String()))
			return NewVersionConflict("задача", next.ID.String())
		case errors.Is(err, rep.ErrNotFound):
			return NewNotFound("задача", next.ID.String())
		default:
			return fmt.Errorf("сохранение задачи: %w", err)
		}
	}
	return nil
}
