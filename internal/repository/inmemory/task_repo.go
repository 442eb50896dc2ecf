package inmemory

import (
	"context"
	"sync"

	"changeTracker/internal/logger"
	"changeTracker/internal/models/task"
	repo "changeTracker/internal/repository"

	"github.com/google/uuid"
)

// TaskStorage — потокобезопасное in-memory хранилище задач.
// Снаружи отдаются и принимаются только копии, чтобы чистые движки
// работали со снимками, а не с внутренним состоянием.
type TaskStorage struct {
	storage map[uuid.UUID]*task.Task
	mtx     *sync.RWMutex
	ids     []uuid.UUID // порядок вставки
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.storage[t.ID] = t.Clone()
	s.ids = append(s.ids, t.ID)
	return nil
}

// Update — оптимистичная проверка по версии снимка
func (s *TaskStorage) Update(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != t.Version {
		return repo.ErrVersionConflict
	}

	next := t.Clone()
	next.Version++
	s.storage[t.ID] = next
	t.Version = next.Version
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *TaskStorage) GetAll(ctx context.Context) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*task.Task, 0, len(s.ids))
	for _, id := range s.ids {
		if t, ok := s.storage[id]; ok {
			res = append(res, t.Clone())
		}
	}
	return res, nil
}

func (s *TaskStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

// ReplaceAll — полная замена коллекции (импорт)
func (s *TaskStorage) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.storage = make(map[uuid.UUID]*task.Task, len(tasks))
	s.ids = make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		s.storage[t.ID] = t.Clone()
		s.ids = append(s.ids, t.ID)
	}
	return nil
}
