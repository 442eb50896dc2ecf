package inmemory

import (
	"context"
	"sync"

	"changeTracker/internal/models/meta"
	repo "changeTracker/internal/repository"

	"github.com/google/uuid"
)

// MetaStorage — in-memory хранилище мета-записей доступа, ключ — id задачи
type MetaStorage struct {
	storage map[uuid.UUID]*meta.TaskAccessMeta
	mtx     *sync.RWMutex
}

func NewMetaStorage() *MetaStorage {
	return &MetaStorage{
		storage: make(map[uuid.UUID]*meta.TaskAccessMeta),
		mtx:     &sync.RWMutex{},
	}
}

func (s *MetaStorage) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*meta.TaskAccessMeta, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	m, ok := s.storage[taskID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MetaStorage) GetAll(ctx context.Context) (map[uuid.UUID]*meta.TaskAccessMeta, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make(map[uuid.UUID]*meta.TaskAccessMeta, len(s.storage))
	for id, m := range s.storage {
		res[id] = m.Clone()
	}
	return res, nil
}

func (s *MetaStorage) Upsert(ctx context.Context, m *meta.TaskAccessMeta) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.storage[m.TaskID] = m.Clone()
	return nil
}

func (s *MetaStorage) Delete(ctx context.Context, taskID uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.storage, taskID)
	return nil
}

func (s *MetaStorage) ReplaceAll(ctx context.Context, metas map[uuid.UUID]*meta.TaskAccessMeta) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.storage = make(map[uuid.UUID]*meta.TaskAccessMeta, len(metas))
	for id, m := range metas {
		s.storage[id] = m.Clone()
	}
	return nil
}
