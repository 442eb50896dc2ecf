package inmemory

import (
	"context"
	"strings"
	"sync"

	"changeTracker/internal/models/user"
	repo "changeTracker/internal/repository"

	"github.com/google/uuid"
)

// UserStorage — in-memory хранилище пользователей с уникальностью email
type UserStorage struct {
	storage map[uuid.UUID]*user.User
	byEmail map[string]uuid.UUID
	mtx     *sync.RWMutex
	ids     []uuid.UUID
}

func NewUserStorage() *UserStorage {
	return &UserStorage{
		storage: make(map[uuid.UUID]*user.User),
		byEmail: make(map[string]uuid.UUID),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserStorage) Create(ctx context.Context, u *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	email := normalizeEmail(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return repo.ErrDuplicateEmail
	}

	cp := *u
	s.storage[u.ID] = &cp
	s.byEmail[email] = u.ID
	s.ids = append(s.ids, u.ID)
	return nil
}

func (s *UserStorage) Update(ctx context.Context, u *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	old, ok := s.storage[u.ID]
	if !ok {
		return repo.ErrNotFound
	}

	newEmail := normalizeEmail(u.Email)
	oldEmail := normalizeEmail(old.Email)
	if newEmail != oldEmail {
		if _, exists := s.byEmail[newEmail]; exists {
			return repo.ErrDuplicateEmail
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = u.ID
	}

	cp := *u
	s.storage[u.ID] = &cp
	return nil
}

func (s *UserStorage) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStorage) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *s.storage[id]
	return &cp, nil
}

func (s *UserStorage) GetAll(ctx context.Context) ([]*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*user.User, 0, len(s.ids))
	for _, id := range s.ids {
		if u, ok := s.storage[id]; ok {
			cp := *u
			res = append(res, &cp)
		}
	}
	return res, nil
}
