package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"changeTracker/internal/auth"
	"changeTracker/internal/logger"
	"changeTracker/internal/models/user"
	rep "changeTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService struct {
	users          rep.UserRepository
	tokens         *auth.TokenManager
	bootstrapEmail string
}

func NewUserService(users rep.UserRepository, tokens *auth.TokenManager, bootstrapEmail string) UserService {
	return UserService{
		users:          users,
		tokens:         tokens,
		bootstrapEmail: strings.ToLower(strings.TrimSpace(bootstrapEmail)),
	}
}

// Register создаёт пользователя в статусе pending; единственное исключение —
// сконфигурированный bootstrap-аккаунт, он утверждается сразу
func (s *UserService) Register(ctx context.Context, name, email, password, role string) (*user.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, NewValidationError("name", "пустое значение")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, NewValidationError("email", "некорректный адрес")
	}
	if len(password) < 8 {
		return nil, NewValidationError("password", "минимум 8 символов")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	u := &user.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         user.ParseRole(role),
		Status:       user.StatusPending,
		CreatedAt:    time.Now(),
	}

	if s.bootstrapEmail != "" && email == s.bootstrapEmail {
		u.Role = user.RoleSuperUser
		u.Status = user.StatusApproved
		now := time.Now()
		u.ApprovedAt = &now
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, rep.ErrDuplicateEmail) {
			return nil, NewValidationError("email", "уже зарегистрирован")
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	logger.Info("Service: Пользователь зарегистрирован",
		zap.String("user_id", u.ID.String()),
		zap.String("status", string(u.Status)))
	return u, nil
}

// Login пускает в воркфлоу только утверждённые аккаунты;
// pending и rejected получают каждый своё сообщение
func (s *UserService) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return "", nil, NewBusinessError(CodeInvalidLogin, "неверный email или пароль")
		}
		return "", nil, fmt.Errorf("получение пользователя: %w", err)
	}

	if !auth.CheckPassword(password, u.PasswordHash) {
		return "", nil, NewBusinessError(CodeInvalidLogin, "неверный email или пароль")
	}

	switch u.Status {
	case user.StatusPending:
		return "", nil, NewBusinessError(CodeLoginPending,
			"регистрация ещё не одобрена администратором")
	case user.StatusRejected:
		msg := "регистрация отклонена"
		if u.RejectionReason != "" {
			msg = msg + ": " + u.RejectionReason
		}
		return "", nil, NewBusinessError(CodeLoginRejected, msg)
	}

	token, err := s.tokens.Generate(u)
	if err != nil {
		return "", nil, fmt.Errorf("выпуск токена: %w", err)
	}

	logger.Info("Service: Успешный вход", zap.String("user_id", u.ID.String()))
	return token, u, nil
}

// ResolveSession находит профиль по утверждениям токена; при отсутствии
// локального профиля он лениво материализуется из claims
// (роль при повреждённых метаданных деградирует до client)
func (s *UserService) ResolveSession(ctx context.Context, claims *auth.Claims) (*user.User, error) {
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, rep.ErrNotFound) {
			return nil, fmt.Errorf("получение профиля: %w", err)
		}

		u = &user.User{
			ID:        claims.UserID,
			Name:      claims.Name,
			Email:     claims.Email,
			Role:      claims.Role,
			Status:    user.StatusApproved,
			CreatedAt: time.Now(),
		}
		if createErr := s.users.Create(ctx, u); createErr != nil {
			return nil, fmt.Errorf("материализация профиля: %w", createErr)
		}
		logger.Info("Service: Профиль материализован из токена",
			zap.String("user_id", u.ID.String()))
	}

	if u.Status != user.StatusApproved {
		return nil, NewAccessDenied("session")
	}
	return u, nil
}

// ListUsers — просмотр реестра доступен менеджерам
func (s *UserService) ListUsers(ctx context.Context, actor *user.User) ([]*user.User, error) {
	if !actor.IsManager() {
		return nil, NewAccessDenied("list_users")
	}
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	return users, nil
}

// DecideRegistration — решение по регистрации принимает только высшая роль
func (s *UserService) DecideRegistration(ctx context.Context, actor *user.User, userID uuid.UUID, approve bool, reason string) (*user.User, error) {
	if !actor.IsSuperUser() {
		return nil, NewAccessDenied("decide_registration")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewNotFound("пользователь", userID.String())
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	now := time.Now()
	actorID := actor.ID
	if approve {
		u.Status = user.StatusApproved
		u.ApprovedByUserID = &actorID
		u.ApprovedAt = &now
		u.RejectionReason = ""
	} else {
		u.Status = user.StatusRejected
		u.ApprovedByUserID = &actorID
		u.ApprovedAt = nil
		u.RejectionReason = strings.TrimSpace(reason)
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("обновление пользователя: %w", err)
	}

	logger.Info("Service: Решение по регистрации принято",
		zap.String("user_id", userID.String()),
		zap.Bool("approved", approve))
	return u, nil
}

// EnsureBootstrap заводит стартовый super_user аккаунт, если его ещё нет.
// Пароль берётся из окружения; без пароля аккаунт не создаётся.
func (s *UserService) EnsureBootstrap(ctx context.Context, name, password string) error {
	if s.bootstrapEmail == "" {
		return nil
	}

	if _, err := s.users.GetByEmail(ctx, s.bootstrapEmail); err == nil {
		return nil
	} else if !errors.Is(err, rep.ErrNotFound) {
		return fmt.Errorf("проверка bootstrap-аккаунта: %w", err)
	}

	if password == "" {
		logger.Warn("Service: BOOTSTRAP_PASSWORD не задан, стартовый аккаунт не создан")
		return nil
	}
	if name == "" {
		name = "Administrator"
	}

	_, err := s.Register(ctx, name, s.bootstrapEmail, password, string(user.RoleSuperUser))
	return err
}
