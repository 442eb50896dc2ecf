package postgres

import (
	"context"
	"fmt"
	"time"

	"changeTracker/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Storage держит общий пул соединений; репозитории задач, мет и
// пользователей создаются поверх него
type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Tasks() *TaskRepo {
	return &TaskRepo{pool: s.pool}
}

func (s *Storage) Metas() *MetaRepo {
	return &MetaRepo{pool: s.pool}
}

func (s *Storage) Users() *UserRepo {
	return &UserRepo{pool: s.pool}
}

func warnIfSlow(start time.Time, operation string) {
	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция",
			zap.Duration("ms", time.Since(start)),
			zap.String("operation", operation))
	}
}
