package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"changeTracker/internal/auth"
	"changeTracker/internal/config"
	"changeTracker/internal/handlers"
	"changeTracker/internal/logger"
	"changeTracker/internal/middleware"
	"changeTracker/internal/repository"
	"changeTracker/internal/repository/inmemory"
	"changeTracker/internal/repository/postgres"
	"changeTracker/internal/service"
	"changeTracker/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type App struct {
	config      *config.Config
	server      *http.Server
	router      *chi.Mux
	taskService *service.TaskService
	userService *service.UserService
	worker      *worker.OverdueWorker
	shutdowns   []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	taskRepo, metaRepo, userRepo, err := a.initRepositories(ctx)
	if err != nil {
		return err
	}

	tokens := auth.NewTokenManager(a.config.Auth.JWTSecret, a.config.Auth.TokenTTL)

	taskService := service.NewTaskService(taskRepo, metaRepo)
	userService := service.NewUserService(userRepo, tokens, a.config.Auth.BootstrapEmail)
	a.taskService = &taskService
	a.userService = &userService

	if err := a.userService.EnsureBootstrap(ctx, a.config.Auth.BootstrapName, os.Getenv("BOOTSTRAP_PASSWORD")); err != nil {
		return fmt.Errorf("создание стартового супер-пользователя: %w", err)
	}

	if a.config.Worker.Enabled {
		interval := a.config.Worker.Interval
		batch := a.config.Worker.BatchSize
		a.worker = worker.NewOverdueWorker(taskRepo, &interval, &batch)
	}

	a.router = a.buildRouter(tokens)
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return nil
}

func (a *App) initRepositories(ctx context.Context) (repository.TaskRepository, repository.MetaRepository, repository.UserRepository, error) {
	switch a.config.Repository.Type {
	case "postgres":
		if err := postgres.RunMigrations(a.config.Database.URL, a.config.Database.MigrationsPath); err != nil {
			return nil, nil, nil, fmt.Errorf("миграции базы данных: %w", err)
		}

		storage, err := postgres.New(ctx, a.config.Database.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("подключение к базе данных: %w", err)
		}

		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("Закрытие пула соединений с базой данных...")
			storage.Close()
		})

		return storage.Tasks(), storage.Metas(), storage.Users(), nil
	case "", "inmemory":
		logger.Info("Repository: используется хранилище в памяти")
		return inmemory.NewTaskStorage(), inmemory.NewMetaStorage(), inmemory.NewUserStorage(), nil
	default:
		return nil, nil, nil, fmt.Errorf("неизвестный тип хранилища: %q", a.config.Repository.Type)
	}
}

func (a *App) buildRouter(tokens *auth.TokenManager) *chi.Mux {
	taskHandler := handlers.NewTaskHandler(a.taskService)
	authHandler := handlers.NewAuthHandler(a.userService)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.RateLimit(100))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", taskHandler.HealthCheck)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, a.userService))
			r.Get("/me", authHandler.Me) // GET /auth/me
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.Auth(tokens, a.userService))

		r.Get("/", taskHandler.GetTasks)  // GET /tasks
		r.Post("/", taskHandler.PostTask) // POST /tasks

		r.Get("/export", taskHandler.ExportTasks) // GET /tasks/export
		r.Get("/stats", taskHandler.GetStats)     // GET /tasks/stats

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireManager)
			r.Post("/import", taskHandler.ImportTasks) // POST /tasks/import
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", taskHandler.GetTaskByID)   // GET /tasks/{id}
			r.Put("/", taskHandler.PutTask)       // PUT /tasks/{id}
			r.Delete("/", taskHandler.DeleteTask) // DELETE /tasks/{id}

			r.Post("/transition", taskHandler.PostTransition) // POST /tasks/{id}/transition
			r.Put("/hours", taskHandler.PutHours)             // PUT /tasks/{id}/hours

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSuperUser)
				r.Post("/approval", taskHandler.PostApprovalDecision) // POST /tasks/{id}/approval
			})
		})
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(middleware.Auth(tokens, a.userService))
		r.Use(middleware.RequireManager)

		r.Get("/", authHandler.GetUsers) // GET /admin/users

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperUser)
			r.Post("/{id}/decision", authHandler.PostRegistrationDecision) // POST /admin/users/{id}/decision
		})
	})

	return r
}

func (a *App) Run(ctx context.Context) error {
	if a.worker != nil {
		go a.worker.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Получен сигнал остановки, завершаем работу...")
	case err := <-errCh:
		return fmt.Errorf("ошибка сервера: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при остановке сервера", err)
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}

	return nil
}
