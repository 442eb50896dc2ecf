package worker

import (
	"context"
	"time"

	"changeTracker/internal/logger"
	"changeTracker/internal/models/task"
	"changeTracker/internal/repository"

	"go.uber.org/zap"
)

// OverdueWorker периодически ищет задачи, у которых срок поставки уже
// прошёл, а статус ещё не дошёл до "Completed". Воркер ничего не меняет,
// только пишет предупреждения: решение о переносе срока за менеджером.
type OverdueWorker struct {
	repo      repository.TaskRepository
	interval  time.Duration
	batchSize int
}

func NewOverdueWorker(repo repository.TaskRepository, interval *time.Duration, batchSize *int) *OverdueWorker {
	var intervalToSet time.Duration
	if interval == nil {
		intervalToSet = 5 * time.Minute
	} else {
		intervalToSet = *interval
	}

	var batchToSet int
	if batchSize == nil {
		batchToSet = 100
	} else {
		batchToSet = *batchSize
	}
	return &OverdueWorker{
		repo:      repo,
		interval:  intervalToSet,
		batchSize: batchToSet,
	}
}

func (w *OverdueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновая проверка сроков поставки", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая проверка останавливается")
			return
		}
	}
}

func (w *OverdueWorker) Check(ctx context.Context) {
	start := time.Now()

	tasks, err := w.repo.GetAll(ctx)
	if err != nil {
		logger.Warn("Worker: ошибка получения задач", zap.Error(err))
		return
	}

	overdueCount := 0
	now := time.Now()

	for _, t := range tasks {
		if !isOverdue(t, now) {
			continue
		}

		logger.Warn("Worker: Задача просрочила срок поставки",
			zap.String("task_id", t.ID.String()),
			zap.String("title", t.Title),
			zap.String("status", string(t.Status)),
			zap.Time("delivery_date", *t.DeliveryDate),
		)
		overdueCount++

		if overdueCount >= w.batchSize {
			break
		}
	}

	logger.Info(
		"Worker: Завершение проверки сроков",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", len(tasks)),
		zap.Int("overdue", overdueCount),
	)
}

// isOverdue — задача в работе (от "Confirmed" до "Working On It"),
// срок поставки назначен и уже позади
func isOverdue(t *task.Task, now time.Time) bool {
	if t.DeliveryDate == nil {
		return false
	}
	switch t.Status {
	case task.StatusConfirmed, task.StatusApproved, task.StatusWorkingOnIt:
		return t.DeliveryDate.Before(now)
	default:
		return false
	}
}
