package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"changeTracker/internal/logger"
	"changeTracker/internal/models/task"
	repo "changeTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

const taskColumns = `id, title, change_points, client_name, requested_date, status,
	client_review_date, delivery_date, confirmed_date, approved_date,
	start_date, completed_date, handover_date,
	estimated_hours, logged_hours, hourly_rate,
	created_at, updated_at, version`

func (r *TaskRepo) HealthCheck(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	start := time.Now()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.Title, t.ChangePoints, nullString(t.ClientName), t.RequestedDate, t.Status,
		t.ClientReviewDate, t.DeliveryDate, t.ConfirmedDate, t.ApprovedDate,
		t.StartDate, t.CompletedDate, t.HandoverDate,
		t.EstimatedHours, t.LoggedHours, t.HourlyRate,
		t.CreatedAt, t.UpdatedAt, t.Version)
	if err != nil {
		logger.Error("Repository: Создание задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("создание задачи: %w", err)
	}

	if err := upsertLedgers(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	warnIfSlow(start, "create_task")
	return nil
}

// Update — условная запись по версии: при расхождении ни одна строка
// не обновляется и наружу уходит ErrVersionConflict
func (r *TaskRepo) Update(ctx context.Context, t *task.Task) error {
	start := time.Now()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE tasks
		SET title = $1,
			change_points = $2,
			client_name = $3,
			requested_date = $4,
			status = $5,
			client_review_date = $6,
			delivery_date = $7,
			confirmed_date = $8,
			approved_date = $9,
			start_date = $10,
			completed_date = $11,
			handover_date = $12,
			estimated_hours = $13,
			logged_hours = $14,
			hourly_rate = $15,
			updated_at = $16,
			version = version + 1
		WHERE id = $17 AND version = $18
		RETURNING version`

	err = tx.QueryRow(ctx, query,
		t.Title, t.ChangePoints, nullString(t.ClientName), t.RequestedDate, t.Status,
		t.ClientReviewDate, t.DeliveryDate, t.ConfirmedDate, t.ApprovedDate,
		t.StartDate, t.CompletedDate, t.HandoverDate,
		t.EstimatedHours, t.LoggedHours, t.HourlyRate,
		t.UpdatedAt, t.ID, t.Version).Scan(&t.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, checkErr := r.exists(ctx, t.ID)
			if checkErr == nil && !exists {
				return repo.ErrNotFound
			}
			logger.Warn("Repository: Конфликт версий при обновлении задачи",
				zap.String("task_id", t.ID.String()),
				zap.Int("expected_version", t.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Обновление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("обновление задачи: %w", err)
	}

	if err := upsertLedgers(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	warnIfSlow(start, "update_task")
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	if err := r.loadLedgers(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TaskRepo) GetAll(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение строки задачи: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("обход строк: %w", err)
	}

	for _, t := range tasks {
		if err := r.loadLedgers(ctx, t); err != nil {
			return nil, err
		}
	}

	warnIfSlow(start, "get_all_tasks")
	return tasks, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	// журналы и мета удаляются каскадом
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: Удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnIfSlow(start, "delete_task")
	return nil
}

func (r *TaskRepo) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	start := time.Now()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("очистка задач: %w", err)
	}

	insert := `INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	for _, t := range tasks {
		_, err := tx.Exec(ctx, insert,
			t.ID, t.Title, t.ChangePoints, nullString(t.ClientName), t.RequestedDate, t.Status,
			t.ClientReviewDate, t.DeliveryDate, t.ConfirmedDate, t.ApprovedDate,
			t.StartDate, t.CompletedDate, t.HandoverDate,
			t.EstimatedHours, t.LoggedHours, t.HourlyRate,
			t.CreatedAt, t.UpdatedAt, t.Version)
		if err != nil {
			return fmt.Errorf("вставка задачи %s: %w", t.ID, err)
		}
		if err := upsertLedgers(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	warnIfSlow(start, "replace_all_tasks")
	return nil
}

func (r *TaskRepo) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// upsertLedgers дописывает журналы идемпотентно: записи уникальны по
// (task_id, entry_id), повтор при импорте/replay просто игнорируется
func upsertLedgers(ctx context.Context, tx pgx.Tx, t *task.Task) error {
	for _, h := range t.History {
		_, err := tx.Exec(ctx,
			`INSERT INTO task_history (task_id, entry_id, status, changed_at, note)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (task_id, entry_id) DO NOTHING`,
			t.ID, h.ID, h.Status, h.ChangedAt, nullString(h.Note))
		if err != nil {
			return fmt.Errorf("запись истории: %w", err)
		}
	}
	for _, rev := range t.HourRevisions {
		_, err := tx.Exec(ctx,
			`INSERT INTO task_hour_revisions (task_id, entry_id, previous_estimated_hours, next_estimated_hours, changed_at, reason)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (task_id, entry_id) DO NOTHING`,
			t.ID, rev.ID, rev.PreviousEstimatedHours, rev.NextEstimatedHours, rev.ChangedAt, nullString(rev.Reason))
		if err != nil {
			return fmt.Errorf("запись ревизии часов: %w", err)
		}
	}
	return nil
}

func (r *TaskRepo) loadLedgers(ctx context.Context, t *task.Task) error {
	rows, err := r.pool.Query(ctx,
		`SELECT entry_id, status, changed_at, COALESCE(note, '')
		 FROM task_history WHERE task_id = $1 ORDER BY changed_at, entry_id`, t.ID)
	if err != nil {
		return fmt.Errorf("чтение истории: %w", err)
	}
	defer rows.Close()

	t.History = nil
	for rows.Next() {
		var h task.HistoryEntry
		if err := rows.Scan(&h.ID, &h.Status, &h.ChangedAt, &h.Note); err != nil {
			return fmt.Errorf("чтение строки истории: %w", err)
		}
		t.History = append(t.History, h)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("обход истории: %w", err)
	}

	revRows, err := r.pool.Query(ctx,
		`SELECT entry_id, previous_estimated_hours, next_estimated_hours, changed_at, COALESCE(reason, '')
		 FROM task_hour_revisions WHERE task_id = $1 ORDER BY changed_at, entry_id`, t.ID)
	if err != nil {
		return fmt.Errorf("чтение ревизий часов: %w", err)
	}
	defer revRows.Close()

	t.HourRevisions = nil
	for revRows.Next() {
		var rev task.HourRevision
		if err := revRows.Scan(&rev.ID, &rev.PreviousEstimatedHours, &rev.NextEstimatedHours, &rev.ChangedAt, &rev.Reason); err != nil {
			return fmt.Errorf("чтение строки ревизии: %w", err)
		}
		t.HourRevisions = append(t.HourRevisions, rev)
	}
	return revRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task
	var clientName *string
	err := row.Scan(
		&t.ID, &t.Title, &t.ChangePoints, &clientName, &t.RequestedDate, &t.Status,
		&t.ClientReviewDate, &t.DeliveryDate, &t.ConfirmedDate, &t.ApprovedDate,
		&t.StartDate, &t.CompletedDate, &t.HandoverDate,
		&t.EstimatedHours, &t.LoggedHours, &t.HourlyRate,
		&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if err != nil {
		return nil, err
	}
	if clientName != nil {
		t.ClientName = *clientName
	}
	return &t, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
