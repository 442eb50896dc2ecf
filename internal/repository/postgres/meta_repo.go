package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"changeTracker/internal/models/meta"
	repo "changeTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MetaRepo struct {
	pool *pgxpool.Pool
}

const metaColumns = `task_id, owner_user_id, approval_status, decision_note,
	decided_by_user_id, decided_at, updated_at`

func (r *MetaRepo) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*meta.TaskAccessMeta, error) {
	query := `SELECT ` + metaColumns + ` FROM task_access_meta WHERE task_id = $1`

	m, err := scanMeta(r.pool.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение меты: %w", err)
	}
	return m, nil
}

func (r *MetaRepo) GetAll(ctx context.Context) (map[uuid.UUID]*meta.TaskAccessMeta, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+metaColumns+` FROM task_access_meta`)
	if err != nil {
		return nil, fmt.Errorf("получение мет: %w", err)
	}
	defer rows.Close()

	res := make(map[uuid.UUID]*meta.TaskAccessMeta)
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение строки меты: %w", err)
		}
		res[m.TaskID] = m
	}
	return res, rows.Err()
}

func (r *MetaRepo) Upsert(ctx context.Context, m *meta.TaskAccessMeta) error {
	start := time.Now()

	query := `INSERT INTO task_access_meta (` + metaColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (task_id) DO UPDATE SET
			owner_user_id = EXCLUDED.owner_user_id,
			approval_status = EXCLUDED.approval_status,
			decision_note = EXCLUDED.decision_note,
			decided_by_user_id = EXCLUDED.decided_by_user_id,
			decided_at = EXCLUDED.decided_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		m.TaskID, m.OwnerUserID, m.ApprovalStatus, nullString(m.DecisionNote),
		m.DecidedByUserID, m.DecidedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("сохранение меты: %w", err)
	}

	warnIfSlow(start, "upsert_meta")
	return nil
}

func (r *MetaRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM task_access_meta WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("удаление меты: %w", err)
	}
	return nil
}

func (r *MetaRepo) ReplaceAll(ctx context.Context, metas map[uuid.UUID]*meta.TaskAccessMeta) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM task_access_meta`); err != nil {
		return fmt.Errorf("очистка мет: %w", err)
	}

	insert := `INSERT INTO task_access_meta (` + metaColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, m := range metas {
		_, err := tx.Exec(ctx, insert,
			m.TaskID, m.OwnerUserID, m.ApprovalStatus, nullString(m.DecisionNote),
			m.DecidedByUserID, m.DecidedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("вставка меты %s: %w", m.TaskID, err)
		}
	}

	return tx.Commit(ctx)
}

func scanMeta(row rowScanner) (*meta.TaskAccessMeta, error) {
	var m meta.TaskAccessMeta
	var note *string
	err := row.Scan(&m.TaskID, &m.OwnerUserID, &m.ApprovalStatus, &note,
		&m.DecidedByUserID, &m.DecidedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if note != nil {
		m.DecisionNote = *note
	}
	return &m, nil
}
