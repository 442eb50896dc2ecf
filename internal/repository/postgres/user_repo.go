package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"changeTracker/internal/models/user"
	repo "changeTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `id, name, email, password_hash, role, status, created_at,
	approved_by_user_id, approved_at, rejection_reason`

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	start := time.Now()

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Name, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash,
		u.Role, u.Status, u.CreatedAt,
		u.ApprovedByUserID, u.ApprovedAt, nullString(u.RejectionReason))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repo.ErrDuplicateEmail
		}
		return fmt.Errorf("создание пользователя: %w", err)
	}

	warnIfSlow(start, "create_user")
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	query := `UPDATE users
		SET name = $1,
			email = $2,
			password_hash = $3,
			role = $4,
			status = $5,
			approved_by_user_id = $6,
			approved_at = $7,
			rejection_reason = $8
		WHERE id = $9`

	tag, err := r.pool.Exec(ctx, query,
		u.Name, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash,
		u.Role, u.Status,
		u.ApprovedByUserID, u.ApprovedAt, nullString(u.RejectionReason), u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repo.ErrDuplicateEmail
		}
		return fmt.Errorf("обновление пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя по email: %w", err)
	}
	return u, nil
}

func (r *UserRepo) GetAll(ctx context.Context) ([]*user.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение строки пользователя: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var reason *string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.CreatedAt, &u.ApprovedByUserID, &u.ApprovedAt, &reason)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		u.RejectionReason = *reason
	}
	return &u, nil
}
