package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
	"github.com/leafwatch/plant-admin/internal/infrastructure/auth"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = $1
`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at
FROM users
WHERE id = $1
`, id)
	return scanUser(row)
}

func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1,$2,$3,$4)
`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE users
SET password_hash = $2
WHERE id = $1
`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user id=%s", domain.ErrUnauthorized, id)
	}
	return nil
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var user auth.User
	var createdAt time.Time
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = createdAt
	return &user, nil
}
