package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, first_name, last_name, date_of_birth, phone, address, updated_at
FROM profiles
WHERE id = $1
`, id)

	var profile domain.Profile
	err := row.Scan(
		&profile.ID, &profile.FirstName, &profile.LastName,
		&profile.DateOfBirth, &profile.Phone, &profile.Address, &profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", domain.ErrProfileNotFound, id)
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (id, first_name, last_name, date_of_birth, phone, address, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	date_of_birth = EXCLUDED.date_of_birth,
	phone = EXCLUDED.phone,
	address = EXCLUDED.address,
	updated_at = EXCLUDED.updated_at
`, profile.ID, profile.FirstName, profile.LastName, profile.DateOfBirth, profile.Phone, profile.Address, now)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	profile.UpdatedAt = now
	return nil
}
