package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leafwatch/plant-admin/internal/core/domain"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS plant_classifications (
	id TEXT PRIMARY KEY,
	classification TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_plant_classifications_created_at ON plant_classifications(created_at DESC);

CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const recordColumns = "id, classification, confidence, created_at, image_url, location"

func (r *RecordRepository) ListAll(ctx context.Context, ascending bool) ([]domain.ClassificationRecord, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM plant_classifications
ORDER BY created_at %s
`, recordColumns, direction))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}

func (r *RecordRepository) ListSince(ctx context.Context, since time.Time) ([]domain.ClassificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM plant_classifications
WHERE created_at >= $1
ORDER BY created_at ASC
`, since)
	if err != nil {
		return nil, fmt.Errorf("list records since: %w", err)
	}
	return collectRecords(rows)
}

func (r *RecordRepository) ListBetween(ctx context.Context, from, to time.Time) ([]domain.ClassificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM plant_classifications
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC
`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list records between: %w", err)
	}
	return collectRecords(rows)
}

func (r *RecordRepository) ListRecent(ctx context.Context, limit int) ([]domain.ClassificationRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM plant_classifications
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}
	return collectRecords(rows)
}

func (r *RecordRepository) Create(ctx context.Context, record domain.ClassificationRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO plant_classifications (id, classification, confidence, created_at, image_url, location)
VALUES ($1,$2,$3,$4,$5,$6)
`, record.ID, string(record.Classification), record.Confidence, record.CreatedAt, record.ImageURL, record.Location)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM plant_classifications
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id=%s", domain.ErrRecordNotFound, id)
	}
	return nil
}

// DeleteMany removes the given id set in one statement and reports how many
// rows actually went away. Missing ids are not an error.
func (r *RecordRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
DELETE FROM plant_classifications
WHERE id IN (%s)
`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete records rows affected: %w", err)
	}
	return int(rows), nil
}

func collectRecords(rows *sql.Rows) ([]domain.ClassificationRecord, error) {
	defer rows.Close()

	out := make([]domain.ClassificationRecord, 0)
	for rows.Next() {
		var record domain.ClassificationRecord
		var classification string
		if err := rows.Scan(
			&record.ID, &classification, &record.Confidence,
			&record.CreatedAt, &record.ImageURL, &record.Location,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		record.Classification = domain.Classification(classification)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
