package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/palmview/internal/domain/history"
)

const (
	saveQuery = `
INSERT INTO property_analyses
  (id, session_id, url, status, result_json, error, archive_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  result_json=EXCLUDED.result_json,
  error=EXCLUDED.error,
  archive_url=EXCLUDED.archive_url;
`
	pageQuery = `
SELECT id, session_id, url, status, result_json, error, archive_url, created_at
FROM property_analyses
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;
`
	latestQuery = `
SELECT id, session_id, url, status, result_json, error, archive_url, created_at
FROM property_analyses
WHERE url=$1
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	countQuery = `SELECT COUNT(*) FROM property_analyses`
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save inserts or updates an analysis record
func (r *HistoryRepository) Save(ctx context.Context, rec *domain.Record) error {
	result, err := rec.ResultJSON()
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, saveQuery, rec.ID, stringOrDash(rec.SessionID), rec.URL, rec.Status, result, rec.Error, rec.ArchiveURL, createdAt)
	return err
}

// Paginate returns a page of records ordered by created_at desc
func (r *HistoryRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx, pageQuery, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestByURL returns the latest record for a url
func (r *HistoryRepository) LatestByURL(ctx context.Context, url string) (*domain.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, latestQuery, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Count returns the number of stored records.
func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countQuery).Scan(&n)
	return n, err
}
