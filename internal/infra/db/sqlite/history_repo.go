package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/palmview/internal/domain/history"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save inserts or updates an analysis record
func (r *HistoryRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO property_analyses
  (id, session_id, url, status, result_json, error, archive_url, created_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  result_json=EXCLUDED.result_json,
  error=EXCLUDED.error,
  archive_url=EXCLUDED.archive_url;
`
	result, err := rec.ResultJSON()
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q, rec.ID, stringOrDash(rec.SessionID), rec.URL, rec.Status, result, rec.Error, rec.ArchiveURL, createdAt)
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

	const q = `
SELECT id, session_id, url, status, result_json, error, archive_url, created_at
FROM property_analyses
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
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
	const q = `
SELECT id, session_id, url, status, result_json, error, archive_url, created_at
FROM property_analyses
WHERE url=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Count returns the number of stored records.
func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM property_analyses`).Scan(&n)
	return n, err
}
