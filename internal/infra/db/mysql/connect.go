package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Connect opens a pool for dsn. The DSN must carry parseTime=true so
// created_at scans into time.Time.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS property_analyses (
  id VARCHAR(36) NOT NULL PRIMARY KEY,
  session_id VARCHAR(64) NOT NULL,
  url VARCHAR(2048) NOT NULL,
  status VARCHAR(16) NOT NULL,
  result_json JSON NOT NULL,
  error TEXT NOT NULL,
  archive_url VARCHAR(2048) NOT NULL,
  created_at DATETIME(6) NOT NULL,
  KEY idx_property_analyses_created (created_at),
  KEY idx_property_analyses_url (url(255), created_at)
);`

// Migrate creates the history table when it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
