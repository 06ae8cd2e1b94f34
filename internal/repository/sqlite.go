package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/akave-ai/quoteedge/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS visits (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	method      TEXT    NOT NULL,
	path        TEXT    NOT NULL,
	status      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	referrer    TEXT,
	user_agent  TEXT,
	ip_hash     TEXT,
	visitor_id  TEXT    NOT NULL,
	created_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS visits_visitor_id_idx ON visits (visitor_id);`

// SQLiteVisitRepository writes visits to a local SQLite file, for development
// and single-node deployments.
type SQLiteVisitRepository struct {
	db *sql.DB
}

// OpenSQLiteVisitRepository opens path (":memory:" works) and creates the
// visits table if needed.
func OpenSQLiteVisitRepository(ctx context.Context, path string) (*SQLiteVisitRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteVisitRepository{db: db}, nil
}

func (r *SQLiteVisitRepository) Insert(ctx context.Context, v model.Visit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO visits (method, path, status, duration_ms, referrer, user_agent, ip_hash, visitor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Method,
		v.Path,
		v.Status,
		v.DurationMS,
		v.Referrer,
		v.UserAgent,
		v.IPHash,
		v.VisitorID,
		v.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	)
	return err
}

func (r *SQLiteVisitRepository) Close() error {
	return r.db.Close()
}
