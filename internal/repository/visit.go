package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akave-ai/quoteedge/internal/model"
)

// VisitRepository writes visit records to the Postgres visits table.
type VisitRepository struct {
	pool *pgxpool.Pool
}

// NewVisitRepository returns a VisitRepository using the given pool.
func NewVisitRepository(pool *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{pool: pool}
}

// Insert appends one visit. Rows are never updated.
func (r *VisitRepository) Insert(ctx context.Context, v model.Visit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO visits (method, path, status, duration_ms, referrer, user_agent, ip_hash, visitor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.Method,
		v.Path,
		v.Status,
		v.DurationMS,
		v.Referrer,
		v.UserAgent,
		v.IPHash,
		v.VisitorID,
		v.CreatedAt,
	)
	return err
}

func (r *VisitRepository) Close() error {
	r.pool.Close()
	return nil
}
