package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akave-ai/quoteedge/internal/model"
)

func strPtr(s string) *string { return &s }

// listByVisitor returns a visitor's visits, oldest first.
func listByVisitor(ctx context.Context, r *SQLiteVisitRepository, visitorID string) ([]model.Visit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT method, path, status, duration_ms, referrer, user_agent, ip_hash, visitor_id
		FROM visits
		WHERE visitor_id = ?
		ORDER BY id`, visitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Visit
	for rows.Next() {
		var v model.Visit
		if err := rows.Scan(
			&v.Method,
			&v.Path,
			&v.Status,
			&v.DurationMS,
			&v.Referrer,
			&v.UserAgent,
			&v.IPHash,
			&v.VisitorID,
		); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// countByVisitor returns how many visits a visitor id has recorded.
func countByVisitor(ctx context.Context, r *VisitRepository, visitorID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM visits WHERE visitor_id = $1`, visitorID).Scan(&n)
	return n, err
}

func sampleVisit(visitor string) model.Visit {
	return model.Visit{
		Method:     "GET",
		Path:       "/api/quote",
		Status:     200,
		DurationMS: 12,
		UserAgent:  strPtr("curl/8.0"),
		IPHash:     strPtr("ab12"),
		VisitorID:  visitor,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteVisitRepository_InsertAndList(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLiteVisitRepository(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	if err := repo.Insert(ctx, sampleVisit("v-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, sampleVisit("v-2")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := listByVisitor(ctx, repo, "v-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one visit, got %d", len(list))
	}
	got := list[0]
	if got.Path != "/api/quote" || got.Status != 200 || got.DurationMS != 12 {
		t.Fatalf("unexpected visit %+v", got)
	}
	if got.Referrer != nil {
		t.Fatalf("expected NULL referrer, got %q", *got.Referrer)
	}
	if got.UserAgent == nil || *got.UserAgent != "curl/8.0" {
		t.Fatalf("unexpected user agent %v", got.UserAgent)
	}
}

func TestStreamValues_FlattensNils(t *testing.T) {
	v := sampleVisit("v-9")
	vals := streamValues(v)
	if vals["referrer"] != "" || vals["user_agent"] != "curl/8.0" || vals["status"] != "200" {
		t.Fatalf("unexpected values %v", vals)
	}
	if vals["created_at"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %v", vals["created_at"])
	}
}

// Requires a disposable database with the visits migration applied.
func TestVisitRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("QUOTEEDGE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("QUOTEEDGE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	repo := NewVisitRepository(pool)
	defer repo.Close()

	visitor := "test-" + time.Now().Format("150405.000000")
	if err := repo.Insert(ctx, sampleVisit(visitor)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, err := countByVisitor(ctx, repo, visitor)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 visit, got %d", n)
	}
}
