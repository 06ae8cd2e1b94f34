package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/akave-ai/quoteedge/internal/model"
)

// VisitStream appends visits to a Redis stream for downstream consumers.
type VisitStream struct {
	client *redis.Client
	stream string
}

// NewVisitStream connects to addr and pings it.
func NewVisitStream(ctx context.Context, opts *redis.Options, stream string) (*VisitStream, error) {
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &VisitStream{client: client, stream: stream}, nil
}

func (s *VisitStream) Insert(ctx context.Context, v model.Visit) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: streamValues(v),
	}).Err()
}

func (s *VisitStream) Close() error {
	return s.client.Close()
}

// streamValues flattens v into stream fields. Nil pointers become empty
// strings.
func streamValues(v model.Visit) map[string]any {
	return map[string]any{
		"method":      v.Method,
		"path":        v.Path,
		"status":      strconv.Itoa(v.Status),
		"duration_ms": strconv.FormatInt(v.DurationMS, 10),
		"referrer":    deref(v.Referrer),
		"user_agent":  deref(v.UserAgent),
		"ip_hash":     deref(v.IPHash),
		"visitor_id":  v.VisitorID,
		"created_at":  v.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
