package visit

import (
	"time"
	"unicode/utf8"

	"github.com/akave-ai/quoteedge/internal/model"
)

const (
	maxReferrer  = 500
	maxUserAgent = 300
)

// Entry is what the middleware captures for a finished request. It still holds
// the raw client IP and only lives in memory until a worker turns it into a
// model.Visit.
type Entry struct {
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	Referrer  string
	UserAgent string
	ClientIP  string
	VisitorID string
	At        time.Time
}

// Visit builds the persisted record: truncated headers, hashed IP.
func (e Entry) Visit(h *IPHasher) model.Visit {
	v := model.Visit{
		Method:     e.Method,
		Path:       e.Path,
		Status:     e.Status,
		DurationMS: e.Duration.Milliseconds(),
		Referrer:   truncated(e.Referrer, maxReferrer),
		UserAgent:  truncated(e.UserAgent, maxUserAgent),
		VisitorID:  e.VisitorID,
		CreatedAt:  e.At.UTC(),
	}
	if e.ClientIP != "" {
		digest := h.Hash(e.ClientIP)
		v.IPHash = &digest
	}
	return v
}

// truncated caps s at max characters; empty strings become nil.
func truncated(s string, max int) *string {
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > max {
		r := []rune(s)
		s = string(r[:max])
	}
	return &s
}
