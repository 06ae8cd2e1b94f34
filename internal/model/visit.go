package model

import "time"

// Visit is one analytics row per completed request. It is written once and
// never updated. IPHash is an HMAC of the client address; the raw address is
// never part of a Visit.
type Visit struct {
	Method     string    `json:"method" db:"method"`
	Path       string    `json:"path" db:"path"`
	Status     int       `json:"status" db:"status"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	Referrer   *string   `json:"referrer" db:"referrer"`
	UserAgent  *string   `json:"user_agent" db:"user_agent"`
	IPHash     *string   `json:"ip_hash" db:"ip_hash"`
	VisitorID  string    `json:"visitor_id" db:"visitor_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
