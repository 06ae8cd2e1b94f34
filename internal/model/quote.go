package model

import "encoding/json"

// Quote is the normalized quote envelope returned by GET /api/quote. ID,
// Quote and Author are the upstream values passed through untouched, so a
// string id or a null author survive as-is.
type Quote struct {
	ID     json.RawMessage `json:"id"`
	Quote  json.RawMessage `json:"quote"`
	Author json.RawMessage `json:"author"`
	Source string          `json:"source"`
}
