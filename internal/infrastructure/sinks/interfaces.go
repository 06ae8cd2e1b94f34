package sinks

import (
	"context"

	"github.com/akave-ai/quoteedge/internal/model"
)

// VisitSink is the analytics datastore the visit queue writes to: a single
// insert into the visits collection.
type VisitSink interface {
	Insert(ctx context.Context, v model.Visit) error
	Close() error
}
