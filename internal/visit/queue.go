package visit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/model"
)

// Store is the analytics datastore: one insert into the visits collection.
type Store interface {
	Insert(ctx context.Context, v model.Visit) error
}

type QueueConfig struct {
	Workers      int
	Size         int
	WriteTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Workers: 2, Size: 256, WriteTimeout: 5 * time.Second}
}

// Queue writes visits on background workers so the request path never waits
// on the datastore. Every failure stays inside the queue.
type Queue struct {
	store   Store
	hasher  *IPHasher
	cfg     QueueConfig
	logger  zerolog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	jobs   chan Entry
	wg     sync.WaitGroup
}

// NewQueue starts cfg.Workers workers. Call Close to stop them.
func NewQueue(store Store, hasher *IPHasher, cfg QueueConfig, logger zerolog.Logger, metrics *Metrics) *Queue {
	def := DefaultQueueConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	q := &Queue{
		store:   store,
		hasher:  hasher,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		jobs:    make(chan Entry, cfg.Size),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// Enqueue hands e to a worker without blocking. It reports false when the
// entry was dropped.
func (q *Queue) Enqueue(e Entry) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.metrics.incDropped()
		return false
	}
	select {
	case q.jobs <- e:
		return true
	default:
		q.metrics.incDropped()
		q.logger.Warn().Str("path", e.Path).Msg("visit queue full, dropping record")
		return false
	}
}

// Close stops accepting entries and waits for queued ones to be written, or
// for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("visit queue drain: %w", ctx.Err())
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for e := range q.jobs {
		q.write(e)
	}
}

func (q *Queue) write(e Entry) {
	defer func() {
		if r := recover(); r != nil {
			q.metrics.incFailed()
			q.logger.Error().Interface("panic", r).Str("path", e.Path).Msg("visit log failed")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.WriteTimeout)
	defer cancel()

	if err := q.store.Insert(ctx, e.Visit(q.hasher)); err != nil {
		q.metrics.incFailed()
		q.logger.Error().Err(err).Str("path", e.Path).Msg("visit insert failed")
		return
	}
	q.metrics.incWritten()
}
