// Package storage persists normalized batches: the append-only Postgres
// history table and the per-run CSV export.
package storage

import (
	"context"
	"errors"

	"apartment-tracker/models"
)

// ErrPersistence marks a batch that could not be written. Nothing from the
// batch is committed.
var ErrPersistence = errors.New("persistence error")

// Sink is the interface any storage backend must satisfy. A Sink is used by
// one goroutine at a time.
type Sink interface {
	Persist(ctx context.Context, units []models.CanonicalUnit) error
	Close() error
}

// DiscardSink accepts every batch and stores nothing.
type DiscardSink struct{}

func (DiscardSink) Persist(context.Context, []models.CanonicalUnit) error { return nil }

func (DiscardSink) Close() error { return nil }
