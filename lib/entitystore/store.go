// Package entitystore is the only reader and writer of persisted Entity
// records.
package entitystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cptracker-backend/lib/model"
)

const DefaultErrorLogLimit = 50

// ErrEntityNotFound is returned for operations on an id that has no record.
var ErrEntityNotFound = fmt.Errorf("entity not found: %w", model.ErrPersistence)

// Refresh is everything one orchestrator run produced for an entity.
type Refresh struct {
	Profiles    map[model.SourceKind]model.Profile
	Failures    []model.ErrorLogEntry
	RefreshedAt time.Time
}

// Store persists entities as documents keyed by id. Every error returned
// wraps model.ErrPersistence.
type Store interface {
	FindByKey(ctx context.Context, id string) (model.Entity, error)
	// UpsertProfile replaces the whole profile for one source.
	UpsertProfile(ctx context.Context, id string, source model.SourceKind, profile model.Profile) error
	// AppendError appends to the error log, dropping the oldest entries
	// past the configured limit.
	AppendError(ctx context.Context, id string, entry model.ErrorLogEntry) error
	SetLastRefreshed(ctx context.Context, id string, t time.Time) error
	// ApplyRefresh is UpsertProfile, AppendError and SetLastRefreshed in
	// a single transaction, either all of it is visible or none of it.
	ApplyRefresh(ctx context.Context, id string, refresh Refresh) error

	List(ctx context.Context) ([]model.Entity, error)
	Create(ctx context.Context, entity model.Entity) error
	SetHandle(ctx context.Context, id string, source model.SourceKind, handle string) error
	SetProfileURL(ctx context.Context, id string, source model.SourceKind, url string) error
	Delete(ctx context.Context, id string) error

	Close() error
}

func wrap(op string, err error) error {
	if errors.Is(err, model.ErrPersistence) {
		return fmt.Errorf("entitystore: %s: %w", op, err)
	}
	return fmt.Errorf("entitystore: %s: %w: %w", op, model.ErrPersistence, err)
}
