package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/save"
)

// Storage persists one save record per player. Each save replaces the
// previous record in a single write.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveRecord writes the record for id.
	SaveRecord(ctx context.Context, id uuid.UUID, r *save.Record) error
	// LoadRecord returns nil, nil when id has no record.
	LoadRecord(ctx context.Context, id uuid.UUID) (*save.Record, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}
