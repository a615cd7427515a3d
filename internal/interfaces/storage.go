package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/marketsignal/internal/models"
)

// ErrRecordNotFound is returned by HistoryStorage.Get for an unknown research id
var ErrRecordNotFound = errors.New("history record not found")

// HistoryStorage is an ordered collection of history records, newest first
type HistoryStorage interface {
	// Load opens or warms the backing store. Idempotent.
	Load(ctx context.Context) error

	// Append inserts a record ahead of all existing records
	Append(ctx context.Context, record *models.HistoryRecord) error

	// List returns every record, newest first
	List(ctx context.Context) ([]*models.HistoryRecord, error)

	// Get returns a single record by research id
	Get(ctx context.Context, researchID string) (*models.HistoryRecord, error)

	// Persist flushes pending writes to durable storage
	Persist(ctx context.Context) error
}

// StorageManager owns the storage backends and their lifecycle
type StorageManager interface {
	HistoryStorage() HistoryStorage
	Close() error
}
