// Package memory holds process-local storage used when no database is configured
// and by tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

// HistoryStorage keeps records in a slice, newest first
type HistoryStorage struct {
	mu      sync.RWMutex
	records []*models.HistoryRecord
}

var _ interfaces.HistoryStorage = (*HistoryStorage)(nil)

// NewHistoryStorage creates an empty in-memory history store
func NewHistoryStorage() *HistoryStorage {
	return &HistoryStorage{}
}

func (s *HistoryStorage) Load(ctx context.Context) error {
	return nil
}

// Append prepends record
func (s *HistoryStorage) Append(ctx context.Context, record *models.HistoryRecord) error {
	if record == nil || record.ResearchID == "" {
		return fmt.Errorf("history record requires a research id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ResearchID == record.ResearchID {
			return fmt.Errorf("history record %s already exists", record.ResearchID)
		}
	}

	s.records = append([]*models.HistoryRecord{record}, s.records...)
	return nil
}

// List returns a copy of the records, newest first
func (s *HistoryStorage) List(ctx context.Context) ([]*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.HistoryRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *HistoryStorage) Get(ctx context.Context, researchID string) (*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ResearchID == researchID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", interfaces.ErrRecordNotFound, researchID)
}

func (s *HistoryStorage) Persist(ctx context.Context) error {
	return nil
}

// Manager implements interfaces.StorageManager without a backing database
type Manager struct {
	history *HistoryStorage
}

// NewManager creates an in-memory storage manager
func NewManager() *Manager {
	return &Manager{history: NewHistoryStorage()}
}

func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

func (m *Manager) Close() error {
	return nil
}
