package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

// HistoryStorage implements interfaces.HistoryStorage for Badger.
// Records are keyed by research id and ordered by their Sequence key.
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// Load reports how many records are already on disk
func (s *HistoryStorage) Load(ctx context.Context) error {
	count, err := s.db.Store().Count(&models.HistoryRecord{}, nil)
	if err != nil {
		return fmt.Errorf("failed to count history records: %w", err)
	}
	s.logger.Debug().Int("records", int(count)).Msg("History storage loaded")
	return nil
}

// Append stores record. The newest Sequence key sorts first in List.
func (s *HistoryStorage) Append(ctx context.Context, record *models.HistoryRecord) error {
	if record == nil || record.ResearchID == "" {
		return fmt.Errorf("history record requires a research id")
	}

	if err := s.db.Store().Insert(record.ResearchID, record); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("history record %s already exists: %w", record.ResearchID, err)
		}
		return fmt.Errorf("failed to insert history record: %w", err)
	}

	s.logger.Debug().
		Str("research_id", record.ResearchID).
		Str("sequence", record.Sequence).
		Msg("History record appended")
	return nil
}

// List returns every record, newest first
func (s *HistoryStorage) List(ctx context.Context) ([]*models.HistoryRecord, error) {
	var records []models.HistoryRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("ResearchID").Ne("").SortBy("Sequence").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}

	result := make([]*models.HistoryRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// Get returns a single record by research id
func (s *HistoryStorage) Get(ctx context.Context, researchID string) (*models.HistoryRecord, error) {
	var record models.HistoryRecord
	if err := s.db.Store().Get(researchID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRecordNotFound, researchID)
		}
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return &record, nil
}

// Persist syncs the value log so saved records survive a crash
func (s *HistoryStorage) Persist(ctx context.Context) error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync history storage: %w", err)
	}
	return nil
}
