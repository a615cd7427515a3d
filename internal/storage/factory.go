package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/storage/badger"
	"github.com/ternarybob/marketsignal/internal/storage/memory"
)

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Type {
	case "badger", "":
		return badger.NewManager(logger, &config.Storage.Badger)
	case "memory":
		logger.Warn().Msg("Using in-memory storage: history is lost on exit")
		return memory.NewManager(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'memory')", config.Storage.Type)
	}
}
