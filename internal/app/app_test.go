package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/models"
)

func TestNew_MemoryStorage(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "memory"

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.WSHandler)
	assert.Equal(t, models.StateIdle, a.Orchestrator.Snapshot().State)

	records, err := a.HistoryService.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNew_BadgerStorage(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestNew_BadPromptsFile(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.Prompts.File = "/nonexistent/prompts.yaml"

	_, err := New(cfg, arbor.NewLogger())
	assert.Error(t, err)
}
