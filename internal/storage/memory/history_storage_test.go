package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

func TestHistoryStorage_AppendPrepends(t *testing.T) {
	ctx := context.Background()
	s := NewHistoryStorage()

	require.NoError(t, s.Append(ctx, &models.HistoryRecord{ResearchID: "r1"}))
	require.NoError(t, s.Append(ctx, &models.HistoryRecord{ResearchID: "r2"}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].ResearchID)
	assert.Equal(t, "r1", list[1].ResearchID)

	// List hands out a copy of the ordering
	list[0] = nil
	again, _ := s.List(ctx)
	assert.NotNil(t, again[0])
}

func TestHistoryStorage_GetAndErrors(t *testing.T) {
	ctx := context.Background()
	s := NewManager().HistoryStorage()

	require.NoError(t, s.Append(ctx, &models.HistoryRecord{ResearchID: "r1"}))
	assert.Error(t, s.Append(ctx, &models.HistoryRecord{ResearchID: "r1"}))
	assert.Error(t, s.Append(ctx, nil))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ResearchID)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
}
