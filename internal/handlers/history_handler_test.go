package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/storage/memory"
)

func TestHistoryHandlers(t *testing.T) {
	store := memory.NewHistoryStorage()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, &models.HistoryRecord{ResearchID: "research-a", Industry: "Agritech"}))
	require.NoError(t, store.Append(ctx, &models.HistoryRecord{ResearchID: "research-b", Industry: "Fintech"}))

	h := NewHistoryHandler(store, nil)

	rec := httptest.NewRecorder()
	h.ListHistoryHandler(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records []models.HistoryRecord `json:"records"`
		Total   int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "research-b", body.Records[0].ResearchID)

	rec = httptest.NewRecorder()
	h.GetHistoryHandler(rec, httptest.NewRequest(http.MethodGet, "/api/history/research-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Agritech"`)

	rec = httptest.NewRecorder()
	h.GetHistoryHandler(rec, httptest.NewRequest(http.MethodGet, "/api/history/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListHistoryHandler(rec, httptest.NewRequest(http.MethodPost, "/api/history", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
