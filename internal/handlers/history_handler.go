package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/interfaces"
)

// HistoryHandler serves saved research records
type HistoryHandler struct {
	history HistoryReader
	logger  arbor.ILogger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history HistoryReader, logger arbor.ILogger) *HistoryHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// ListHistoryHandler handles GET /api/history - records newest first
func (h *HistoryHandler) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	records, err := h.history.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list history")
		WriteError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

// GetHistoryHandler handles GET /api/history/{id}
func (h *HistoryHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/history/"), "/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Research id is required")
		return
	}

	record, err := h.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("research_id", id).Msg("Failed to get history record")
		WriteError(w, http.StatusInternalServerError, "Failed to get history record")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
