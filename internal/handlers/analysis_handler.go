package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/services/pipeline"
)

const multipartMemory = 32 << 20

// AnalysisHandler exposes the pipeline orchestrator over HTTP
type AnalysisHandler struct {
	runner             AnalysisRunner
	renderer           ReportRenderer
	maxAttachmentBytes int
	logger             arbor.ILogger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(runner AnalysisRunner, renderer ReportRenderer, maxAttachmentBytes int, logger arbor.ILogger) *AnalysisHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &AnalysisHandler{
		runner:             runner,
		renderer:           renderer,
		maxAttachmentBytes: maxAttachmentBytes,
		logger:             logger,
	}
}

// SnapshotHandler handles GET /api/analysis - current state, log and result
func (h *AnalysisHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, h.runner.Snapshot())
}

// RunAnalysisHandler handles POST /api/analysis. The request blocks until the run completes or fails.
func (h *AnalysisHandler) RunAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	req, err := h.parseRequest(r)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid analysis request")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid analysis request: %v", err))
		return
	}

	snap, err := h.runner.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Analysis run failed")
		if snap == nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusInternalServerError, snap)
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

func (h *AnalysisHandler) parseRequest(r *http.Request) (*models.AnalysisRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return h.parseMultipart(r)
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	req.Mode = normalizeMode(string(req.Mode))

	for i, a := range req.Attachments {
		if err := h.checkSize(a.Name, len(a.Data)); err != nil {
			return nil, err
		}
		if req.Attachments[i].Name == "" {
			req.Attachments[i].Name = fmt.Sprintf("attachment-%d", i+1)
		}
	}
	return &req, nil
}

func (h *AnalysisHandler) parseMultipart(r *http.Request) (*models.AnalysisRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	req := &models.AnalysisRequest{
		Industry:         strings.TrimSpace(r.FormValue("industry")),
		Geography:        strings.TrimSpace(r.FormValue("geography")),
		ProblemFocus:     strings.TrimSpace(r.FormValue("problem_focus")),
		ResearchQuestion: strings.TrimSpace(r.FormValue("research_question")),
		AssumptionTested: strings.TrimSpace(r.FormValue("assumption_tested")),
		RawSignals:       r.FormValue("raw_signals"),
		Mode:             normalizeMode(r.FormValue("mode")),
	}

	if v := r.FormValue("use_web_grounding"); v != "" {
		grounding, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid use_web_grounding value %q", v)
		}
		req.UseWebGrounding = grounding
	}

	for _, fh := range r.MultipartForm.File["files"] {
		attachment, err := h.readFile(fh)
		if err != nil {
			return nil, err
		}
		req.Attachments = append(req.Attachments, attachment)
	}

	return req, nil
}

func (h *AnalysisHandler) readFile(fh *multipart.FileHeader) (models.Attachment, error) {
	if err := h.checkSize(fh.Filename, int(fh.Size)); err != nil {
		return models.Attachment{}, err
	}

	f, err := fh.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}

	// Empty MIME types are sniffed downstream
	return models.Attachment{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (h *AnalysisHandler) checkSize(name string, size int) error {
	if h.maxAttachmentBytes > 0 && size > h.maxAttachmentBytes {
		return fmt.Errorf("attachment %s exceeds the %d byte limit", name, h.maxAttachmentBytes)
	}
	return nil
}

func normalizeMode(mode string) models.AnalysisMode {
	return models.AnalysisMode(strings.ToUpper(strings.TrimSpace(mode)))
}

// ResetHandler handles POST /api/analysis/reset
func (h *AnalysisHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.runner.Reset(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteSuccess(w, "Analysis reset")
}

// SaveHandler handles POST /api/analysis/save. An optional run_id query parameter pins the
// save to that run. The result is captured before responding and saved in the background;
// progress is appended to the run log and streamed to websocket clients.
func (h *AnalysisHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	runID := r.URL.Query().Get("run_id")
	save, err := h.runner.PrepareSave(runID)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, pipeline.ErrScanNotSavable) {
			status = http.StatusBadRequest
		}
		WriteError(w, status, err.Error())
		return
	}

	common.SafeGo(h.logger, "history-save", func() {
		record, err := save(context.Background())
		if err != nil {
			h.logger.Error().Err(err).Str("run_id", runID).Msg("History save failed")
			return
		}
		h.logger.Info().
			Str("run_id", runID).
			Str("research_id", record.ResearchID).
			Msg("History record saved")
	})

	WriteStarted(w, "Saving research to history")
}

// ReportPDFHandler handles GET /api/analysis/report.pdf
func (h *AnalysisHandler) ReportPDFHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	snap := h.runner.Snapshot()
	if snap.State != models.StateComplete || snap.Result == nil {
		WriteError(w, http.StatusConflict, pipeline.ErrNotComplete.Error())
		return
	}

	data, err := h.renderer.RenderAnalysis(snap.Request, snap.Result)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", snap.RunID).Msg("Failed to render report PDF")
		WriteError(w, http.StatusInternalServerError, "Failed to render report PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "marketsignal-"+snap.RunID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
