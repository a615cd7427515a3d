package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/services/pipeline"
)

type fakeRunner struct {
	mu       sync.Mutex
	snap     *models.RunSnapshot
	runErr   error
	resetErr error
	got      *models.AnalysisRequest
	saved    chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		snap:  &models.RunSnapshot{State: models.StateIdle, Log: []models.LogEntry{}},
		saved: make(chan struct{}, 1),
	}
}

func (f *fakeRunner) Run(_ context.Context, req *models.AnalysisRequest) (*models.RunSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = req
	if f.runErr != nil {
		if errors.Is(f.runErr, pipeline.ErrRunInProgress) {
			return nil, f.runErr
		}
		f.snap = &models.RunSnapshot{State: models.StateError, Error: f.runErr.Error(), Log: []models.LogEntry{}}
		return f.snap, f.runErr
	}
	f.snap = &models.RunSnapshot{
		RunID:   "run-1",
		State:   models.StateComplete,
		Mode:    req.Mode,
		Request: req,
		Result:  &models.AnalysisResult{ReportText: "# Report", GroundingSources: []models.GroundingSource{}, ChartData: []models.FrequencyPoint{}},
		Log:     []models.LogEntry{{Message: "Analysis complete.", Severity: models.SeveritySuccess}},
	}
	return f.snap, nil
}

func (f *fakeRunner) Snapshot() *models.RunSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeRunner) Reset() error { return f.resetErr }

func (f *fakeRunner) PrepareSave(runID string) (pipeline.SaveFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snap
	if snap.State != models.StateComplete || snap.Result == nil {
		return nil, pipeline.ErrNotComplete
	}
	if runID != "" && runID != snap.RunID {
		return nil, pipeline.ErrRunChanged
	}
	if snap.Mode == models.ModeScan {
		return nil, pipeline.ErrScanNotSavable
	}
	captured := snap.RunID
	return func(context.Context) (*models.HistoryRecord, error) {
		f.saved <- struct{}{}
		return &models.HistoryRecord{ResearchID: "research-" + captured}, nil
	}, nil
}

type fakeRenderer struct{ err error }

func (f fakeRenderer) RenderAnalysis(*models.AnalysisRequest, *models.AnalysisResult) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

const validJSON = `{
  "industry": "Agritech",
  "geography": "India",
  "problem_focus": "cold storage",
  "raw_signals": "farmers complain",
  "mode": "deep",
  "attachments": [{"mime_type": "image/png", "data": "aGVsbG8="}]
}`

func TestAnalysisHandler_RunJSON(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(validJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.RunAnalysisHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, runner.got)
	assert.Equal(t, models.ModeDeep, runner.got.Mode)
	require.Len(t, runner.got.Attachments, 1)
	assert.Equal(t, []byte("hello"), runner.got.Attachments[0].Data)
	assert.Equal(t, "attachment-1", runner.got.Attachments[0].Name)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "COMPLETE", body["state"])
	assert.NotNil(t, body["result"])
	assert.Len(t, body["log"], 1)
}

func TestAnalysisHandler_RunMultipart(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 1024, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("industry", "Logistics")
	mw.WriteField("geography", "Kenya")
	mw.WriteField("problem_focus", "last mile")
	mw.WriteField("mode", "SCAN")
	mw.WriteField("use_web_grounding", "true")
	fw, err := mw.CreateFormFile("files", "screenshot.png")
	require.NoError(t, err)
	fw.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.RunAnalysisHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := runner.got
	assert.Equal(t, "Logistics", got.Industry)
	assert.Equal(t, models.ModeScan, got.Mode)
	assert.True(t, got.UseWebGrounding)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "screenshot.png", got.Attachments[0].Name)
	assert.Equal(t, []byte("png-bytes"), got.Attachments[0].Data)
}

func TestAnalysisHandler_AttachmentTooLarge(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 3, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(validJSON))
	rec := httptest.NewRecorder()
	h.RunAnalysisHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, runner.got)
}

func TestAnalysisHandler_ValidationFailure(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(`{"industry": "Agritech", "mode": "FAST"}`))
	rec := httptest.NewRecorder()
	h.RunAnalysisHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, runner.got)
}

func TestAnalysisHandler_RunInProgress(t *testing.T) {
	runner := newFakeRunner()
	runner.runErr = pipeline.ErrRunInProgress
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(validJSON))
	rec := httptest.NewRecorder()
	h.RunAnalysisHandler(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalysisHandler_RunFailureReturnsSnapshot(t *testing.T) {
	runner := newFakeRunner()
	runner.runErr = errors.New("analysis failed: quota exceeded")
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(validJSON))
	rec := httptest.NewRecorder()
	h.RunAnalysisHandler(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ERROR", body["state"])
	assert.Contains(t, body["error"], "quota exceeded")
}

func TestAnalysisHandler_GetSnapshot(t *testing.T) {
	h := NewAnalysisHandler(newFakeRunner(), fakeRenderer{}, 0, nil)

	rec := httptest.NewRecorder()
	h.SnapshotHandler(rec, httptest.NewRequest(http.MethodGet, "/api/analysis", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"IDLE"`)

	rec = httptest.NewRecorder()
	h.SnapshotHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/analysis", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResetHandler(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	rec := httptest.NewRecorder()
	h.ResetHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	runner.resetErr = pipeline.ErrRunInProgress
	rec = httptest.NewRecorder()
	h.ResetHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/reset", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaveHandler(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	// Nothing completed yet
	rec := httptest.NewRecorder()
	h.SaveHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/save", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	runner.snap = &models.RunSnapshot{State: models.StateComplete, Mode: models.ModeScan, Result: &models.AnalysisResult{}}
	rec = httptest.NewRecorder()
	h.SaveHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/save", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runner.snap = &models.RunSnapshot{RunID: "run-1", State: models.StateComplete, Mode: models.ModeDeep, Result: &models.AnalysisResult{}}
	rec = httptest.NewRecorder()
	h.SaveHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/save?run_id=run-2", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.SaveHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/save?run_id=run-1", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-runner.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("history save was not started")
	}
}

func TestSaveHandler_SaveOutlivesReset(t *testing.T) {
	runner := newFakeRunner()
	runner.snap = &models.RunSnapshot{RunID: "run-1", State: models.StateComplete, Mode: models.ModeDeep, Result: &models.AnalysisResult{}}
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	// Hold the save until the run has been reset underneath it
	runner.saved = make(chan struct{})

	rec := httptest.NewRecorder()
	h.SaveHandler(rec, httptest.NewRequest(http.MethodPost, "/api/analysis/save", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	runner.mu.Lock()
	runner.snap = &models.RunSnapshot{State: models.StateIdle, Log: []models.LogEntry{}}
	runner.mu.Unlock()

	select {
	case <-runner.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("captured save did not run after reset")
	}
}

func TestReportPDFHandler(t *testing.T) {
	runner := newFakeRunner()
	h := NewAnalysisHandler(runner, fakeRenderer{}, 0, nil)

	rec := httptest.NewRecorder()
	h.ReportPDFHandler(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/report.pdf", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	runner.snap = &models.RunSnapshot{RunID: "run-7", State: models.StateComplete, Request: &models.AnalysisRequest{}, Result: &models.AnalysisResult{}}
	rec = httptest.NewRecorder()
	h.ReportPDFHandler(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/report.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "marketsignal-run-7.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	h = NewAnalysisHandler(runner, fakeRenderer{err: errors.New("boom")}, 0, nil)
	rec = httptest.NewRecorder()
	h.ReportPDFHandler(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/report.pdf", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
