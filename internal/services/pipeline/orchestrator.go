package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/services/grounding"
	"github.com/ternarybob/marketsignal/internal/services/history"
	"github.com/ternarybob/marketsignal/internal/services/report"
	"github.com/ternarybob/marketsignal/internal/services/runlog"
	"github.com/ternarybob/marketsignal/internal/services/signals"
)

var (
	// ErrRunInProgress is returned when a run is requested while another is in flight
	ErrRunInProgress = errors.New("an analysis run is already in progress")
	// ErrNotComplete is returned when saving without a completed run
	ErrNotComplete = errors.New("no completed analysis to save")
	// ErrScanNotSavable is returned when saving a SCAN result
	ErrScanNotSavable = errors.New("quick scan results cannot be saved to history; run a deep analysis")
	// ErrRunChanged is returned when the requested run is no longer the current one
	ErrRunChanged = errors.New("analysis run is no longer current")
)

// SaveFunc stores a result captured by PrepareSave
type SaveFunc func(ctx context.Context) (*models.HistoryRecord, error)

const criticalMessage = "Critical Error: Failed to complete analysis."

// Stages are the collaborators a run is sequenced through
type Stages struct {
	Aggregator *signals.Aggregator
	Grounding  *grounding.Stage
	Reporter   *report.Generator
	Chart      *report.ChartExtractor
	History    *history.Service
}

// run is the orchestrator's record of the current or last run
type run struct {
	id          string
	state       models.PipelineState
	request     *models.AnalysisRequest
	result      *models.AnalysisResult
	log         *runlog.Log
	err         string
	startedAt   time.Time
	completedAt time.Time
}

// Orchestrator sequences one analysis run at a time:
// IDLE -> SEARCHING (optional) -> ANALYZING -> COMPLETE, or ERROR on a fatal failure.
type Orchestrator struct {
	stages Stages
	logger arbor.ILogger

	mu       sync.Mutex
	current  *run
	observer interfaces.RunObserver
}

// NewOrchestrator creates an orchestrator in the IDLE state
func NewOrchestrator(stages Stages, logger arbor.ILogger) *Orchestrator {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Orchestrator{
		stages: stages,
		logger: logger,
	}
}

// SetObserver registers the sink for log entries and state changes of subsequent runs
func (o *Orchestrator) SetObserver(observer interfaces.RunObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = observer
}

// Run executes the pipeline for req and blocks until it reaches COMPLETE or ERROR.
// The returned snapshot is valid in both cases; the error is non-nil only for ERROR
// or when another run is already in flight.
func (o *Orchestrator) Run(ctx context.Context, req *models.AnalysisRequest) (*models.RunSnapshot, error) {
	r, err := o.begin(req)
	if err != nil {
		return nil, err
	}

	o.execute(ctx, r)

	snap := o.Snapshot()
	if snap.State == models.StateError {
		return snap, fmt.Errorf("analysis failed: %s", snap.Error)
	}
	return snap, nil
}

func (o *Orchestrator) begin(req *models.AnalysisRequest) (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil && o.current.state.IsRunning() {
		return nil, ErrRunInProgress
	}

	id := common.NewRunID()
	r := &run{
		id:        id,
		state:     models.StateIdle,
		request:   req,
		log:       runlog.New(id, o.logger, o.observer),
		startedAt: time.Now(),
	}

	// Claim the slot before releasing the lock so a concurrent Run sees it in flight
	r.state = models.StateAnalyzing
	if req.UseWebGrounding {
		r.state = models.StateSearching
	}
	o.current = r

	o.logger.Info().
		Str("run_id", id).
		Str("mode", string(req.Mode)).
		Bool("web_grounding", req.UseWebGrounding).
		Int("attachments", len(req.Attachments)).
		Msg("Analysis run started")

	return r, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error().
				Str("run_id", r.id).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", common.GetStackTrace()).
				Msg("Recovered from panic in analysis run")
			o.fail(r, fmt.Errorf("unexpected error: %v", rec))
		}
	}()

	req := r.request
	log := r.log

	log.Info("Initializing MarketSignal AI...")
	log.Info(fmt.Sprintf("Target: %s in %s", req.Industry, req.Geography))
	if req.Mode == models.ModeScan {
		log.Info("Mode: Quick Scan (Fast Response)")
	} else {
		log.Info("Mode: Deep Analysis (Thinking Model)")
	}
	o.notify(r, r.state)

	var web grounding.Result
	if req.UseWebGrounding && o.stages.Grounding != nil {
		web = o.stages.Grounding.Retrieve(ctx, req, log)
	}

	o.transition(r, models.StateAnalyzing)

	parts := o.stages.Aggregator.Aggregate(req, web.Digest, log)

	text, err := o.stages.Reporter.Generate(ctx, parts, req.Mode, log)
	if err != nil {
		o.fail(r, err)
		return
	}

	chart := o.stages.Chart.Extract(ctx, text, log)

	sources := web.Sources
	if sources == nil {
		sources = []models.GroundingSource{}
	}

	o.mu.Lock()
	r.result = &models.AnalysisResult{
		ReportText:       text,
		GroundingSources: sources,
		ChartData:        chart,
	}
	o.mu.Unlock()

	o.transition(r, models.StateComplete)
	log.Success("Analysis complete.")

	o.logger.Info().
		Str("run_id", r.id).
		Int("report_length", len(text)).
		Int("chart_points", len(chart)).
		Int("sources", len(sources)).
		Msg("Analysis run complete")
}

func (o *Orchestrator) fail(r *run, err error) {
	r.log.Error(err.Error())
	r.log.Error(criticalMessage)

	o.mu.Lock()
	r.err = err.Error()
	o.mu.Unlock()

	o.transition(r, models.StateError)
	o.logger.Error().Err(err).Str("run_id", r.id).Msg("Analysis run failed")
}

func (o *Orchestrator) transition(r *run, state models.PipelineState) {
	o.mu.Lock()
	if r.state == state {
		o.mu.Unlock()
		return
	}
	r.state = state
	if state == models.StateComplete || state == models.StateError {
		r.completedAt = time.Now()
	}
	o.mu.Unlock()

	o.notify(r, state)
}

func (o *Orchestrator) notify(r *run, state models.PipelineState) {
	o.mu.Lock()
	observer := o.observer
	o.mu.Unlock()

	if observer != nil {
		observer.OnStateChange(r.id, state)
	}
}

// Snapshot returns a copy of the current run, or an IDLE snapshot when there is none
func (o *Orchestrator) Snapshot() *models.RunSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return &models.RunSnapshot{State: models.StateIdle, Log: []models.LogEntry{}}
	}

	r := o.current
	return &models.RunSnapshot{
		RunID:       r.id,
		State:       r.state,
		Mode:        r.request.Mode,
		Request:     r.request,
		Result:      r.result,
		Log:         r.log.Entries(),
		Error:       r.err,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
	}
}

// Reset discards the last run and returns to IDLE. A run in flight cannot be reset.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	if o.current != nil && o.current.state.IsRunning() {
		o.mu.Unlock()
		return ErrRunInProgress
	}
	o.current = nil
	observer := o.observer
	o.mu.Unlock()

	if observer != nil {
		observer.OnStateChange("", models.StateIdle)
	}
	return nil
}

// SaveHistory stores the completed DEEP result as a history record.
// Progress is appended to the run's log. The result itself is never modified.
func (o *Orchestrator) SaveHistory(ctx context.Context) (*models.HistoryRecord, error) {
	save, err := o.PrepareSave("")
	if err != nil {
		return nil, err
	}
	return save(ctx)
}

// PrepareSave captures the completed DEEP run under the lock and returns a SaveFunc bound to it.
// A later Reset or new run does not affect the captured save. An empty runID means the current run.
func (o *Orchestrator) PrepareSave(runID string) (SaveFunc, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.current
	if r == nil || r.state != models.StateComplete || r.result == nil {
		return nil, ErrNotComplete
	}
	if runID != "" && r.id != runID {
		return nil, fmt.Errorf("%w: requested %s, current %s", ErrRunChanged, runID, r.id)
	}
	if r.request.Mode == models.ModeScan {
		return nil, ErrScanNotSavable
	}

	req, result, log := r.request, r.result, r.log
	return func(ctx context.Context) (*models.HistoryRecord, error) {
		return o.stages.History.Save(ctx, req, result, log)
	}, nil
}

// History lists saved records, newest first
func (o *Orchestrator) History(ctx context.Context) ([]*models.HistoryRecord, error) {
	return o.stages.History.List(ctx)
}
