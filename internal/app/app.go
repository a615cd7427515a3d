package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/extraction"
	"github.com/ternarybob/marketsignal/internal/handlers"
	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/services/grounding"
	"github.com/ternarybob/marketsignal/internal/services/history"
	"github.com/ternarybob/marketsignal/internal/services/llm"
	"github.com/ternarybob/marketsignal/internal/services/pdf"
	"github.com/ternarybob/marketsignal/internal/services/pipeline"
	"github.com/ternarybob/marketsignal/internal/services/report"
	"github.com/ternarybob/marketsignal/internal/services/signals"
	"github.com/ternarybob/marketsignal/internal/services/transform"
	"github.com/ternarybob/marketsignal/internal/storage"
	"github.com/ternarybob/marketsignal/internal/templates"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Prompts   *templates.Prompts
	Generator *llm.ProviderFactory

	// Pipeline services
	TransformService *transform.Service
	PDFService       *pdf.Service
	HistoryService   *history.Service
	Orchestrator     *pipeline.Orchestrator

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	AnalysisHandler *handlers.AnalysisHandler
	HistoryHandler  *handlers.HistoryHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the history store
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	if err := storageManager.HistoryStorage().Load(context.Background()); err != nil {
		storageManager.Close()
		return fmt.Errorf("failed to load history: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the pipeline stages in dependency order
func (a *App) initServices() error {
	prompts, err := templates.Load(a.Config.Prompts.File)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	a.Prompts = prompts

	a.Generator = llm.NewProviderFactory(a.Config, a.Logger)
	modelSet := a.Generator.Models()
	pipelineCfg := a.Config.Pipeline

	extractor := extraction.NewExtractor(a.Logger)
	a.TransformService = transform.NewService(a.Logger)
	a.PDFService = pdf.NewService(a.Logger)

	a.HistoryService = history.NewService(
		a.Generator,
		extractor,
		a.StorageManager.HistoryStorage(),
		prompts.HistoryExtraction,
		history.Options{
			Model:         modelSet.Extraction,
			MaxChars:      pipelineCfg.ExtractionMaxChars,
			SnippetLength: pipelineCfg.SnippetLength,
		},
		a.Logger,
	)

	stages := pipeline.Stages{
		Aggregator: signals.NewAggregator(a.Logger, a.TransformService, pdf.NewInspector(a.Logger)),
		Grounding: grounding.NewStage(
			a.Generator,
			prompts.GroundingQuery,
			modelSet.Grounding,
			grounding.Limits{Scan: pipelineCfg.GroundingLimitScan, Deep: pipelineCfg.GroundingLimitDeep},
			a.Logger,
		),
		Reporter: report.NewGenerator(
			a.Generator,
			prompts.SystemInstruction,
			report.Models{Scan: modelSet.Scan, Deep: modelSet.Deep},
			a.Config.Gemini.DeepThinkingBudget,
			a.Logger,
		),
		Chart: report.NewChartExtractor(
			a.Generator,
			extractor,
			prompts.ChartExtraction,
			report.ChartOptions{
				Model:     modelSet.Extraction,
				MaxChars:  pipelineCfg.ExtractionMaxChars,
				MaxTokens: pipelineCfg.ChartMaxTokens,
			},
			a.Logger,
		),
		History: a.HistoryService,
	}

	a.Orchestrator = pipeline.NewOrchestrator(stages, a.Logger)

	a.Logger.Debug().
		Str("scan_model", modelSet.Scan).
		Str("deep_model", modelSet.Deep).
		Str("grounding_model", modelSet.Grounding).
		Str("extraction_model", modelSet.Extraction).
		Msg("Pipeline services initialized")

	return nil
}

// initHandlers creates the HTTP handlers and connects the run log stream
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.Orchestrator, a.PDFService, a.Config.Pipeline.MaxAttachmentBytes, a.Logger)
	a.HistoryHandler = handlers.NewHistoryHandler(a.HistoryService, a.Logger)

	a.WSHandler = handlers.NewWebSocketHandler(a.Logger, &a.Config.WebSocket)
	a.WSHandler.SetSnapshotProvider(a.Orchestrator)
	a.Orchestrator.SetObserver(a.WSHandler)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
