package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/extraction"
	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/services/report"
)

// MetadataSchema is the object the history extraction call must return
var MetadataSchema = extraction.Schema{
	Name: "history",
	Kind: extraction.KindObject,
	Fields: []extraction.Field{
		{Name: "opportunityStatus", Type: extraction.TypeString, Description: "PROCEED, PAUSE or DROP"},
		{Name: "overallConfidence", Type: extraction.TypeString, Description: "LOW, MEDIUM or HIGH"},
		{Name: "keyProblems", Type: extraction.TypeArray, Items: extraction.TypeString, Description: "Up to 3 problems, max 5 words each"},
		{Name: "primaryRisk", Type: extraction.TypeString, Description: "Max 15 words"},
		{Name: "recommendedNextStep", Type: extraction.TypeString, Description: "Max 15 words"},
		{Name: "stopRuleOutcome", Type: extraction.TypeString, Description: "CONTINUE RESEARCH or STOP & MOVE ON"},
	},
}

// Options sizes the history extraction call and the stored snippet
type Options struct {
	Model         string
	MaxChars      int
	SnippetLength int
}

// Service turns a completed analysis into a stored history record
type Service struct {
	generator interfaces.Generator
	extractor *extraction.Extractor
	store     interfaces.HistoryStorage
	prompt    string
	options   Options
	validate  *validator.Validate
	now       func() time.Time
	logger    arbor.ILogger
}

// NewService creates a history service. prompt is the history extraction instruction.
func NewService(generator interfaces.Generator, extractor *extraction.Extractor, store interfaces.HistoryStorage, prompt string, options Options, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if extractor == nil {
		extractor = extraction.NewExtractor(logger)
	}
	if options.MaxChars <= 0 {
		options.MaxChars = 15000
	}
	return &Service{
		generator: generator,
		extractor: extractor,
		store:     store,
		prompt:    prompt,
		options:   options,
		validate:  validator.New(),
		now:       time.Now,
		logger:    logger,
	}
}

// Save extracts the history metadata from result, builds the record and appends it to the store.
// Metadata extraction failure is not an error: conservative defaults are stored instead.
func (s *Service) Save(ctx context.Context, req *models.AnalysisRequest, result *models.AnalysisResult, runLog interfaces.RunLogger) (*models.HistoryRecord, error) {
	runLog.Info("Saving research to history...")

	record, err := s.save(ctx, req, result, runLog)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save history")
		runLog.Error(fmt.Sprintf("Failed to save history: %v", err))
		return nil, err
	}

	s.logger.Info().
		Str("research_id", record.ResearchID).
		Str("decision", string(record.Decision)).
		Msg("History record saved")
	runLog.Success("Research saved successfully!")
	return record, nil
}

func (s *Service) save(ctx context.Context, req *models.AnalysisRequest, result *models.AnalysisResult, runLog interfaces.RunLogger) (*models.HistoryRecord, error) {
	if result == nil {
		return nil, fmt.Errorf("no analysis result to save")
	}

	meta := s.ExtractMetadata(ctx, result.ReportText, runLog)

	now := s.now()
	record, err := Build(BuildInput{
		Request:       req,
		Result:        result,
		Metadata:      meta,
		Now:           now,
		ID:            common.NewResearchID(now),
		Sequence:      common.NewSequenceKey(now),
		SnippetLength: s.options.SnippetLength,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append history record: %w", err)
	}
	if err := s.store.Persist(ctx); err != nil {
		return nil, fmt.Errorf("failed to persist history: %w", err)
	}

	return record, nil
}

// ExtractMetadata runs the history extraction call over reportText.
// Any failure yields models.DefaultHistoryMetadata.
func (s *Service) ExtractMetadata(ctx context.Context, reportText string, runLog interfaces.RunLogger) models.HistoryMetadata {
	runLog.Info("Extracting history metadata...")

	meta, err := s.extractMetadata(ctx, reportText)
	if err != nil {
		s.logger.Warn().Err(err).Msg("History metadata extraction failed, using defaults")
		runLog.Error(fmt.Sprintf("Warning: Could not extract history data. Error: %v", err))
		return models.DefaultHistoryMetadata()
	}
	return meta
}

func (s *Service) extractMetadata(ctx context.Context, reportText string) (models.HistoryMetadata, error) {
	resp, err := s.generator.Generate(ctx, &interfaces.GenerateRequest{
		Parts:          []interfaces.Part{interfaces.TextPart(report.ExtractionPrompt(s.prompt, reportText, s.options.MaxChars))},
		Model:          s.options.Model,
		ResponseSchema: MetadataSchema.JSONSchema(),
	})
	if err != nil {
		return models.HistoryMetadata{}, err
	}

	result, err := s.extractor.Extract(resp.Text, MetadataSchema)
	if err != nil {
		return models.HistoryMetadata{}, err
	}

	meta, err := extraction.Decode[models.HistoryMetadata](result)
	if err != nil {
		return models.HistoryMetadata{}, err
	}

	// Enum values are compared exactly downstream; tolerate case and padding from the model here
	meta.OpportunityStatus = models.OpportunityStatus(strings.ToUpper(strings.TrimSpace(string(meta.OpportunityStatus))))
	meta.OverallConfidence = models.Confidence(strings.ToUpper(strings.TrimSpace(string(meta.OverallConfidence))))
	meta.StopRuleOutcome = models.StopRuleOutcome(strings.ToUpper(strings.TrimSpace(string(meta.StopRuleOutcome))))
	if meta.KeyProblems == nil {
		meta.KeyProblems = []string{}
	}

	if err := s.validate.Struct(meta); err != nil {
		return models.HistoryMetadata{}, fmt.Errorf("history metadata out of range: %w", err)
	}

	return meta, nil
}

// List returns the stored records, newest first
func (s *Service) List(ctx context.Context) ([]*models.HistoryRecord, error) {
	return s.store.List(ctx)
}

// Get returns a single stored record
func (s *Service) Get(ctx context.Context, researchID string) (*models.HistoryRecord, error) {
	return s.store.Get(ctx, researchID)
}
