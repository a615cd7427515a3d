package handlers

import (
	"context"

	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/services/pipeline"
)

// AnalysisRunner defines the methods needed from the pipeline orchestrator
type AnalysisRunner interface {
	Run(ctx context.Context, req *models.AnalysisRequest) (*models.RunSnapshot, error)
	Snapshot() *models.RunSnapshot
	Reset() error
	PrepareSave(runID string) (pipeline.SaveFunc, error)
}

// HistoryReader defines the read side of the research history
type HistoryReader interface {
	List(ctx context.Context) ([]*models.HistoryRecord, error)
	Get(ctx context.Context, researchID string) (*models.HistoryRecord, error)
}

// ReportRenderer renders a completed analysis as a PDF document
type ReportRenderer interface {
	RenderAnalysis(req *models.AnalysisRequest, result *models.AnalysisResult) ([]byte, error)
}
