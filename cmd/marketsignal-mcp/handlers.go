package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/models"
)

// analysisService is the slice of the orchestrator the tools need
type analysisService interface {
	Run(ctx context.Context, req *models.AnalysisRequest) (*models.RunSnapshot, error)
	SaveHistory(ctx context.Context) (*models.HistoryRecord, error)
	History(ctx context.Context) ([]*models.HistoryRecord, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleAnalyzeMarket implements the analyze_market tool
func handleAnalyzeMarket(svc analysisService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := &models.AnalysisRequest{
			Industry:         strings.TrimSpace(request.GetString("industry", "")),
			Geography:        strings.TrimSpace(request.GetString("geography", "")),
			ProblemFocus:     strings.TrimSpace(request.GetString("problem_focus", "")),
			ResearchQuestion: request.GetString("research_question", ""),
			AssumptionTested: request.GetString("assumption_tested", ""),
			RawSignals:       request.GetString("raw_signals", ""),
			UseWebGrounding:  request.GetBool("use_web_grounding", false),
			Mode:             models.AnalysisMode(strings.ToUpper(request.GetString("mode", string(models.ModeScan)))),
		}

		if err := req.Validate(); err != nil {
			return textResult(fmt.Sprintf("Error: invalid request: %v", err)), nil
		}

		snap, err := svc.Run(ctx, req)
		if err != nil {
			logger.Error().Err(err).Msg("Analysis failed")
			if snap == nil {
				return textResult(fmt.Sprintf("Analysis error: %v", err)), nil
			}
		}

		return textResult(formatAnalysis(snap)), nil
	}
}

// handleSaveHistory implements the save_history tool
func handleSaveHistory(svc analysisService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		record, err := svc.SaveHistory(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("History save failed")
			return textResult(fmt.Sprintf("Save error: %v", err)), nil
		}

		return textResult(formatRecord(record)), nil
	}
}

// handleListHistory implements the list_history tool
func handleListHistory(svc analysisService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		records, err := svc.History(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("History list failed")
			return textResult(fmt.Sprintf("History error: %v", err)), nil
		}

		if len(records) > limit {
			records = records[:limit]
		}

		return textResult(formatHistory(records)), nil
	}
}
