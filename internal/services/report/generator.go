package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

// FailedOutput is returned in place of report text when the model produces nothing
const FailedOutput = "Analysis failed to generate output."

// Models names the model used for each analysis mode
type Models struct {
	Scan string
	Deep string
}

// Generator produces the long-form report. SCAN runs with no thinking budget,
// DEEP with the configured budget.
type Generator struct {
	generator         interfaces.Generator
	systemInstruction string
	models            Models
	deepBudget        int32
	logger            arbor.ILogger
}

// NewGenerator creates a report generator
func NewGenerator(generator interfaces.Generator, systemInstruction string, models Models, deepBudget int32, logger arbor.ILogger) *Generator {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Generator{
		generator:         generator,
		systemInstruction: systemInstruction,
		models:            models,
		deepBudget:        deepBudget,
		logger:            logger,
	}
}

// Generate runs the report call. A provider error is returned to the caller and ends the run.
func (g *Generator) Generate(ctx context.Context, parts []interfaces.Part, mode models.AnalysisMode, runLog interfaces.RunLogger) (string, error) {
	model := g.models.Deep
	budget := g.deepBudget
	if mode == models.ModeScan {
		model = g.models.Scan
		budget = 0
		runLog.Info("Running Quick Scan Analysis...")
	} else {
		runLog.Info("Engaging deep thinking analysis...")
	}

	g.logger.Debug().
		Str("mode", string(mode)).
		Str("model", model).
		Int("thinking_budget", int(budget)).
		Int("parts", len(parts)).
		Msg("Generating report")

	resp, err := g.generator.Generate(ctx, &interfaces.GenerateRequest{
		Parts:             parts,
		SystemInstruction: g.systemInstruction,
		Model:             model,
		ThinkingBudget:    &budget,
	})
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}

	text := resp.Text
	if strings.TrimSpace(text) == "" {
		g.logger.Warn().Str("model", model).Msg("Report generation returned no text")
		text = FailedOutput
	}

	if mode == models.ModeScan {
		runLog.Info("Quick scan complete.")
	} else {
		runLog.Info("Deep analysis complete.")
	}

	return text, nil
}
