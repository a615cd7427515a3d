package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/marketsignal/internal/models"
)

// formatAnalysis formats a finished run as markdown: report, chart data, sources, log
func formatAnalysis(snap *models.RunSnapshot) string {
	var sb strings.Builder

	if snap.State == models.StateError {
		sb.WriteString(fmt.Sprintf("## Analysis Failed\n\n%s\n\n", snap.Error))
	} else if snap.Result != nil {
		sb.WriteString(snap.Result.ReportText)
		sb.WriteString("\n\n")

		sb.WriteString("## Chart Data\n\n```json\n")
		chart, _ := json.MarshalIndent(snap.Result.ChartData, "", "  ")
		sb.Write(chart)
		sb.WriteString("\n```\n\n")

		if len(snap.Result.GroundingSources) > 0 {
			sb.WriteString("## Sources\n\n")
			for _, s := range snap.Result.GroundingSources {
				sb.WriteString(fmt.Sprintf("- [%s](%s)\n", s.Title, s.URI))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("## Run Log\n\n")
	for _, e := range snap.Log {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", e.DisplayTime(), e.Message))
	}

	return sb.String()
}

// formatRecord formats one history record
func formatRecord(r *models.HistoryRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("### %s in %s (%s)\n", r.Industry, r.Geography, r.Date))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", r.ResearchID))
	sb.WriteString(fmt.Sprintf("**Problem Focus:** %s\n", r.ProblemFocus))
	sb.WriteString(fmt.Sprintf("**Decision:** %s (%s confidence)\n", r.Decision, r.OverallConfidence))
	sb.WriteString(fmt.Sprintf("**Stop Rule:** %s\n", r.StopRuleOutcome))
	if len(r.KeyProblems) > 0 {
		sb.WriteString(fmt.Sprintf("**Key Problems:** %s\n", strings.Join(r.KeyProblems, "; ")))
	}
	sb.WriteString(fmt.Sprintf("**Primary Risk:** %s\n", r.PrimaryRisk))
	sb.WriteString(fmt.Sprintf("**Next Step:** %s\n", r.RecommendedNextStep))
	return sb.String()
}

// formatHistory formats the history list as markdown
func formatHistory(records []*models.HistoryRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Research History (%d records)\n\n", len(records)))

	if len(records) == 0 {
		sb.WriteString("No research saved yet.\n")
		return sb.String()
	}

	for _, r := range records {
		sb.WriteString(formatRecord(r))
		sb.WriteString("\n")
	}
	return sb.String()
}
