package history

import (
	"fmt"
	"time"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/models"
)

const (
	defaultAssumption    = "N/A"
	defaultSnippetLength = 500
	snippetEllipsis      = "..."
	maxKeyProblems       = 3
)

// BuildInput is everything a history record is derived from
type BuildInput struct {
	Request  *models.AnalysisRequest
	Result   *models.AnalysisResult
	Metadata models.HistoryMetadata
	Now      time.Time
	ID       string
	Sequence string

	// SnippetLength is the number of report characters kept, default 500
	SnippetLength int
}

// Build derives a HistoryRecord. It performs no I/O and no generation calls.
// An opportunity status outside PROCEED/PAUSE/DROP is an error.
func Build(in BuildInput) (*models.HistoryRecord, error) {
	if in.Request == nil || in.Result == nil {
		return nil, fmt.Errorf("history record needs both the request and the result")
	}

	decision, err := models.DecisionFor(in.Metadata.OpportunityStatus)
	if err != nil {
		return nil, err
	}

	assumption := in.Request.AssumptionTested
	if assumption == "" {
		assumption = defaultAssumption
	}

	stage := models.ModeDeep
	if in.Request.Mode == models.ModeScan {
		stage = models.ModeScan
	}

	problems := in.Metadata.KeyProblems
	if len(problems) > maxKeyProblems {
		problems = problems[:maxKeyProblems]
	}
	keyProblems := make([]string, len(problems))
	copy(keyProblems, problems)

	return &models.HistoryRecord{
		ResearchID:          in.ID,
		Date:                in.Now.Format("2006-01-02"),
		Industry:            in.Request.Industry,
		Geography:           in.Request.Geography,
		ProblemFocus:        in.Request.ProblemFocus,
		AssumptionTested:    assumption,
		OpportunityStatus:   in.Metadata.OpportunityStatus,
		OverallConfidence:   in.Metadata.OverallConfidence,
		Decision:            decision,
		StopRuleOutcome:     in.Metadata.StopRuleOutcome,
		KeyProblems:         keyProblems,
		PrimaryRisk:         in.Metadata.PrimaryRisk,
		RecommendedNextStep: in.Metadata.RecommendedNextStep,
		Tags:                []string{},
		ResearchStage:       stage,
		ReportSnippet:       Snippet(in.Result.ReportText, in.SnippetLength),
		CreatedAt:           in.Now,
		Sequence:            in.Sequence,
	}, nil
}

// Snippet returns the first n characters of the report followed by "...".
// The ellipsis is appended even when nothing was cut.
func Snippet(report string, n int) string {
	if n <= 0 {
		n = defaultSnippetLength
	}
	return common.TruncateRunes(report, n) + snippetEllipsis
}
