package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOpportunityStatus is returned when a status outside PROCEED/PAUSE/DROP is mapped to a decision
var ErrInvalidOpportunityStatus = errors.New("invalid opportunity status")

type OpportunityStatus string

const (
	StatusProceed OpportunityStatus = "PROCEED"
	StatusPause   OpportunityStatus = "PAUSE"
	StatusDrop    OpportunityStatus = "DROP"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

type Decision string

const (
	DecisionProceed Decision = "Proceed"
	DecisionPause   Decision = "Pause"
	DecisionDrop    Decision = "Drop"
)

type StopRuleOutcome string

const (
	StopRuleContinue StopRuleOutcome = "CONTINUE RESEARCH"
	StopRuleStop     StopRuleOutcome = "STOP & MOVE ON"
)

// DecisionFor maps an opportunity status to its title-cased decision.
// Only the three known statuses map; anything else is an error.
func DecisionFor(status OpportunityStatus) (Decision, error) {
	switch status {
	case StatusProceed:
		return DecisionProceed, nil
	case StatusPause:
		return DecisionPause, nil
	case StatusDrop:
		return DecisionDrop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOpportunityStatus, string(status))
	}
}

// HistoryMetadata is the output of the history extraction pass.
// OpportunityStatus is checked by DecisionFor when the record is built.
type HistoryMetadata struct {
	OpportunityStatus   OpportunityStatus `json:"opportunityStatus"`
	OverallConfidence   Confidence        `json:"overallConfidence" validate:"oneof=LOW MEDIUM HIGH"`
	KeyProblems         []string          `json:"keyProblems"`
	PrimaryRisk         string            `json:"primaryRisk"`
	RecommendedNextStep string            `json:"recommendedNextStep"`
	StopRuleOutcome     StopRuleOutcome   `json:"stopRuleOutcome" validate:"oneof='CONTINUE RESEARCH' 'STOP & MOVE ON'"`
}

// DefaultHistoryMetadata is the conservative substitute used when extraction fails
func DefaultHistoryMetadata() HistoryMetadata {
	return HistoryMetadata{
		OpportunityStatus:   StatusPause,
		OverallConfidence:   ConfidenceLow,
		KeyProblems:         []string{"Extraction failed"},
		PrimaryRisk:         "Unknown",
		RecommendedNextStep: "Review report manually",
		StopRuleOutcome:     StopRuleContinue,
	}
}

// HistoryRecord is the persisted summary of a saved research run.
// Decision always equals the title-cased OpportunityStatus.
type HistoryRecord struct {
	ResearchID          string            `json:"researchId"`
	Date                string            `json:"date"` // YYYY-MM-DD
	Industry            string            `json:"industry" badgerhold:"index"`
	Geography           string            `json:"geography"`
	ProblemFocus        string            `json:"problemFocus"`
	AssumptionTested    string            `json:"assumptionTested"`
	OpportunityStatus   OpportunityStatus `json:"opportunityStatus"`
	OverallConfidence   Confidence        `json:"overallConfidence"`
	Decision            Decision          `json:"decision"`
	StopRuleOutcome     StopRuleOutcome   `json:"stopRuleOutcome"`
	KeyProblems         []string          `json:"keyProblems"`
	PrimaryRisk         string            `json:"primaryRisk"`
	RecommendedNextStep string            `json:"recommendedNextStep"`
	Tags                []string          `json:"tags"`
	ResearchStage       AnalysisMode      `json:"researchStage"`
	ReportSnippet       string            `json:"reportSnippet"`
	CreatedAt           time.Time         `json:"createdAt"`

	// Sequence orders records newest-first independent of clock resolution
	Sequence string `json:"sequence" badgerhold:"index"`
}
