package models

import "time"

// PipelineState is the orchestrator's externally visible state
type PipelineState string

const (
	StateIdle      PipelineState = "IDLE"
	StateSearching PipelineState = "SEARCHING"
	StateAnalyzing PipelineState = "ANALYZING"
	StateComplete  PipelineState = "COMPLETE"
	StateError     PipelineState = "ERROR"
)

// IsRunning reports whether a run is in flight
func (s PipelineState) IsRunning() bool {
	return s == StateSearching || s == StateAnalyzing
}

// RunSnapshot is a point-in-time copy of the orchestrator's current run
type RunSnapshot struct {
	RunID       string           `json:"run_id,omitempty"`
	State       PipelineState    `json:"state"`
	Mode        AnalysisMode     `json:"mode,omitempty"`
	Request     *AnalysisRequest `json:"-"`
	Result      *AnalysisResult  `json:"result,omitempty"`
	Log         []LogEntry       `json:"log"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at,omitempty"`
	CompletedAt time.Time        `json:"completed_at,omitempty"`
}
