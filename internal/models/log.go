package models

import "time"

// Severity classifies a run log entry for display
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// LogEntry is a single user-facing progress message of a pipeline run.
// A run's entries are append-only and kept in the order they were written.
type LogEntry struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// DisplayTime returns the HH:MM:SS rendering used by the UI and the MCP tool output
func (e LogEntry) DisplayTime() string {
	return e.Timestamp.Format("15:04:05")
}
