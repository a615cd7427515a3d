package interfaces

import "github.com/ternarybob/marketsignal/internal/models"

// RunLogger receives the user-facing progress messages of one pipeline run
type RunLogger interface {
	Info(message string)
	Success(message string)
	Error(message string)
}

// RunObserver is notified of run log entries and state transitions as they happen
type RunObserver interface {
	OnLogEntry(entry models.LogEntry)
	OnStateChange(runID string, state models.PipelineState)
}
