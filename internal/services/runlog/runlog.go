package runlog

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

// Log is the append-only, chronological log of a single run.
// Every entry is mirrored to the process logger and forwarded to the observer.
type Log struct {
	runID    string
	logger   arbor.ILogger
	observer interfaces.RunObserver
	now      func() time.Time

	mu      sync.RWMutex
	entries []models.LogEntry
}

// New creates an empty run log. observer may be nil.
func New(runID string, logger arbor.ILogger, observer interfaces.RunObserver) *Log {
	return &Log{
		runID:    runID,
		logger:   logger,
		observer: observer,
		now:      time.Now,
	}
}

func (l *Log) Info(message string) {
	l.append(message, models.SeverityInfo)
}

func (l *Log) Success(message string) {
	l.append(message, models.SeveritySuccess)
}

func (l *Log) Error(message string) {
	l.append(message, models.SeverityError)
}

// Entries returns a copy of the entries written so far
func (l *Log) Entries() []models.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries written so far
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) append(message string, severity models.Severity) {
	entry := models.LogEntry{
		RunID:     l.runID,
		Timestamp: l.now(),
		Message:   message,
		Severity:  severity,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.logger != nil {
		if severity == models.SeverityError {
			l.logger.Warn().Str("run_id", l.runID).Msg(message)
		} else {
			l.logger.Info().Str("run_id", l.runID).Str("severity", string(severity)).Msg(message)
		}
	}

	if l.observer != nil {
		l.observer.OnLogEntry(entry)
	}
}

var _ interfaces.RunLogger = (*Log)(nil)
