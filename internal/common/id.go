package common

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// idSequence keeps ids unique even when two are minted within the same clock tick
var idSequence uint64

// NewRunID generates a unique pipeline run ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewResearchID returns a history record id of the form research-<unix millis>-<seq>.
// The sequence part makes rapid successive saves collision free.
func NewResearchID(now time.Time) string {
	seq := atomic.AddUint64(&idSequence, 1)
	return fmt.Sprintf("research-%d-%d", now.UnixMilli(), seq)
}

// NewSequenceKey returns a lexically sortable key: zero-padded nanoseconds plus a process-wide counter.
// For equal timestamps the counter keeps keys in mint order.
func NewSequenceKey(now time.Time) string {
	seq := atomic.AddUint64(&idSequence, 1)
	return fmt.Sprintf("%019d_%010d", now.UnixNano(), seq)
}
