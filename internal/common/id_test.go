package common

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewResearchID_UniqueWithinSameInstant(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := NewResearchID(now)
		assert.True(t, strings.HasPrefix(id, "research-1700000000000-"), id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewSequenceKey_Monotonic(t *testing.T) {
	now := time.Now()
	prev := NewSequenceKey(now)

	// Same timestamp: the counter alone must keep keys increasing
	for i := 0; i < 100; i++ {
		next := NewSequenceKey(now)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.NotEqual(t, a, b)
}
