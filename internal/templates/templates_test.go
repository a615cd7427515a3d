package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)

	assert.Contains(t, p.SystemInstruction, "SCAN SUMMARY")
	assert.Contains(t, p.GroundingQuery, "{limit}")
	assert.Contains(t, p.ChartExtraction, `"frequency"`)
	assert.Contains(t, p.HistoryExtraction, `"stopRuleOutcome"`)
}

func TestLoad_OverrideReplacesOnlySetKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grounding_query: \"Search {query}\"\n"), 0644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Search {query}", p.GroundingQuery)
	assert.Contains(t, p.SystemInstruction, "SCAN SUMMARY")
}

func TestLoad_MissingOverride(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	out := Render("top {limit} for {query} ({unknown})", map[string]string{
		"limit": "5",
		"query": "late invoices",
	})
	assert.Equal(t, "top 5 for late invoices ({unknown})", out)
}
