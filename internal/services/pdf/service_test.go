package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/models"
)

func TestConvertMarkdownToPDF(t *testing.T) {
	service := NewService(arbor.NewLogger())

	tests := []struct {
		name     string
		markdown string
		title    string
	}{
		{
			name:     "Basic Markdown",
			markdown: "# Title\n\nSome paragraph text.\n\n- Item 1\n- Item 2",
			title:    "Test Document",
		},
		{
			name:     "Empty Markdown",
			markdown: "",
			title:    "Empty Doc",
		},
		{
			name: "Table and Code",
			markdown: "# Header\n\n| Col 1 | Col 2 |\n|-------|-------|\n| Val 1 | Val 2 |\n\n" +
				"```\nraw block\n```",
			title: "Complex Doc",
		},
		{
			name:     "Smart punctuation",
			markdown: "Owners say “payments are late” — **every** month.",
			title:    "Unicode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.ConvertMarkdownToPDF(tt.markdown, tt.title)
			require.NoError(t, err)
			require.NotEmpty(t, pdfBytes)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestAnalysisMarkdown(t *testing.T) {
	result := &models.AnalysisResult{
		ReportText: "## DEEP REPORT\n\nBody",
		ChartData: []models.FrequencyPoint{
			{Problem: "Late | payments", Frequency: models.FrequencyHigh, Segment: "SMB"},
			{Problem: "Fees", Frequency: models.FrequencyLow, Segment: "Freelancers"},
		},
		GroundingSources: []models.GroundingSource{{URI: "https://a.example", Title: "A"}},
	}

	out := AnalysisMarkdown("Report", result)

	assert.Contains(t, out, "# Report\n\n## DEEP REPORT")
	assert.Contains(t, out, "| Late / payments | High | SMB |")
	assert.Contains(t, out, "| Fees | Low | Freelancers |")
	assert.Contains(t, out, "- A (https://a.example)")
}

func TestRenderAnalysis(t *testing.T) {
	service := NewService(nil)

	_, err := service.RenderAnalysis(nil, nil)
	assert.Error(t, err)

	req := &models.AnalysisRequest{Industry: "Logistics", Geography: "Brazil"}
	out, err := service.RenderAnalysis(req, &models.AnalysisResult{ReportText: "# SCAN SUMMARY\n\nok"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestInspector_PageCount(t *testing.T) {
	doc, err := NewService(nil).ConvertMarkdownToPDF("# One page", "Inspect")
	require.NoError(t, err)

	pages, err := NewInspector(nil).PageCount(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)

	_, err = NewInspector(nil).PageCount(nil)
	assert.Error(t, err)
}
