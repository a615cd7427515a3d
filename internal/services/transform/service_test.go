package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain text", "Invoices are always late.", false},
		{"comparison prose", "cost < revenue for most shops", false},
		{"empty", "", false},
		{"paragraph markup", "<p>Invoices are always late.</p>", true},
		{"inline markup", "Owners say <b>cash flow</b> is the issue", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHTML(tt.input))
		})
	}
}

func TestNormalizeSignals_PlainTextUnchanged(t *testing.T) {
	s := NewService(nil)
	raw := "  line one\n\nline two  "
	assert.Equal(t, raw, s.NormalizeSignals(raw))
}

func TestNormalizeSignals_HTMLToMarkdown(t *testing.T) {
	s := NewService(nil)
	out := s.NormalizeSignals("<h2>Reviews</h2><ul><li>Slow payouts</li><li>Hidden fees</li></ul>")

	assert.Contains(t, out, "## Reviews")
	assert.Contains(t, out, "Slow payouts")
	assert.Contains(t, out, "Hidden fees")
	assert.NotContains(t, out, "<li>")
}

func TestHTMLToMarkdown_Empty(t *testing.T) {
	s := NewService(nil)
	out, err := s.HTMLToMarkdown("", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTextOnly(t *testing.T) {
	assert.Equal(t, "Hello world", textOnly("<div>Hello\n\n   <span>world</span></div>"))
}
