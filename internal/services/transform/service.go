package transform

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// Service normalizes pasted signal text. Users often paste forum threads or
// review pages straight from a browser, so HTML input is converted to markdown
// before it reaches the model. Plain text passes through untouched.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Service{
		logger: logger,
	}
}

// NormalizeSignals returns raw unchanged unless it contains HTML markup,
// in which case the markdown rendition is returned.
func (s *Service) NormalizeSignals(raw string) string {
	if !IsHTML(raw) {
		return raw
	}

	converted, err := s.HTMLToMarkdown(raw, "")
	if err != nil {
		return raw
	}
	return converted
}

// HTMLToMarkdown converts HTML content to markdown.
// baseURL is used for resolving relative links.
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if html == "" {
		return "", nil
	}

	s.logger.Debug().
		Int("html_length", len(html)).
		Str("base_url", baseURL).
		Msg("Converting HTML signals to markdown")

	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using text fallback")
		return textOnly(html), nil
	}

	if strings.TrimSpace(converted) == "" {
		s.logger.Warn().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, using text fallback")
		return textOnly(html), nil
	}

	return converted, nil
}

// IsHTML reports whether content parses into at least one element inside <body>.
// "a < b" style prose parses as a bare text node and is not treated as HTML.
func IsHTML(content string) bool {
	if !strings.Contains(content, "<") {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return false
	}
	return doc.Find("body").Children().Length() > 0
}

// textOnly strips markup and collapses whitespace
func textOnly(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
