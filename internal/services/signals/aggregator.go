package signals

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/services/transform"
)

const (
	webSignalsHeader = "\n\n=== RETRIEVED WEB SIGNALS ===\n"
	noSignalsText    = "No text signals provided."
	mimePDF          = "application/pdf"
)

// Aggregator merges the request metadata, pasted signals, the web digest and
// attachments into the ordered input of the report generation call.
type Aggregator struct {
	logger      arbor.ILogger
	transformer *transform.Service
	inspector   interfaces.PDFInspector
}

// NewAggregator creates an aggregator. inspector may be nil, in which case
// PDF attachments are passed through without a page count.
func NewAggregator(logger arbor.ILogger, transformer *transform.Service, inspector interfaces.PDFInspector) *Aggregator {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if transformer == nil {
		transformer = transform.NewService(logger)
	}
	return &Aggregator{
		logger:      logger,
		transformer: transformer,
		inspector:   inspector,
	}
}

// Aggregate returns one text part followed by one binary part per attachment, in input order.
func (a *Aggregator) Aggregate(req *models.AnalysisRequest, webDigest string, runLog interfaces.RunLogger) []interfaces.Part {
	signals := a.transformer.NormalizeSignals(req.RawSignals)
	if webDigest != "" {
		signals += webSignalsHeader + webDigest
	}

	parts := make([]interfaces.Part, 0, 1+len(req.Attachments))
	parts = append(parts, interfaces.TextPart(ContextPrompt(req, signals)))

	if len(req.Attachments) == 0 {
		return parts
	}

	runLog.Info(fmt.Sprintf("Processing %d uploaded files...", len(req.Attachments)))
	for i, att := range req.Attachments {
		mimeType := att.MIMEType
		if mimeType == "" {
			mimeType = mimetype.Detect(att.Data).String()
		}

		name := att.Name
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i+1)
		}

		runLog.Info(a.describe(name, mimeType, att.Data))
		parts = append(parts, interfaces.BinaryPart(att.Data, mimeType))
	}

	a.logger.Debug().
		Int("parts", len(parts)).
		Int("attachments", len(req.Attachments)).
		Msg("Signals aggregated")

	return parts
}

func (a *Aggregator) describe(name, mimeType string, data []byte) string {
	if a.inspector != nil && strings.HasPrefix(mimeType, mimePDF) {
		pages, err := a.inspector.PageCount(data)
		if err != nil {
			a.logger.Warn().Err(err).Str("attachment", name).Msg("Could not read PDF page count")
		} else {
			return fmt.Sprintf("Attached %s (%s, %d pages)", name, mimeType, pages)
		}
	}
	return fmt.Sprintf("Attached %s (%s, %s)", name, mimeType, formatSize(len(data)))
}

// ContextPrompt renders the text block that leads every analysis request.
// signals is the already merged text of pasted and retrieved signals.
func ContextPrompt(req *models.AnalysisRequest, signals string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "INDUSTRY: %s\n", req.Industry)
	fmt.Fprintf(&b, "GEOGRAPHY: %s\n", req.Geography)
	fmt.Fprintf(&b, "PROBLEM FOCUS: %s\n", req.ProblemFocus)
	if req.ResearchQuestion != "" {
		fmt.Fprintf(&b, "SPECIFIC RESEARCH QUESTION: %s\n", req.ResearchQuestion)
	}
	if req.AssumptionTested != "" {
		fmt.Fprintf(&b, "ASSUMPTION TO TEST: %s\n", req.AssumptionTested)
	}

	if signals == "" {
		signals = noSignalsText
	}
	b.WriteString("\nCOLLECTED SIGNALS:\n")
	b.WriteString(signals)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Output Mode: %s\n", req.Mode)
	return b.String()
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
