package grounding

import (
	"context"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
	"github.com/ternarybob/marketsignal/internal/templates"
)

const (
	defaultSourceTitle = "Source"
	failureMessage     = "Warning: Web search encountered an issue. Proceeding with provided data."
)

// Result is the best-effort output of the retrieval call
type Result struct {
	Digest  string
	Sources []models.GroundingSource
}

// Limits is the number of negative signals requested per mode
type Limits struct {
	Scan int
	Deep int
}

// Stage runs the optional web retrieval call. It never fails: any provider
// error is reported to the run log and an empty Result is returned.
type Stage struct {
	generator interfaces.Generator
	prompt    string
	model     string
	limits    Limits
	logger    arbor.ILogger
}

// NewStage creates a grounding stage. prompt is the grounding query template.
func NewStage(generator interfaces.Generator, prompt, model string, limits Limits, logger arbor.ILogger) *Stage {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if limits.Scan <= 0 {
		limits.Scan = 5
	}
	if limits.Deep <= 0 {
		limits.Deep = 15
	}
	return &Stage{
		generator: generator,
		prompt:    prompt,
		model:     model,
		limits:    limits,
		logger:    logger,
	}
}

// Limit returns the requested signal count for mode
func (s *Stage) Limit(mode models.AnalysisMode) int {
	if mode == models.ModeScan {
		return s.limits.Scan
	}
	return s.limits.Deep
}

// Query renders the retrieval prompt for req
func (s *Stage) Query(req *models.AnalysisRequest) string {
	return strings.TrimSpace(templates.Render(s.prompt, map[string]string{
		"query":     req.ProblemFocus,
		"industry":  req.Industry,
		"geography": req.Geography,
		"limit":     strconv.Itoa(s.Limit(req.Mode)),
	}))
}

// Retrieve issues the web-search generation call for req
func (s *Stage) Retrieve(ctx context.Context, req *models.AnalysisRequest, runLog interfaces.RunLogger) Result {
	runLog.Info("Initiating Google Search grounding...")

	resp, err := s.generator.Generate(ctx, &interfaces.GenerateRequest{
		Parts:     []interfaces.Part{interfaces.TextPart(s.Query(req))},
		Model:     s.model,
		WebSearch: true,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("Web grounding failed, continuing without retrieved signals")
		runLog.Error(failureMessage)
		return Result{}
	}

	result := Result{
		Digest:  strings.TrimSpace(resp.Text),
		Sources: DedupeSources(resp.Sources),
	}
	if result.Digest != "" {
		runLog.Info("Web signals retrieved and added to context.")
	}

	s.logger.Debug().
		Int("digest_length", len(result.Digest)).
		Int("sources", len(result.Sources)).
		Msg("Web grounding complete")

	return result
}

// DedupeSources drops entries without a URI, keeps the first occurrence of
// each URI and fills missing titles with "Source".
func DedupeSources(sources []models.GroundingSource) []models.GroundingSource {
	out := make([]models.GroundingSource, 0, len(sources))
	seen := make(map[string]bool, len(sources))

	for _, src := range sources {
		uri := strings.TrimSpace(src.URI)
		if uri == "" || seen[uri] {
			continue
		}
		seen[uri] = true

		title := strings.TrimSpace(src.Title)
		if title == "" {
			title = defaultSourceTitle
		}
		out = append(out, models.GroundingSource{URI: uri, Title: title})
	}

	return out
}
