package llm

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/interfaces"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// ModelSet names the model used at each pipeline call site
type ModelSet struct {
	Scan       string
	Deep       string
	Grounding  string
	Extraction string
}

// ProviderFactory routes generation requests to a provider based on the model name
type ProviderFactory struct {
	llmConfig *common.LLMConfig
	gemini    interfaces.Generator
	claude    interfaces.Generator
	models    ModelSet
	logger    arbor.ILogger
}

// NewProviderFactory creates the factory and its provider generators
func NewProviderFactory(config *common.Config, logger arbor.ILogger) *ProviderFactory {
	f := &ProviderFactory{
		llmConfig: &config.LLM,
		gemini:    NewGeminiGenerator(&config.Gemini, logger),
		claude:    NewClaudeGenerator(&config.Claude, logger),
		logger:    logger,
	}

	if config.LLM.DefaultProvider == common.LLMProviderClaude {
		f.models = ModelSet{
			Scan:       config.Claude.Model,
			Deep:       config.Claude.Model,
			Grounding:  config.Claude.Model,
			Extraction: config.Claude.Model,
		}
	} else {
		f.models = ModelSet{
			Scan:       config.Gemini.ScanModel,
			Deep:       config.Gemini.DeepModel,
			Grounding:  config.Gemini.GroundingModel,
			Extraction: config.Gemini.ExtractionModel,
		}
	}

	return f
}

// Models returns the model names for the configured default provider
func (f *ProviderFactory) Models() ModelSet {
	return f.models
}

// DetectProvider determines the provider from a model string.
// "claude-..." / "claude/..." / "anthropic/..." select Claude, "gemini-..." / "gemini/..." / "google/..."
// select Gemini, anything else uses the configured default.
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "claude/"), strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(model, "gemini/"), strings.HasPrefix(model, "google/"), strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	}

	if f.llmConfig.DefaultProvider == common.LLMProviderClaude {
		return ProviderClaude
	}
	return ProviderGemini
}

// NormalizeModel removes a provider prefix from a model name
func NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Generate implements interfaces.Generator by delegating to the detected provider
func (f *ProviderFactory) Generate(ctx context.Context, request *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	provider := f.DetectProvider(request.Model)

	routed := *request
	routed.Model = NormalizeModel(request.Model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", routed.Model).
		Msg("Routing generation request")

	if provider == ProviderClaude {
		return f.claude.Generate(ctx, &routed)
	}
	return f.gemini.Generate(ctx, &routed)
}
