package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/httpclient"
	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

// GeminiGenerator implements interfaces.Generator on the Google Gemini API
type GeminiGenerator struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	limiter *rate.Limiter
	retry   *RetryConfig
	timeout time.Duration

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiGenerator creates a Gemini generator. The client is created lazily on first use.
func NewGeminiGenerator(config *common.GeminiConfig, logger arbor.ILogger) *GeminiGenerator {
	return &GeminiGenerator{
		config:  config,
		logger:  logger,
		limiter: newLimiter(config.RateLimit),
		retry:   NewDefaultRetryConfig(),
		timeout: common.ParseDuration(config.Timeout, 5*time.Minute),
	}
}

// newLimiter converts a minimum-interval duration string into a token bucket of size 1
func newLimiter(interval string) *rate.Limiter {
	d := common.ParseDuration(interval, 0)
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

func (g *GeminiGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	apiKey, err := common.ResolveAPIKey("gemini_api_key", g.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpclient.NewLoggingHTTPClient("gemini", g.timeout, g.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g.client = client
	return client, nil
}

// Generate performs one generation call. An empty model reply is returned as empty text, not an error.
func (g *GeminiGenerator) Generate(ctx context.Context, request *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = g.config.ScanModel
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: convertPartsToGemini(request.Parts),
	}}

	config := &genai.GenerateContentConfig{}
	if g.config.Temperature > 0 {
		config.Temperature = genai.Ptr(g.config.Temperature)
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}
	if request.ThinkingBudget != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(*request.ThinkingBudget),
		}
	}
	if request.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if request.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxOutputTokens)
	}
	if len(request.ResponseSchema) > 0 {
		schema, err := convertToGenaiSchema(request.ResponseSchema)
		if err != nil {
			g.logger.Warn().Err(err).Msg("Failed to convert response schema - continuing without it")
		} else if schema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = schema
		}
	}

	g.logger.Debug().
		Str("model", model).
		Int("parts", len(request.Parts)).
		Bool("web_search", request.WebSearch).
		Bool("schema", config.ResponseSchema != nil).
		Msg("Generating content with Gemini")

	var resp *genai.GenerateContentResponse
	start := time.Now()

	err = withRetry(ctx, g.logger, "Gemini", g.retry, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		var callErr error
		resp, callErr = client.Models.GenerateContent(callCtx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	out := &interfaces.GenerateResponse{Model: model}
	if resp != nil {
		out.Text = resp.Text()
		out.Sources = groundingSources(resp)
	}

	g.logger.Debug().
		Str("model", model).
		Int("text_length", len(out.Text)).
		Int("sources", len(out.Sources)).
		Dur("duration", time.Since(start)).
		Msg("Gemini generation complete")

	return out, nil
}

func convertPartsToGemini(parts []interfaces.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsBinary() {
			out = append(out, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return out
}

// groundingSources collects web citations from every candidate's grounding metadata
func groundingSources(resp *genai.GenerateContentResponse) []models.GroundingSource {
	var sources []models.GroundingSource
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			sources = append(sources, models.GroundingSource{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}
	return sources
}

// convertToGenaiSchema converts a JSON-schema map into a genai.Schema
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		default:
			return nil, fmt.Errorf("unsupported schema type %q", typeStr)
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	switch req := schemaMap["required"].(type) {
	case []interface{}:
		for _, v := range req {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	case []string:
		schema.Required = req
	}

	if itemsMap, ok := schemaMap["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = itemSchema
	}

	if propsMap, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(propsMap))
		for propName, propVal := range propsMap {
			propMap, ok := propVal.(map[string]interface{})
			if !ok {
				continue
			}
			propSchema, err := convertToGenaiSchema(propMap)
			if err != nil {
				return nil, fmt.Errorf("failed to convert property '%s': %w", propName, err)
			}
			schema.Properties[propName] = propSchema
		}
	}

	return schema, nil
}
