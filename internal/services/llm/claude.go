package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/httpclient"
	"github.com/ternarybob/marketsignal/internal/interfaces"
)

// ClaudeGenerator implements interfaces.Generator on the Anthropic Messages API.
// It has no web retrieval and returns interfaces.ErrWebSearchUnsupported for such requests.
type ClaudeGenerator struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	limiter *rate.Limiter
	retry   *RetryConfig
	timeout time.Duration

	mu     sync.Mutex
	client *anthropic.Client
}

// NewClaudeGenerator creates a Claude generator. The client is created lazily on first use.
func NewClaudeGenerator(config *common.ClaudeConfig, logger arbor.ILogger) *ClaudeGenerator {
	return &ClaudeGenerator{
		config:  config,
		logger:  logger,
		limiter: newLimiter(config.RateLimit),
		retry:   NewDefaultRetryConfig(),
		timeout: common.ParseDuration(config.Timeout, 5*time.Minute),
	}
}

func (c *ClaudeGenerator) getClient() (*anthropic.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	apiKey, err := common.ResolveAPIKey("anthropic_api_key", c.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpclient.NewLoggingHTTPClient("claude", c.timeout, c.logger)),
	)
	c.client = &client
	return c.client, nil
}

// Generate performs one generation call
func (c *ClaudeGenerator) Generate(ctx context.Context, request *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	if request.WebSearch {
		return nil, interfaces.ErrWebSearchUnsupported
	}

	client, err := c.getClient()
	if err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = c.config.Model
	}

	maxTokens := request.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(c.convertParts(request.Parts)...),
		},
	}
	if c.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.config.Temperature))
	}

	system := request.SystemInstruction
	if len(request.ResponseSchema) > 0 {
		// No native structured output: describe the schema in the system prompt
		schemaJSON, err := json.Marshal(request.ResponseSchema)
		if err == nil {
			system = strings.TrimSpace(system + "\n\nRespond with JSON only, matching this JSON schema:\n" + string(schemaJSON))
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if request.ThinkingBudget != nil && *request.ThinkingBudget > 0 {
		c.logger.Debug().
			Int("thinking_budget", int(*request.ThinkingBudget)).
			Msg("Thinking budget not applied for Claude provider")
	}

	var resp *anthropic.Message
	start := time.Now()

	err = withRetry(ctx, c.logger, "Claude", c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var callErr error
		resp, callErr = client.Messages.New(callCtx, params)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	if resp != nil {
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
	}

	c.logger.Debug().
		Str("model", model).
		Int("text_length", text.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude generation complete")

	return &interfaces.GenerateResponse{
		Text:  text.String(),
		Model: model,
	}, nil
}

// convertParts maps parts to content blocks. Only image attachments are supported as binary input.
func (c *ClaudeGenerator) convertParts(parts []interfaces.Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		if !p.IsBinary() {
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			continue
		}
		if !strings.HasPrefix(p.MIMEType, "image/") {
			c.logger.Warn().
				Str("mime_type", p.MIMEType).
				Int("bytes", len(p.Data)).
				Msg("Skipping attachment type not supported by Claude provider")
			continue
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(p.MIMEType, base64.StdEncoding.EncodeToString(p.Data)))
	}
	return blocks
}
