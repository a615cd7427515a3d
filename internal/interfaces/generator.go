package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/marketsignal/internal/models"
)

// ErrWebSearchUnsupported is returned by providers that cannot run retrieval-augmented generation
var ErrWebSearchUnsupported = errors.New("web search is not supported by this provider")

// Part is one element of a generation input: either text or an inline binary blob
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// IsBinary reports whether the part carries inline bytes rather than text
func (p Part) IsBinary() bool {
	return len(p.Data) > 0
}

// TextPart creates a text part
func TextPart(text string) Part {
	return Part{Text: text}
}

// BinaryPart creates an inline binary part
func BinaryPart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// GenerateRequest is a provider-agnostic single-turn generation request
type GenerateRequest struct {
	Parts             []Part
	SystemInstruction string
	Model             string // Empty uses the provider default

	// ThinkingBudget is the reasoning token allowance. nil leaves the provider default in place.
	ThinkingBudget *int32

	// WebSearch enables live web retrieval; grounding sources are returned in the response
	WebSearch bool

	// ResponseSchema requests JSON output shaped by the given JSON-schema map
	ResponseSchema map[string]interface{}

	MaxOutputTokens int
}

// GenerateResponse is a provider-agnostic generation response
type GenerateResponse struct {
	Text    string
	Sources []models.GroundingSource
	Model   string
}

// Generator performs one generation call against a text model
type Generator interface {
	Generate(ctx context.Context, request *GenerateRequest) (*GenerateResponse, error)
}
