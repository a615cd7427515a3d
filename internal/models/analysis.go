package models

import "github.com/go-playground/validator/v10"

// AnalysisMode selects the generation depth of a run.
type AnalysisMode string

const (
	// ModeScan is the fast, low-latency pass with no extended reasoning
	ModeScan AnalysisMode = "SCAN"
	// ModeDeep is the slow pass with a large thinking budget
	ModeDeep AnalysisMode = "DEEP"
)

// IsValid reports whether m is one of the two supported modes
func (m AnalysisMode) IsValid() bool {
	return m == ModeScan || m == ModeDeep
}

// Attachment is an opaque binary payload (typically an image) submitted with a request.
// Data is base64 encoded when the request travels as JSON.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data" validate:"required"`
}

// AnalysisRequest carries everything one pipeline run needs. It is not modified once submitted.
type AnalysisRequest struct {
	Industry         string       `json:"industry" validate:"required"`
	Geography        string       `json:"geography"`
	ProblemFocus     string       `json:"problem_focus" validate:"required"`
	ResearchQuestion string       `json:"research_question,omitempty"`
	AssumptionTested string       `json:"assumption_tested,omitempty"`
	RawSignals       string       `json:"raw_signals"`
	Attachments      []Attachment `json:"attachments,omitempty" validate:"dive"`
	UseWebGrounding  bool         `json:"use_web_grounding"`
	Mode             AnalysisMode `json:"mode" validate:"required,oneof=SCAN DEEP"`
}

// Validate checks the required fields and the mode
func (r *AnalysisRequest) Validate() error {
	return validator.New().Struct(r)
}
