// Package templates provides the embedded prompt set with user override support.
// Resolution order:
// 1. User override file (YAML): only the keys it sets replace the embedded values
// 2. Embedded default: internal/templates/prompts.yaml
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var embeddedPrompts []byte

// Prompts holds every prompt the pipeline sends to the model
type Prompts struct {
	SystemInstruction string `yaml:"system_instruction"`
	GroundingQuery    string `yaml:"grounding_query"`
	ChartExtraction   string `yaml:"chart_extraction"`
	HistoryExtraction string `yaml:"history_extraction"`
}

// Load returns the embedded prompts overlaid with overridePath when it is set
func Load(overridePath string) (*Prompts, error) {
	p := &Prompts{}
	if err := yaml.Unmarshal(embeddedPrompts, p); err != nil {
		return nil, fmt.Errorf("failed to parse embedded prompts: %w", err)
	}

	if overridePath == "" {
		return p, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file %s: %w", overridePath, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", overridePath, err)
	}

	return p, nil
}

// MustDefault returns the embedded prompts and panics if they cannot be parsed
func MustDefault() *Prompts {
	p, err := Load("")
	if err != nil {
		panic(err)
	}
	return p
}

// Render replaces {key} placeholders in template with values from vars.
// Unknown placeholders are left untouched.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
