package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/extraction"
	"github.com/ternarybob/marketsignal/internal/interfaces"
	"github.com/ternarybob/marketsignal/internal/models"
)

const wrapNotice = "Warning: Model returned a single JSON object; attempting to wrap it in an array for parsing."

// ChartSchema is the array of frequency points the chart call must return
var ChartSchema = extraction.Schema{
	Name: "chart",
	Kind: extraction.KindArray,
	Fields: []extraction.Field{
		{Name: "problem", Type: extraction.TypeString, Description: "Problem name, max 5 words"},
		{Name: "frequency", Type: extraction.TypeNumber, Description: "1 for LOW, 5 for MEDIUM, 10 for HIGH", Accept: []extraction.FieldType{extraction.TypeString}},
		{Name: "segment", Type: extraction.TypeString, Description: "User segment, max 3 words"},
	},
}

// chartPoint is the wire shape; frequency may arrive as any number or as a level name
type chartPoint struct {
	Problem   string         `json:"problem"`
	Frequency frequencyValue `json:"frequency"`
	Segment   string         `json:"segment"`
}

// frequencyValue decodes a number, a numeric string or LOW/MEDIUM/HIGH.
// Any other string leaves it unknown and the point is dropped.
type frequencyValue struct {
	value   float64
	unknown bool
}

func (f *frequencyValue) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '"' {
		var n *float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if n != nil {
			f.value = *n
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		f.value = models.FrequencyLow
	case "MEDIUM":
		f.value = models.FrequencyMedium
	case "HIGH":
		f.value = models.FrequencyHigh
	default:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			f.unknown = true
			return nil
		}
		f.value = n
	}
	return nil
}

// ChartOptions sizes the chart extraction call
type ChartOptions struct {
	Model     string
	MaxChars  int // report prefix sent to the model
	MaxTokens int
}

// ChartExtractor derives the frequency chart from a finished report.
// It never fails: any problem yields an empty chart and a run log warning.
type ChartExtractor struct {
	generator interfaces.Generator
	extractor *extraction.Extractor
	prompt    string
	options   ChartOptions
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewChartExtractor creates a chart extractor
func NewChartExtractor(generator interfaces.Generator, extractor *extraction.Extractor, prompt string, options ChartOptions, logger arbor.ILogger) *ChartExtractor {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if extractor == nil {
		extractor = extraction.NewExtractor(logger)
	}
	if options.MaxChars <= 0 {
		options.MaxChars = 15000
	}
	if options.MaxTokens <= 0 {
		options.MaxTokens = 1024
	}
	return &ChartExtractor{
		generator: generator,
		extractor: extractor,
		prompt:    prompt,
		options:   options,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Extract returns the chart points for reportText. The result is never nil.
func (c *ChartExtractor) Extract(ctx context.Context, reportText string, runLog interfaces.RunLogger) []models.FrequencyPoint {
	runLog.Info("Extracting structured data for visualization...")

	points, err := c.extract(ctx, reportText, runLog)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Chart extraction failed")
		runLog.Error(fmt.Sprintf("Warning: Could not generate chart data. Error: %v", err))
		return []models.FrequencyPoint{}
	}
	return points
}

func (c *ChartExtractor) extract(ctx context.Context, reportText string, runLog interfaces.RunLogger) ([]models.FrequencyPoint, error) {
	resp, err := c.generator.Generate(ctx, &interfaces.GenerateRequest{
		Parts:           []interfaces.Part{interfaces.TextPart(ExtractionPrompt(c.prompt, reportText, c.options.MaxChars))},
		Model:           c.options.Model,
		ResponseSchema:  ChartSchema.JSONSchema(),
		MaxOutputTokens: c.options.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	result, err := c.extractor.Extract(resp.Text, ChartSchema)
	if err != nil {
		return nil, err
	}
	if result.Wrapped {
		runLog.Info(wrapNotice)
	}

	raw, err := extraction.Decode[[]chartPoint](result)
	if err != nil {
		return nil, err
	}

	points := make([]models.FrequencyPoint, 0, len(raw))
	for i, p := range raw {
		if p.Frequency.unknown {
			c.logger.Debug().Int("index", i).Msg("Dropping chart point with unrecognised frequency")
			continue
		}
		point := models.FrequencyPoint{
			Problem:   TruncateWords(p.Problem, 5),
			Frequency: SnapFrequency(p.Frequency.value),
			Segment:   TruncateWords(p.Segment, 3),
		}
		if err := c.validate.Struct(point); err != nil {
			c.logger.Debug().Err(err).Int("index", i).Msg("Dropping invalid chart point")
			continue
		}
		points = append(points, point)
	}

	return points, nil
}

// ExtractionPrompt joins an extraction instruction with the leading maxChars characters of the report
func ExtractionPrompt(instruction, reportText string, maxChars int) string {
	return strings.TrimSpace(instruction) + "\n\nREPORT CONTENT:\n" + common.TruncateRunes(reportText, maxChars)
}

// SnapFrequency maps any number onto the nearest of LOW (1), MEDIUM (5) and HIGH (10)
func SnapFrequency(f float64) int {
	switch {
	case math.IsNaN(f) || f < 3:
		return models.FrequencyLow
	case f < 7.5:
		return models.FrequencyMedium
	default:
		return models.FrequencyHigh
	}
}

// TruncateWords keeps at most n whitespace-separated words
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
