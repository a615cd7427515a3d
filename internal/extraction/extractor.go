package extraction

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

var (
	// jsonFencePattern captures the body of the first block tagged ```json
	jsonFencePattern = regexp.MustCompile("(?i)```json\\s*([\\s\\S]*?)\\s*```")
	// anyFencePattern captures the body of the first fenced block, skipping its language tag
	anyFencePattern = regexp.MustCompile("```[A-Za-z]*\\s*([\\s\\S]*?)\\s*```")
)

// Result is a validated extraction
type Result struct {
	// Value is the decoded JSON: map[string]interface{} for object schemas, []interface{} for arrays.
	// Numbers are json.Number.
	Value interface{}

	// JSON is the exact text that was parsed
	JSON []byte

	// Wrapped is set when a lone object was wrapped into a one-element array
	Wrapped bool
}

// Extractor coerces semi-structured model output into data matching a Schema
type Extractor struct {
	logger arbor.ILogger
}

// NewExtractor creates an extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Extractor{logger: logger}
}

// Extract recovers JSON from text and validates it against schema.
// Steps run in order and stop at the first that applies: fence unwrap, trim,
// bracket slicing (array schemas, with object wrap fallback), parse, required fields.
func (e *Extractor) Extract(text string, schema Schema) (*Result, error) {
	candidate := strings.TrimSpace(unfence(text))

	wrapped := false
	if schema.Kind == KindArray {
		sliced, ok := sliceBetween(candidate, '[', ']')
		if ok {
			candidate = sliced
		} else if obj, ok := sliceBetween(candidate, '{', '}'); ok {
			e.logger.Info().
				Str("schema", schema.Name).
				Msg("Model returned a single JSON object; wrapping it in an array for parsing")
			candidate = "[" + obj + "]"
			wrapped = true
		} else {
			return nil, newError(ErrNoStructure, schema, text)
		}
	}

	value, err := decode(candidate)
	if err != nil {
		xerr := newError(ErrParse, schema, text)
		xerr.Err = err
		return nil, xerr
	}

	if err := validate(value, schema, text); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("schema", schema.Name).
		Bool("wrapped", wrapped).
		Int("bytes", len(candidate)).
		Msg("Structured extraction succeeded")

	return &Result{Value: value, JSON: []byte(candidate), Wrapped: wrapped}, nil
}

// Decode unmarshals a validated result into T
func Decode[T any](r *Result) (T, error) {
	var out T
	if r == nil {
		return out, fmt.Errorf("nil extraction result")
	}
	if err := json.Unmarshal(r.JSON, &out); err != nil {
		return out, fmt.Errorf("failed to decode extraction result: %w", err)
	}
	return out, nil
}

// unfence returns the body of the ```json block, or of the first fenced block when none is tagged json
func unfence(text string) string {
	if m := jsonFencePattern.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	if m := anyFencePattern.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return text
}

// sliceBetween returns s[first open : last close+1] when both exist in that order
func sliceBetween(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func decode(s string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// Reject trailing content such as a second document
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected content after JSON value")
	}
	return v, nil
}

func validate(value interface{}, schema Schema, raw string) error {
	switch schema.Kind {
	case KindArray:
		items, ok := value.([]interface{})
		if !ok {
			xerr := newError(ErrTypeMismatch, schema, raw)
			xerr.Field = "(root)"
			return xerr
		}
		for i, item := range items {
			if err := validateObject(item, schema, raw, i); err != nil {
				return err
			}
		}
		return nil
	default:
		return validateObject(value, schema, raw, -1)
	}
}

func validateObject(value interface{}, schema Schema, raw string, index int) error {
	obj, ok := value.(map[string]interface{})
	if !ok {
		xerr := newError(ErrTypeMismatch, schema, raw)
		xerr.Field = "(root)"
		xerr.Index = index
		return xerr
	}

	for _, field := range schema.Fields {
		v, present := obj[field.Name]
		if !present {
			xerr := newError(ErrMissingField, schema, raw)
			xerr.Field = field.Name
			xerr.Index = index
			return xerr
		}
		// A present null satisfies the required check
		if v == nil {
			continue
		}
		if !matchesField(v, field) {
			xerr := newError(ErrTypeMismatch, schema, raw)
			xerr.Field = field.Name
			xerr.Index = index
			return xerr
		}
	}
	return nil
}

func matchesField(v interface{}, field Field) bool {
	if matchesType(v, field.Type, field.Items) {
		return true
	}
	for _, t := range field.Accept {
		if matchesType(v, t, "") {
			return true
		}
	}
	return false
}

func matchesType(v interface{}, t FieldType, items FieldType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(json.Number)
		return ok
	case TypeInteger:
		n, ok := v.(json.Number)
		if !ok {
			return false
		}
		f, err := n.Float64()
		return err == nil && f == math.Trunc(f)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		arr, ok := v.([]interface{})
		if !ok {
			return false
		}
		if items == "" {
			return true
		}
		for _, el := range arr {
			if el != nil && !matchesType(el, items, "") {
				return false
			}
		}
		return true
	case TypeObject:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}
