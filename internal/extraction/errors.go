package extraction

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against an *Error.
var (
	ErrNoStructure  = errors.New("extracted text does not contain a valid JSON array or object structure")
	ErrParse        = errors.New("extracted text is not valid JSON")
	ErrMissingField = errors.New("missing field in extracted record")
	ErrTypeMismatch = errors.New("field has the wrong type in extracted record")
)

// Error describes why model output could not be coerced into a schema.
// Raw always holds the unmodified model output.
type Error struct {
	Kind   error
	Schema string
	Field  string // offending field, "" for structural failures
	Index  int    // element index for array schemas, -1 otherwise
	Raw    string
	Err    error // underlying parser error, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrMissingField, ErrTypeMismatch:
		if e.Index >= 0 {
			return fmt.Sprintf("%s: %s (element %d)", e.Kind.Error(), e.Field, e.Index)
		}
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Field)
	case ErrParse:
		return fmt.Sprintf("%s: %v. Raw output: %s", e.Kind.Error(), e.Err, e.Raw)
	default:
		return fmt.Sprintf("%s. Raw output: %s", e.Kind.Error(), e.Raw)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, schema Schema, raw string) *Error {
	return &Error{Kind: kind, Schema: schema.Name, Index: -1, Raw: raw}
}
