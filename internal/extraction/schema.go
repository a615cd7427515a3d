package extraction

// Kind is the top-level shape a schema expects
type Kind string

const (
	KindObject Kind = "object"
	KindArray  Kind = "array"
)

// FieldType is the JSON primitive a field must hold when present and non-null
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field is a required property. For array schemas the fields describe each element.
type Field struct {
	Name        string
	Type        FieldType
	Items       FieldType // element type for TypeArray fields, empty to skip element checks
	Description string

	// Accept lists further types tolerated on input. They are not advertised in JSONSchema.
	Accept []FieldType
}

// Schema declares the shape an extraction must produce
type Schema struct {
	Name   string
	Kind   Kind
	Fields []Field
}

// JSONSchema renders the schema as a JSON-schema map suitable for a provider's structured-output option
func (s Schema) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Fields))
	required := make([]interface{}, 0, len(s.Fields))

	for _, f := range s.Fields {
		prop := map[string]interface{}{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Type == TypeArray && f.Items != "" {
			prop["items"] = map[string]interface{}{"type": string(f.Items)}
		}
		properties[f.Name] = prop
		required = append(required, f.Name)
	}

	object := map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}

	if s.Kind == KindArray {
		return map[string]interface{}{
			"type":  "array",
			"items": object,
		}
	}
	return object
}
