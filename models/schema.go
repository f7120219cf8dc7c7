package models

// JSON schema type names. Backends translate these to their own dialect.
const (
	SchemaObject = "object"
	SchemaArray  = "array"
	SchemaString = "string"
	SchemaNumber = "number"
)

// Schema is the subset of JSON Schema shared by the supported inference
// services for constrained (structured) output.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}
