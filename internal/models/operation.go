package models

import "strings"

// Operation represents one (path, HTTP method) entry of an API specification,
// normalized from the source document.
type Operation struct {
	Path        string             `yaml:"path" json:"path"`
	Method      string             `yaml:"method" json:"method"`
	OperationID string             `yaml:"operation_id,omitempty" json:"operation_id,omitempty"`
	Tags        []string           `yaml:"tags,omitempty" json:"tags,omitempty"`
	Parameters  []Parameter        `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	RequestBody *Schema            `yaml:"request_body,omitempty" json:"request_body,omitempty"`
	Responses   map[string]*Schema `yaml:"responses,omitempty" json:"responses,omitempty"`
}

// Key returns the identity of the operation.
func (o Operation) Key() OperationKey {
	return Key(o.Method, o.Path)
}

// OperationKey identifies an operation as "METHOD /path". It is used as the
// map key in snapshots and suites, so it must stay a plain string.
type OperationKey string

// Key builds an OperationKey from a method and a path.
func Key(method, path string) OperationKey {
	return OperationKey(method + " " + path)
}

// Method returns the HTTP method part of the key.
func (k OperationKey) Method() string {
	m, _, _ := strings.Cut(string(k), " ")
	return m
}

// Path returns the path part of the key.
func (k OperationKey) Path() string {
	_, p, _ := strings.Cut(string(k), " ")
	return p
}

// Parameter represents a single operation parameter.
type Parameter struct {
	Name     string  `yaml:"name" json:"name"`
	In       string  `yaml:"in" json:"in"` // "path", "query", "header" or "cookie"
	Required bool    `yaml:"required,omitempty" json:"required,omitempty"`
	Schema   *Schema `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// Schema is a normalized subset of a JSON schema, covering the parts that are
// fingerprinted and used for test data generation.
type Schema struct {
	Type       string             `yaml:"type,omitempty" json:"type,omitempty"`
	Format     string             `yaml:"format,omitempty" json:"format,omitempty"`
	Pattern    string             `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum       []string           `yaml:"enum,omitempty" json:"enum,omitempty"`
	Minimum    *float64           `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum    *float64           `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	MinLength  *int64             `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength  *int64             `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	MinItems   *int64             `yaml:"min_items,omitempty" json:"min_items,omitempty"`
	MaxItems   *int64             `yaml:"max_items,omitempty" json:"max_items,omitempty"`
	Required   []string           `yaml:"required,omitempty" json:"required,omitempty"`
	Properties map[string]*Schema `yaml:"properties,omitempty" json:"properties,omitempty"`
	Items      *Schema            `yaml:"items,omitempty" json:"items,omitempty"`
}
