package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"specdrift/internal/models"
)

// Generator produces test cases for a single operation. Implementations may
// be slow or non-deterministic in content, but must return at least one test
// case per response code declared on the operation.
type Generator interface {
	Generate(ctx context.Context, op models.Operation) ([]models.TestCase, error)
}

// GenerationError wraps a per-operation generator failure. It is non-fatal
// for a run: the operation keeps its prior test cases.
type GenerationError struct {
	Method string
	Path   string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("test generation failed for %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SchemaGenerator generates test data from operation schemas. It is the
// default generator and the deterministic-shape stand-in for LLM-backed ones.
type SchemaGenerator struct {
	rng *rand.Rand
}

// NewSchemaGenerator creates a new schema-driven generator.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate produces one test case per declared response code.
func (g *SchemaGenerator) Generate(ctx context.Context, op models.Operation) ([]models.TestCase, error) {
	codes := make([]string, 0, len(op.Responses))
	for code := range op.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	if len(codes) == 0 {
		codes = []string{"200"}
	}

	now := time.Now().UTC()
	cases := make([]models.TestCase, 0, len(codes))

	for _, code := range codes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tc := models.TestCase{
			Name:           fmt.Sprintf("%s %s expects %s", op.Method, op.Path, code),
			ExpectedStatus: statusFromCode(code),
			GeneratedAt:    now,
		}

		for _, param := range op.Parameters {
			val := g.parameterValue(param)
			switch param.In {
			case "path":
				if tc.PathParams == nil {
					tc.PathParams = make(map[string]string)
				}
				tc.PathParams[param.Name] = val
			case "query":
				if !param.Required {
					continue
				}
				if tc.QueryParams == nil {
					tc.QueryParams = make(map[string]string)
				}
				tc.QueryParams[param.Name] = val
			case "header":
				if !param.Required {
					continue
				}
				if tc.Headers == nil {
					tc.Headers = make(map[string]string)
				}
				tc.Headers[param.Name] = val
			}
		}

		if op.RequestBody != nil && hasBody(op.Method) {
			body, err := json.Marshal(g.Value(op.RequestBody))
			if err != nil {
				return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
			}
			tc.Body = string(body)
		}

		if schema := op.Responses[code]; schema != nil {
			assertion, err := JSONSchema(schema)
			if err != nil {
				return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
			}
			tc.ExpectedSchema = assertion
		}

		cases = append(cases, tc)
	}

	return cases, nil
}

func hasBody(method string) bool {
	return method == "POST" || method == "PUT" || method == "PATCH"
}

// statusFromCode maps a response code key to a concrete expected status.
// Ranges ("2xx") expect the first status of the range; "default" expects 200.
func statusFromCode(code string) int {
	if n, err := strconv.Atoi(code); err == nil {
		return n
	}
	if len(code) == 3 && strings.HasSuffix(code, "xx") {
		if n, err := strconv.Atoi(code[:1]); err == nil {
			return n * 100
		}
	}
	return 200
}

func (g *SchemaGenerator) parameterValue(param models.Parameter) string {
	if param.Schema == nil {
		return "test"
	}
	return fmt.Sprintf("%v", g.Value(param.Schema))
}

// Value generates a test value based on a schema.
func (g *SchemaGenerator) Value(schema *models.Schema) interface{} {
	if schema == nil {
		return ""
	}

	switch schema.Type {
	case "string":
		return g.stringValue(schema)
	case "integer", "number":
		return g.numberValue(schema)
	case "boolean":
		return true
	case "array":
		return g.arrayValue(schema)
	case "object":
		return g.objectValue(schema)
	}

	// If no type specified, try to infer from format
	if schema.Format != "" {
		return g.formatValue(schema.Format)
	}

	return ""
}

func (g *SchemaGenerator) stringValue(schema *models.Schema) string {
	if schema.Format != "" {
		if str, ok := g.formatValue(schema.Format).(string); ok {
			return str
		}
	}

	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	// Pattern-constrained strings would need a regex engine, use a plain one
	if schema.Pattern != "" {
		return "test-string"
	}

	minLength := 0
	maxLength := 10
	if schema.MinLength != nil {
		minLength = int(*schema.MinLength)
	}
	if schema.MaxLength != nil {
		maxLength = int(*schema.MaxLength)
	}

	length := minLength
	if maxLength > minLength {
		length = minLength + g.rng.Intn(maxLength-minLength+1)
	}
	if length == 0 {
		length = 5
	}

	return strings.Repeat("a", length)
}

func (g *SchemaGenerator) numberValue(schema *models.Schema) interface{} {
	min, max := 0.0, 100.0
	if schema.Minimum != nil {
		min = *schema.Minimum
	}
	if schema.Maximum != nil {
		max = *schema.Maximum
	}
	if max < min {
		max = min
	}

	value := min + g.rng.Float64()*(max-min)

	if schema.Type == "integer" {
		return int(value)
	}
	return value
}

func (g *SchemaGenerator) arrayValue(schema *models.Schema) []interface{} {
	minItems := 0
	maxItems := 3
	if schema.MinItems != nil {
		minItems = int(*schema.MinItems)
	}
	if schema.MaxItems != nil {
		maxItems = int(*schema.MaxItems)
	}

	count := minItems
	if maxItems > minItems {
		count = minItems + g.rng.Intn(maxItems-minItems+1)
	}
	if count == 0 {
		count = 1
	}

	result := make([]interface{}, count)
	for i := range result {
		if schema.Items != nil {
			result[i] = g.Value(schema.Items)
		} else {
			result[i] = "item"
		}
	}

	return result
}

func (g *SchemaGenerator) objectValue(schema *models.Schema) map[string]interface{} {
	result := make(map[string]interface{})

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	// Required properties always, optional ones randomly
	for name, prop := range schema.Properties {
		if required[name] || g.rng.Float64() > 0.5 {
			result[name] = g.Value(prop)
		}
	}

	return result
}

func (g *SchemaGenerator) formatValue(format string) interface{} {
	switch format {
	case "date":
		return time.Now().Format("2006-01-02")
	case "date-time":
		return time.Now().Format(time.RFC3339)
	case "email":
		return "test@example.com"
	case "uri":
		return "https://example.com"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "int32":
		return g.rng.Int31()
	case "int64":
		return g.rng.Int63()
	case "float":
		return g.rng.Float32()
	case "double":
		return g.rng.Float64()
	default:
		return "test-value"
	}
}

// JSONSchema renders a normalized schema as a JSON Schema document usable as
// a response body assertion.
func JSONSchema(schema *models.Schema) (string, error) {
	doc := jsonSchemaValue(schema)
	if doc == nil {
		return "", nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render schema: %w", err)
	}
	return string(out), nil
}

func jsonSchemaValue(schema *models.Schema) map[string]interface{} {
	if schema == nil {
		return nil
	}

	doc := make(map[string]interface{})
	if schema.Type != "" {
		doc["type"] = schema.Type
	}
	if schema.Format != "" {
		doc["format"] = schema.Format
	}
	if schema.Pattern != "" {
		doc["pattern"] = schema.Pattern
	}
	// Enum values are normalized to strings, so only assert them for string types
	if len(schema.Enum) > 0 && schema.Type == "string" {
		doc["enum"] = schema.Enum
	}
	if len(schema.Required) > 0 {
		doc["required"] = schema.Required
	}
	if schema.Minimum != nil {
		doc["minimum"] = *schema.Minimum
	}
	if schema.Maximum != nil {
		doc["maximum"] = *schema.Maximum
	}
	if len(schema.Properties) > 0 {
		props := make(map[string]interface{}, len(schema.Properties))
		for name, prop := range schema.Properties {
			if sub := jsonSchemaValue(prop); sub != nil {
				props[name] = sub
			}
		}
		doc["properties"] = props
	}
	if schema.Items != nil {
		if sub := jsonSchemaValue(schema.Items); sub != nil {
			doc["items"] = sub
		}
	}
	if len(doc) == 0 {
		return nil
	}
	return doc
}
