package parser

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	orderedmap "github.com/pb33f/libopenapi/orderedmap"

	"specdrift/internal/models"
)

// ErrMissingPaths is returned when a spec document has no paths defined.
var ErrMissingPaths = errors.New("spec has no paths defined")

// DuplicateOperationError is returned when two operations collide on the same
// (method, path template) identity.
type DuplicateOperationError struct {
	Method string
	Path   string
	Other  string // the previously seen colliding path
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("duplicate operation %s %s (collides with %s %s)", e.Method, e.Path, e.Method, e.Other)
}

// Schemas deeper than this are truncated to keep recursive $ref cycles from
// looping forever.
const maxSchemaDepth = 12

var pathTemplateRe = regexp.MustCompile(`\{[^}]*\}`)

// Parser handles parsing OpenAPI specification files.
type Parser struct {
	document libopenapi.Document
}

// ParseFile parses an OpenAPI specification file and returns a Parser instance.
func ParseFile(filePath string) (*Parser, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return Parse(specBytes)
}

// Parse parses an OpenAPI specification from raw YAML or JSON bytes.
func Parse(specBytes []byte) (*Parser, error) {
	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	return &Parser{document: document}, nil
}

// ServerURLs returns the server URLs from the OpenAPI spec.
func (p *Parser) ServerURLs() ([]string, error) {
	model, errs := p.document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	servers := model.Model.Servers
	if len(servers) == 0 {
		return []string{"http://localhost"}, nil
	}

	urls := make([]string, 0, len(servers))
	for _, server := range servers {
		if server != nil && server.URL != "" {
			urls = append(urls, server.URL)
		}
	}

	return urls, nil
}

// Operations extracts all operations from the OpenAPI spec as normalized
// models, ordered by (path, method). Two operations whose path templates
// differ only in parameter names are rejected as duplicates.
func (p *Parser) Operations() ([]models.Operation, error) {
	model, errs := p.document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	paths := model.Model.Paths
	if paths == nil || paths.PathItems == nil || paths.PathItems.Len() == 0 {
		return nil, ErrMissingPaths
	}

	var operations []models.Operation
	seen := make(map[string]string) // method + normalized template -> original path

	// Iterate over ordered map
	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		pathItem := pair.Key()
		pathItemValue := pair.Value()
		if pathItemValue == nil {
			continue
		}

		for _, entry := range methodOperations(pathItemValue) {
			if entry.op == nil {
				continue
			}

			template := entry.method + " " + pathTemplateRe.ReplaceAllString(pathItem, "{}")
			if other, ok := seen[template]; ok {
				return nil, &DuplicateOperationError{Method: entry.method, Path: pathItem, Other: other}
			}
			seen[template] = pathItem

			operations = append(operations, normalizeOperation(pathItem, entry.method, entry.op))
		}
	}

	sort.Slice(operations, func(i, j int) bool {
		if operations[i].Path != operations[j].Path {
			return operations[i].Path < operations[j].Path
		}
		return operations[i].Method < operations[j].Method
	})

	return operations, nil
}

type methodOp struct {
	method string
	op     *v3.Operation
}

func methodOperations(item *v3.PathItem) []methodOp {
	return []methodOp{
		{"GET", item.Get},
		{"POST", item.Post},
		{"PUT", item.Put},
		{"PATCH", item.Patch},
		{"DELETE", item.Delete},
		{"HEAD", item.Head},
		{"OPTIONS", item.Options},
	}
}

func normalizeOperation(path, method string, op *v3.Operation) models.Operation {
	out := models.Operation{
		Path:        path,
		Method:      method,
		OperationID: op.OperationId,
		Responses:   make(map[string]*models.Schema),
	}
	if op.Tags != nil {
		out.Tags = append(out.Tags, op.Tags...)
	}

	for _, param := range op.Parameters {
		if param == nil {
			continue
		}
		p := models.Parameter{
			Name:     param.Name,
			In:       param.In,
			Required: param.Required != nil && *param.Required,
		}
		if param.Schema != nil {
			p.Schema = normalizeSchema(param.Schema.Schema(), 0)
		}
		out.Parameters = append(out.Parameters, p)
	}

	if op.RequestBody != nil {
		out.RequestBody = normalizeSchema(jsonContentSchema(op.RequestBody.Content), 0)
	}

	if op.Responses != nil {
		if op.Responses.Codes != nil {
			for pair := op.Responses.Codes.First(); pair != nil; pair = pair.Next() {
				out.Responses[pair.Key()] = responseSchema(pair.Value())
			}
		}
		if op.Responses.Default != nil {
			out.Responses["default"] = responseSchema(op.Responses.Default)
		}
	}

	return out
}

func responseSchema(resp *v3.Response) *models.Schema {
	if resp == nil {
		return nil
	}
	return normalizeSchema(jsonContentSchema(resp.Content), 0)
}

// jsonContentSchema picks the schema of the JSON media type, falling back to
// the first media type defined.
func jsonContentSchema(content *orderedmap.Map[string, *v3.MediaType]) *base.Schema {
	if content == nil || content.Len() == 0 {
		return nil
	}
	var first *base.Schema
	for pair := content.First(); pair != nil; pair = pair.Next() {
		mediaType := pair.Value()
		if mediaType == nil || mediaType.Schema == nil {
			continue
		}
		schema := mediaType.Schema.Schema()
		if first == nil {
			first = schema
		}
		if strings.Contains(pair.Key(), "json") {
			return schema
		}
	}
	return first
}

func normalizeSchema(schema *base.Schema, depth int) *models.Schema {
	if schema == nil || depth > maxSchemaDepth {
		return nil
	}

	out := &models.Schema{
		Format:  schema.Format,
		Pattern: schema.Pattern,
	}
	if len(schema.Type) > 0 {
		out.Type = schema.Type[0]
	}
	for _, enumNode := range schema.Enum {
		if enumNode != nil {
			out.Enum = append(out.Enum, enumNode.Value)
		}
	}
	out.Minimum = schema.Minimum
	out.Maximum = schema.Maximum
	out.MinLength = schema.MinLength
	out.MaxLength = schema.MaxLength
	out.MinItems = schema.MinItems
	out.MaxItems = schema.MaxItems
	if schema.Required != nil {
		out.Required = append(out.Required, schema.Required...)
	}

	if schema.Properties != nil && schema.Properties.Len() > 0 {
		out.Properties = make(map[string]*models.Schema, schema.Properties.Len())
		for pair := schema.Properties.First(); pair != nil; pair = pair.Next() {
			if pair.Value() == nil {
				continue
			}
			out.Properties[pair.Key()] = normalizeSchema(pair.Value().Schema(), depth+1)
		}
	}

	if schema.Items != nil && schema.Items.IsA() && schema.Items.A != nil {
		out.Items = normalizeSchema(schema.Items.A.Schema(), depth+1)
	}

	return out
}
