package parser

import (
	"errors"
	"testing"

	"specdrift/internal/models"
)

func TestParseFile(t *testing.T) {
	p, err := ParseFile("../../tests/pet-store.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	if p == nil {
		t.Fatal("Parser is nil")
	}
}

func TestParseFileNotFound(t *testing.T) {
	_, err := ParseFile("../../tests/does-not-exist.json")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("{{{not a spec"))
	if err == nil {
		t.Fatal("Expected error for malformed document")
	}
}

func TestServerURLs(t *testing.T) {
	p, err := ParseFile("../../tests/pet-store.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	urls, err := p.ServerURLs()
	if err != nil {
		t.Fatalf("Failed to get server URLs: %v", err)
	}

	if len(urls) != 1 || urls[0] != "http://petstore.swagger.io/v1" {
		t.Errorf("Unexpected server URLs: %v", urls)
	}
}

func TestServerURLsDefault(t *testing.T) {
	p, err := Parse([]byte(`
openapi: 3.0.0
info:
  title: t
  version: "1.0"
paths:
  /ping:
    get:
      responses:
        "200":
          description: ok
`))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	urls, err := p.ServerURLs()
	if err != nil {
		t.Fatalf("Failed to get server URLs: %v", err)
	}
	if len(urls) != 1 || urls[0] != "http://localhost" {
		t.Errorf("Expected default server URL, got %v", urls)
	}
}

func TestOperations(t *testing.T) {
	p, err := ParseFile("../../tests/pet-store.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	operations, err := p.Operations()
	if err != nil {
		t.Fatalf("Failed to get operations: %v", err)
	}

	if len(operations) != 9 {
		t.Fatalf("Expected 9 operations, got %d", len(operations))
	}

	// Sorted by (path, method)
	first := operations[0]
	if first.Path != "/pets" || first.Method != "GET" {
		t.Errorf("Expected GET /pets first, got %s %s", first.Method, first.Path)
	}

	byKey := make(map[models.OperationKey]models.Operation)
	for _, op := range operations {
		byKey[op.Key()] = op
	}

	createPet, ok := byKey[models.Key("POST", "/pets")]
	if !ok {
		t.Fatal("POST /pets not found")
	}
	if createPet.OperationID != "createPet" {
		t.Errorf("Expected operation id createPet, got %q", createPet.OperationID)
	}
	if createPet.RequestBody == nil {
		t.Fatal("Expected request body schema on POST /pets")
	}
	if createPet.RequestBody.Type != "object" {
		t.Errorf("Expected object request body, got %q", createPet.RequestBody.Type)
	}
	if _, ok := createPet.RequestBody.Properties["name"]; !ok {
		t.Error("Expected name property on request body")
	}
	if len(createPet.Responses) != 2 {
		t.Errorf("Expected 2 responses on POST /pets, got %d", len(createPet.Responses))
	}

	getPet, ok := byKey[models.Key("GET", "/pets/{petId}")]
	if !ok {
		t.Fatal("GET /pets/{petId} not found")
	}
	if len(getPet.Parameters) != 1 {
		t.Fatalf("Expected 1 parameter on GET /pets/{petId}, got %d", len(getPet.Parameters))
	}
	param := getPet.Parameters[0]
	if param.Name != "petId" || param.In != "path" || !param.Required {
		t.Errorf("Unexpected parameter: %+v", param)
	}
	if param.Schema == nil || param.Schema.Type != "integer" {
		t.Errorf("Expected integer path parameter schema, got %+v", param.Schema)
	}
}

func TestOperationsMissingPaths(t *testing.T) {
	p, err := Parse([]byte(`
openapi: 3.0.0
info:
  title: t
  version: "1.0"
`))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	_, err = p.Operations()
	if !errors.Is(err, ErrMissingPaths) {
		t.Errorf("Expected ErrMissingPaths, got %v", err)
	}
}

func TestOperationsDuplicateTemplate(t *testing.T) {
	p, err := Parse([]byte(`
openapi: 3.0.0
info:
  title: t
  version: "1.0"
paths:
  /pets/{id}:
    get:
      responses:
        "200":
          description: ok
  /pets/{petId}:
    get:
      responses:
        "200":
          description: ok
`))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	_, err = p.Operations()
	var dup *DuplicateOperationError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateOperationError, got %v", err)
	}
	if dup.Method != "GET" {
		t.Errorf("Unexpected duplicate method: %s", dup.Method)
	}
}

func TestOperationsResolvesRefs(t *testing.T) {
	p, err := ParseFile("../../tests/pet-store.json")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}

	operations, err := p.Operations()
	if err != nil {
		t.Fatalf("Failed to get operations: %v", err)
	}

	for _, op := range operations {
		if op.Key() != models.Key("GET", "/pets") {
			continue
		}
		schema := op.Responses["200"]
		if schema == nil || schema.Type != "array" {
			t.Fatalf("Expected array response schema, got %+v", schema)
		}
		if schema.Items == nil || schema.Items.Type != "object" {
			t.Fatalf("Expected resolved $ref items schema, got %+v", schema.Items)
		}
		return
	}
	t.Fatal("GET /pets not found")
}
