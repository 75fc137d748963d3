// Package fingerprint computes stable content hashes for operations. Two
// structurally equal operations hash identically regardless of source key
// ordering or formatting; any semantic difference changes the hash.
package fingerprint

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/gohugoio/hashstructure"

	"specdrift/internal/models"
)

// canonical forms: slices in a defined order so the hash does not depend on
// source ordering. Maps are never hashed directly.

type canonicalOperation struct {
	Path        string
	Method      string
	Parameters  []canonicalParameter
	RequestBody *canonicalSchema
	Responses   []canonicalResponse
}

type canonicalParameter struct {
	Name     string
	In       string
	Required bool
	Schema   *canonicalSchema
}

type canonicalResponse struct {
	Code   string
	Schema *canonicalSchema
}

type canonicalSchema struct {
	Type       string
	Format     string
	Pattern    string
	Enum       []string
	Minimum    *float64
	Maximum    *float64
	MinLength  *int64
	MaxLength  *int64
	MinItems   *int64
	MaxItems   *int64
	Required   []string
	Properties []canonicalProperty
	Items      *canonicalSchema
}

type canonicalProperty struct {
	Name   string
	Schema *canonicalSchema
}

// Of computes the fingerprint of a single operation.
func Of(op models.Operation) (models.Fingerprint, error) {
	hash, err := hashstructure.Hash(canonicalize(op), nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash operation %s %s: %w", op.Method, op.Path, err)
	}
	return models.Fingerprint(strconv.FormatUint(hash, 16)), nil
}

// All computes fingerprints for a set of operations, keyed by identity.
func All(ops []models.Operation) (map[models.OperationKey]models.Fingerprint, error) {
	out := make(map[models.OperationKey]models.Fingerprint, len(ops))
	for _, op := range ops {
		fp, err := Of(op)
		if err != nil {
			return nil, err
		}
		out[op.Key()] = fp
	}
	return out, nil
}

func canonicalize(op models.Operation) canonicalOperation {
	c := canonicalOperation{
		Path:        op.Path,
		Method:      op.Method,
		RequestBody: canonicalizeSchema(op.RequestBody),
	}

	for _, p := range op.Parameters {
		c.Parameters = append(c.Parameters, canonicalParameter{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required,
			Schema:   canonicalizeSchema(p.Schema),
		})
	}
	// parameters sorted by (location, name)
	sort.Slice(c.Parameters, func(i, j int) bool {
		if c.Parameters[i].In != c.Parameters[j].In {
			return c.Parameters[i].In < c.Parameters[j].In
		}
		return c.Parameters[i].Name < c.Parameters[j].Name
	})

	for code, schema := range op.Responses {
		c.Responses = append(c.Responses, canonicalResponse{Code: code, Schema: canonicalizeSchema(schema)})
	}
	sort.Slice(c.Responses, func(i, j int) bool {
		return lessStatusCode(c.Responses[i].Code, c.Responses[j].Code)
	})

	return c
}

// lessStatusCode orders numeric status codes numerically; non-numeric codes
// ("default", "2xx") sort after them, alphabetically.
func lessStatusCode(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func canonicalizeSchema(s *models.Schema) *canonicalSchema {
	if s == nil {
		return nil
	}

	c := &canonicalSchema{
		Type:      s.Type,
		Format:    s.Format,
		Pattern:   s.Pattern,
		Enum:      s.Enum,
		Minimum:   s.Minimum,
		Maximum:   s.Maximum,
		MinLength: s.MinLength,
		MaxLength: s.MaxLength,
		MinItems:  s.MinItems,
		MaxItems:  s.MaxItems,
		Items:     canonicalizeSchema(s.Items),
	}

	if len(s.Required) > 0 {
		c.Required = append(c.Required, s.Required...)
		sort.Strings(c.Required)
	}

	for name, prop := range s.Properties {
		c.Properties = append(c.Properties, canonicalProperty{Name: name, Schema: canonicalizeSchema(prop)})
	}
	sort.Slice(c.Properties, func(i, j int) bool {
		return c.Properties[i].Name < c.Properties[j].Name
	})

	return c
}
