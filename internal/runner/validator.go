package runner

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"specdrift/internal/models"
)

// Validate checks an HTTP response against a test case's expectations: the
// status code must match, and for JSON responses the body must satisfy the
// case's schema assertion.
func Validate(resp *http.Response, tc models.TestCase) ([]models.ValidationError, error) {
	var errors []models.ValidationError

	if resp == nil {
		return []models.ValidationError{{Field: "response", Message: "response is nil"}}, nil
	}

	if resp.StatusCode != tc.ExpectedStatus {
		errors = append(errors, models.ValidationError{
			Field:   "status_code",
			Message: fmt.Sprintf("expected status %d, got %d", tc.ExpectedStatus, resp.StatusCode),
		})
		return errors, nil
	}

	if tc.ExpectedSchema == "" {
		return errors, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "json") {
		errors = append(errors, models.ValidationError{
			Field:   "content_type",
			Message: fmt.Sprintf("expected JSON response, got content type %q", contentType),
		})
		return errors, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(tc.ExpectedSchema)
	bodyLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, bodyLoader)
	if err != nil {
		errors = append(errors, models.ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("failed to validate response body: %v", err),
		})
		return errors, nil
	}

	for _, resultErr := range result.Errors() {
		errors = append(errors, models.ValidationError{
			Field:   "body." + resultErr.Field(),
			Message: resultErr.Description(),
		})
	}

	return errors, nil
}
