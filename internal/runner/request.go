package runner

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"specdrift/internal/models"
)

// BuildRequest builds an HTTP request from a persisted test case.
func BuildRequest(ctx context.Context, entry models.SuiteEntry, tc models.TestCase, baseURL string) (*http.Request, error) {
	// Substitute path parameters
	fullPath := entry.Path
	for name, val := range tc.PathParams {
		fullPath = strings.ReplaceAll(fullPath, "{"+name+"}", url.PathEscape(val))
	}
	if strings.Contains(fullPath, "{") {
		return nil, fmt.Errorf("unresolved path parameter in %s", fullPath)
	}

	fullURL := strings.TrimSuffix(baseURL, "/") + fullPath

	if len(tc.QueryParams) > 0 {
		queryParams := url.Values{}
		for name, val := range tc.QueryParams {
			queryParams.Add(name, val)
		}
		fullURL += "?" + queryParams.Encode()
	}

	var req *http.Request
	var err error

	if tc.Body != "" {
		req, err = http.NewRequestWithContext(ctx, entry.Method, fullURL, strings.NewReader(tc.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, entry.Method, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
	}

	// Set default headers
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "specdrift/1.0")

	for name, val := range tc.Headers {
		req.Header.Set(name, val)
	}

	return req, nil
}
