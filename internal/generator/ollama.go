package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"specdrift/internal/models"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`
}

// OllamaConfig holds settings for the LLM-backed generator.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	APIKey    string
	RateLimit float64 // max generator calls per second (0 = unlimited)
	Timeout   time.Duration
}

// DefaultOllamaConfig returns default LLM generator settings.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2",
		Timeout: 60 * time.Second,
	}
}

// OllamaGenerator produces test cases by prompting a local Ollama model. Its
// answers are non-deterministic; the engine treats its failures per-operation.
type OllamaGenerator struct {
	config     OllamaConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	fallback   *SchemaGenerator
}

// NewOllamaGenerator creates an LLM-backed generator.
func NewOllamaGenerator(config OllamaConfig) *OllamaGenerator {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return &OllamaGenerator{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		fallback:   NewSchemaGenerator(),
	}
}

// CheckConnection verifies that Ollama is running and accessible.
func (g *OllamaGenerator) CheckConnection(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", g.config.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Generate prompts the model for test cases covering every declared response
// code. Cases the model missed are filled in from the schema generator so the
// one-case-per-response-code contract always holds.
func (g *OllamaGenerator) Generate(ctx context.Context, op models.Operation) ([]models.TestCase, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
		}
	}

	prompt, err := buildPrompt(op)
	if err != nil {
		return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
	}

	answer, err := g.chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
	}

	cases, err := parseCases(answer)
	if err != nil {
		return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
	}

	return g.fillMissing(ctx, op, cases)
}

const systemPrompt = `You generate API test cases from OpenAPI operations.
Answer with a JSON array only, no prose. Each element must have the fields:
name, path_params (object), query_params (object), headers (object),
body (JSON string or empty), expected_status (number).`

func buildPrompt(op models.Operation) (string, error) {
	opJSON, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Generate one test case per declared response code for this operation:\n")
	b.Write(opJSON)
	return b.String(), nil
}

func (g *OllamaGenerator) chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    g.config.Model,
		Messages: messages,
		Stream:   false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", g.config.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.APIKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.config.APIKey))
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama (url: %s, model: %s) returned status %d: %s", url, g.config.Model, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return chatResp.Message.Content, nil
}

// parseCases extracts the JSON array from the model answer, tolerating
// surrounding prose and markdown fences.
func parseCases(answer string) ([]models.TestCase, error) {
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model answer")
	}

	var cases []models.TestCase
	if err := json.Unmarshal([]byte(answer[start:end+1]), &cases); err != nil {
		return nil, fmt.Errorf("failed to parse model answer: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("model answer contained no test cases")
	}

	now := time.Now().UTC()
	for i := range cases {
		cases[i].GeneratedAt = now
		cases[i].Preserved = false
	}
	return cases, nil
}

// fillMissing tops up the model's answer with schema-generated cases for any
// response code it skipped, and attaches schema assertions.
func (g *OllamaGenerator) fillMissing(ctx context.Context, op models.Operation, cases []models.TestCase) ([]models.TestCase, error) {
	covered := make(map[int]bool, len(cases))
	for i := range cases {
		covered[cases[i].ExpectedStatus] = true
		if schema, ok := op.Responses[fmt.Sprintf("%d", cases[i].ExpectedStatus)]; ok && schema != nil {
			assertion, err := JSONSchema(schema)
			if err != nil {
				return nil, &GenerationError{Method: op.Method, Path: op.Path, Err: err}
			}
			cases[i].ExpectedSchema = assertion
		}
	}

	generated, err := g.fallback.Generate(ctx, op)
	if err != nil {
		return nil, err
	}
	for _, tc := range generated {
		if !covered[tc.ExpectedStatus] {
			cases = append(cases, tc)
		}
	}

	return cases, nil
}
