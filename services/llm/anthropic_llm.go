package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	smallModel string
	largeModel string
}

func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/anthropic_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Anthropic API Key from container secrets")
		} else {
			slog.Error("ANTHROPIC_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	}
	smallModel := os.Getenv("ANTHROPIC_MODEL_SMALL")
	if smallModel == "" {
		smallModel = "claude-3-5-haiku-latest"
		slog.Warn("ANTHROPIC_MODEL_SMALL not set, defaulting to claude-3-5-haiku-latest")
	}
	largeModel := os.Getenv("ANTHROPIC_MODEL_LARGE")
	if largeModel == "" {
		largeModel = "claude-3-5-sonnet-latest"
		slog.Warn("ANTHROPIC_MODEL_LARGE not set, defaulting to claude-3-5-sonnet-latest")
	}
	slog.Info("Initializing Anthropic client", "small_model", smallModel, "large_model", largeModel)
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 300 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		smallModel: smallModel,
		largeModel: largeModel,
	}, nil
}

func (a *AnthropicClient) modelFor(tier ModelTier) string {
	if tier == TierLarge {
		return a.largeModel
	}
	return a.smallModel
}

// Generate implements the LLMClient interface.
func (a *AnthropicClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return a.call(ctx, prompt, params, params.System)
}

// GenerateStructured implements the LLMClient interface. The messages API
// has no schema-constrained decoding, so the schema is embedded in the
// system prompt and the reply is validated as JSON.
func (a *AnthropicClient) GenerateStructured(ctx context.Context, schema Schema, prompt string, params GenerationParams) (json.RawMessage, error) {
	system := params.System
	if system != "" {
		system += "\n\n"
	}
	system += fmt.Sprintf(
		"Respond with a single JSON object conforming to this JSON schema, with no surrounding prose or code fences:\n%s",
		string(schema.Definition))

	out, err := a.call(ctx, prompt, params, system)
	if err != nil {
		return nil, err
	}
	out = stripCodeFences(out)
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("anthropic returned invalid JSON for schema %q", schema.Name)
	}
	return json.RawMessage(out), nil
}

func (a *AnthropicClient) call(ctx context.Context, prompt string, params GenerationParams, system string) (string, error) {
	model := a.modelFor(params.Tier)
	slog.Debug("Generating text via Anthropic", "model", model, "tier", params.Tier)

	maxTokens := 2048
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}
	reqBody := anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		StopSeqs:    params.Stop,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("Anthropic API call failed", "error", err, "model", model)
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read anthropic response: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse anthropic response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, string(body))
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content blocks")
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// stripCodeFences removes a markdown fence wrapper when a model ignores
// the no-fences instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
