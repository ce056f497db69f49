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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("stillpoint.llm.ollama")

type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	smallModel string
	largeModel string
}

// Ollama API request structure. Format carries a JSON schema for
// structured outputs, or is omitted for plain generation.
type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Format  json.RawMessage        `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
		slog.Warn("OLLAMA_BASE_URL not set, defaulting to http://localhost:11434")
	}
	smallModel := os.Getenv("OLLAMA_MODEL_SMALL")
	if smallModel == "" {
		smallModel = "llama3.2:3b"
		slog.Warn("OLLAMA_MODEL_SMALL not set, defaulting to llama3.2:3b")
	}
	largeModel := os.Getenv("OLLAMA_MODEL_LARGE")
	if largeModel == "" {
		largeModel = "llama3.1:70b"
		slog.Warn("OLLAMA_MODEL_LARGE not set, defaulting to llama3.1:70b")
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL,
		"small_model", smallModel, "large_model", largeModel)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 300 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		smallModel: smallModel,
		largeModel: largeModel,
	}, nil
}

func (o *OllamaClient) modelFor(tier ModelTier) string {
	if tier == TierLarge {
		return o.largeModel
	}
	return o.smallModel
}

// Generate implements the LLMClient interface.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return o.generate(ctx, prompt, params, nil)
}

// GenerateStructured implements the LLMClient interface. Ollama applies
// the schema as a decoding constraint via the format field.
func (o *OllamaClient) GenerateStructured(ctx context.Context, schema Schema, prompt string, params GenerationParams) (json.RawMessage, error) {
	out, err := o.generate(ctx, prompt, params, schema.Definition)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("ollama returned invalid JSON for schema %q", schema.Name)
	}
	return json.RawMessage(out), nil
}

func (o *OllamaClient) generate(ctx context.Context, prompt string, params GenerationParams, format json.RawMessage) (string, error) {
	model := o.modelFor(params.Tier)
	ctx, span := tracer.Start(ctx, "OllamaClient.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("ollama.model", model),
		attribute.Bool("ollama.structured", format != nil))

	reqBody := ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		System:  params.System,
		Stream:  false,
		Format:  format,
		Options: map[string]interface{}{},
	}
	if params.Temperature != nil {
		reqBody.Options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		reqBody.Options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		reqBody.Options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		reqBody.Options["stop"] = params.Stop
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ollama API call failed", "error", err, "model", model)
		return "", fmt.Errorf("ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse ollama response: %w", err)
	}
	slog.Debug("Received response from Ollama", "model", genResp.Model, "done", genResp.Done)
	return genResp.Response, nil
}
