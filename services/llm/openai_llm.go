package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client     *openai.Client
	smallModel string
	largeModel string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	smallModel := os.Getenv("OPENAI_MODEL_SMALL")
	if smallModel == "" {
		smallModel = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL_SMALL not set, defaulting to gpt-4o-mini")
	}
	largeModel := os.Getenv("OPENAI_MODEL_LARGE")
	if largeModel == "" {
		largeModel = "gpt-4o"
		slog.Warn("OPENAI_MODEL_LARGE not set, defaulting to gpt-4o")
	}
	slog.Info("Initializing OpenAI client", "small_model", smallModel, "large_model", largeModel)
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		smallModel: smallModel,
		largeModel: largeModel,
	}, nil
}

func (o *OpenAIClient) modelFor(tier ModelTier) string {
	if tier == TierLarge {
		return o.largeModel
	}
	return o.smallModel
}

// Generate implements the LLMClient interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	model := o.modelFor(params.Tier)
	slog.Debug("Generating text via OpenAI", "model", model, "tier", params.Tier)

	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(model, prompt, params))
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured implements the LLMClient interface using the JSON
// schema response format.
func (o *OpenAIClient) GenerateStructured(ctx context.Context, schema Schema, prompt string, params GenerationParams) (json.RawMessage, error) {
	model := o.modelFor(params.Tier)
	slog.Debug("Generating structured output via OpenAI", "model", model, "schema", schema.Name)

	req := o.buildRequest(model, prompt, params)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        schema.Name,
			Description: schema.Description,
			Schema:      schema.Definition,
			Strict:      true,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI structured API call failed", "error", err, "schema", schema.Name)
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("OpenAI returned invalid JSON for schema %q", schema.Name)
	}
	return json.RawMessage(content), nil
}

func (o *OpenAIClient) buildRequest(model, prompt string, params GenerationParams) openai.ChatCompletionRequest {
	system := params.System
	if system == "" {
		system = "You are a helpful assistant."
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}
