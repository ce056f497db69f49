package llm

import (
	"context"
	"encoding/json"
)

// ModelTier selects the size class of model a call runs on. Reflections
// are short and latency-sensitive (small tier); completion artifacts are
// long-form (large tier).
type ModelTier string

const (
	TierSmall ModelTier = "small"
	TierLarge ModelTier = "large"
)

type GenerationParams struct {
	// Tier selects the model size class. Defaults to TierSmall when empty.
	Tier ModelTier `json:"tier"`

	// System overrides the backend's default system prompt when non-empty.
	System string `json:"system"`

	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Schema describes the structured result shape for GenerateStructured.
// Definition is a JSON Schema document passed through to backends that
// support constrained decoding.
type Schema struct {
	Name        string
	Description string
	Definition  json.RawMessage
}

// LLMClient defines the standard interface for any LLM backend.
//
// Each call yields at most one result or one failure; the interface makes
// no ordering or delivery guarantees across calls and does not support
// cancellation of work already submitted to a backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// GenerateStructured returns raw JSON conforming to schema. Callers
	// unmarshal into their own result types.
	GenerateStructured(ctx context.Context, schema Schema, prompt string, params GenerationParams) (json.RawMessage, error)
}
