// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stillpoint/intake/services/intake/datatypes"
	"github.com/stillpoint/intake/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/stillpoint/intake/services/intake/observability"
)

var completionTracer = otel.Tracer("stillpoint.intake.flow")

// completionSchemaJSON is the structured-result contract for the
// completion call. additionalProperties is closed so a drifting model
// reply fails loudly instead of silently dropping fields.
const completionSchemaJSON = `{
  "type": "object",
  "properties": {
    "personalized_brief": {"type": "string"},
    "first_session_guide": {"type": "string"},
    "experiments": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 3,
      "maxItems": 5
    }
  },
  "required": ["personalized_brief", "first_session_guide", "experiments"],
  "additionalProperties": false
}`

// CompletionGenerator turns a full answer set into the three end-of-intake
// artifacts with one large-tier structured call.
//
// Generate holds no mutable state: concurrent invocations with the same
// answers are safe (the retry path relies on this), though their outputs
// may differ textually. Single attempt per call; retry policy belongs to
// the caller.
type CompletionGenerator struct {
	client  llm.LLMClient
	metrics *observability.Metrics
}

func NewCompletionGenerator(client llm.LLMClient, metrics *observability.Metrics) *CompletionGenerator {
	return &CompletionGenerator{client: client, metrics: metrics}
}

// Generate builds the completion prompt over every answer and invokes the
// generation capability once at the large tier.
func (g *CompletionGenerator) Generate(ctx context.Context, def *datatypes.IntakeDefinition, answers []datatypes.Answer) (*datatypes.CompletionOutputs, error) {
	ctx, span := completionTracer.Start(ctx, "CompletionGenerator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("intake.type", def.Type),
		attribute.Int("intake.answers", len(answers)))

	if len(answers) == 0 {
		return nil, fmt.Errorf("no answers to complete from")
	}

	schema := llm.Schema{
		Name:        "intake_completion",
		Description: "End-of-intake artifacts",
		Definition:  json.RawMessage(completionSchemaJSON),
	}
	prompt := buildCompletionPrompt(def, answers)

	g.metrics.GenerationInFlight.Inc()
	start := time.Now()
	raw, err := g.client.GenerateStructured(ctx, schema, prompt, llm.GenerationParams{
		Tier:   llm.TierLarge,
		System: completionSystem,
	})
	g.metrics.GenerationInFlight.Dec()
	g.metrics.GenerationDurationSeconds.WithLabelValues(string(llm.TierLarge)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		g.metrics.GenerationCallsTotal.WithLabelValues(string(llm.TierLarge), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Completion generation failed", "intake_type", def.Type, "error", err)
		return nil, fmt.Errorf("%w: %v", datatypes.ErrGenerationFailure, err)
	}
	g.metrics.GenerationCallsTotal.WithLabelValues(string(llm.TierLarge), "success").Inc()

	var outputs datatypes.CompletionOutputs
	if err := json.Unmarshal(raw, &outputs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: malformed completion payload: %v", datatypes.ErrGenerationFailure, err)
	}
	slog.Info("Completion outputs generated", "intake_type", def.Type,
		"experiments", len(outputs.Experiments))
	return &outputs, nil
}
