// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/datatypes"
	"github.com/stillpoint/intake/services/intake/observability"
	"github.com/stillpoint/intake/services/llm"
)

var stepTracer = otel.Tracer("stillpoint.intake.flow")

// Processor runs one intake step: validate, reflect, then either advance
// or complete. It is stateless between invocations; all session state
// lives with the caller.
type Processor struct {
	catalog   *catalog.Catalog
	client    llm.LLMClient
	completer *CompletionGenerator
	metrics   *observability.Metrics
}

func NewProcessor(cat *catalog.Catalog, client llm.LLMClient, completer *CompletionGenerator, metrics *observability.Metrics) *Processor {
	return &Processor{
		catalog:   cat,
		client:    client,
		completer: completer,
		metrics:   metrics,
	}
}

// Process handles one step request.
//
// Validation failures (unknown intake, out-of-range step) abort the call
// entirely: no generative call is made and nothing is produced. A
// reflection generation failure also aborts; the caller keeps its cursor
// where it is and surfaces a per-question error. On the final step the
// authoritative completion call runs synchronously before returning.
//
// One deliberate exception to the usual (nil, err) shape: when the
// reflection resolved but the final completion call failed, Process
// returns a non-nil response carrying that reflection together with an
// error wrapping ErrGenerationFailure, so the caller can merge the
// reflection and retry completion alone.
func (p *Processor) Process(ctx context.Context, req *datatypes.StepRequest) (*datatypes.StepResponse, error) {
	ctx, span := stepTracer.Start(ctx, "Processor.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("intake.type", req.IntakeType),
		attribute.Int("intake.step", req.StepIndex))

	def, err := p.catalog.Get(req.IntakeType)
	if err != nil {
		p.metrics.StepRequestsTotal.WithLabelValues(req.IntakeType, "unknown_intake").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	question, err := p.catalog.QuestionAt(req.IntakeType, req.StepIndex)
	if err != nil {
		p.metrics.StepRequestsTotal.WithLabelValues(req.IntakeType, "invalid_step").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reflection, directive, err := p.reflect(ctx, question, req.CurrentAnswer, req.PriorAnswers)
	if err != nil {
		p.metrics.StepRequestsTotal.WithLabelValues(req.IntakeType, "generation_failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	p.metrics.ReflectionStrategyTotal.WithLabelValues(req.IntakeType, directive.String()).Inc()

	totalSteps := def.TotalSteps()
	isComplete := req.StepIndex >= totalSteps-1
	resp := &datatypes.StepResponse{
		Reflection: reflection,
		IsComplete: isComplete,
		Metadata: datatypes.StepMetadata{
			CurrentStep: req.StepIndex,
			TotalSteps:  totalSteps,
			IntakeType:  req.IntakeType,
		},
	}

	if !isComplete {
		next := datatypes.PublicQuestionView(def.Questions[req.StepIndex+1])
		resp.NextQuestion = &next
		p.metrics.StepRequestsTotal.WithLabelValues(req.IntakeType, "ok").Inc()
		return resp, nil
	}

	thisAnswer := datatypes.Answer{
		QuestionID:     question.ID,
		QuestionPrompt: question.Prompt,
		Value:          req.CurrentAnswer,
		Reflection:     reflection,
	}
	allAnswers := append(append([]datatypes.Answer{}, req.PriorAnswers...), thisAnswer)
	outputs, err := p.completer.Generate(ctx, def, allAnswers)
	if err != nil {
		p.metrics.StepRequestsTotal.WithLabelValues(req.IntakeType, "generation_failure").Inc()
		span.RecordError(err)
		// The reflection already resolved; hand it back alongside the
		// error so the caller can merge it and retry completion alone.
		resp.CompletionOutputs = nil
		return resp, fmt.Errorf("authoritative completion: %w", err)
	}
	resp.CompletionOutputs = outputs
	p.metrics.StepRequestsTotal.WithLabelValues(req.IntakeType, "ok").Inc()
	return resp, nil
}

// reflect resolves the reflection per the selected directive. Skip and
// Template never fail; Generate makes exactly one small-tier call and
// propagates its failure without retrying.
func (p *Processor) reflect(ctx context.Context, q *datatypes.QuestionDefinition, value datatypes.AnswerValue, trail []datatypes.Answer) (datatypes.Reflection, Directive, error) {
	directive, ack := SelectStrategy(q, value)
	if directive != DirectiveGenerate {
		slog.Debug("Reflection resolved without generation",
			"question_id", q.ID, "strategy", directive.String())
		return datatypes.ResolvedReflection(ack), directive, nil
	}

	prompt := buildReflectionPrompt(q, value, trail)

	p.metrics.GenerationInFlight.Inc()
	start := time.Now()
	text, err := p.client.Generate(ctx, prompt, llm.GenerationParams{
		Tier:   llm.TierSmall,
		System: reflectionSystem,
	})
	p.metrics.GenerationInFlight.Dec()
	p.metrics.GenerationDurationSeconds.WithLabelValues(string(llm.TierSmall)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.GenerationCallsTotal.WithLabelValues(string(llm.TierSmall), "error").Inc()
		slog.Error("Reflection generation failed", "question_id", q.ID, "error", err)
		return datatypes.Reflection{}, directive, fmt.Errorf("%w: %v", datatypes.ErrGenerationFailure, err)
	}
	p.metrics.GenerationCallsTotal.WithLabelValues(string(llm.TierSmall), "success").Inc()
	return datatypes.ResolvedReflection(strings.TrimSpace(text)), directive, nil
}

// IsCallerError reports whether err is a request defect rather than a
// system fault.
func IsCallerError(err error) bool {
	return errors.Is(err, datatypes.ErrUnknownIntake) || errors.Is(err, datatypes.ErrInvalidStep)
}
