// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session holds the per-session state store and the manager that
// owns live sessions.
//
// The store is the piece that keeps the user moving while generation calls
// are in flight. Progression is a single monotonic cursor; every
// asynchronous result is merged by question identity, never by position,
// so a late-arriving reflection can only ever touch the one record it
// belongs to. Completion outputs live in a write-once cell that the
// speculative and authoritative completion tasks race into.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stillpoint/intake/services/intake/datatypes"
	"github.com/stillpoint/intake/services/intake/flow"
	"github.com/stillpoint/intake/services/intake/observability"
)

// Store is the state of one live intake session.
//
// Handlers and background step goroutines touch the store concurrently,
// so all fields behind mu. The mutations themselves stay the safe shapes
// the design calls for: overwrite-by-key and a monotonic counter bump.
type Store struct {
	id  string
	def *datatypes.IntakeDefinition

	processor *flow.Processor
	completer *flow.CompletionGenerator
	metrics   *observability.Metrics

	// stepTimeout bounds each background step call; expiry is treated as
	// a generation failure.
	stepTimeout time.Duration

	mu            sync.Mutex
	answeredCount int
	answers       map[string]*datatypes.Answer
	completion    flow.CompletionCell

	// completionRetryable is set when the authoritative completion call
	// failed and the caller should be offered a retry.
	completionRetryable bool
}

// View is an immutable snapshot of a session for serialization.
type View struct {
	SessionID         string                       `json:"session_id"`
	IntakeType        string                       `json:"intake_type"`
	AnsweredCount     int                          `json:"answered_count"`
	TotalSteps        int                          `json:"total_steps"`
	IsComplete        bool                         `json:"is_complete"`
	CurrentQuestion   *datatypes.PublicQuestion    `json:"current_question,omitempty"`
	Answers           []datatypes.Answer           `json:"answers"`
	CompletionOutputs *datatypes.CompletionOutputs `json:"completion_outputs,omitempty"`
	CompletionSource  string                       `json:"completion_source,omitempty"`
	CompletionRetry   bool                         `json:"completion_retryable"`
}

// Submit records the user's answer to questionID and, when it targets the
// question at the current cursor, advances the cursor and kicks off the
// asynchronous step call. The caller gets control back immediately; the
// reflection arrives later via merge.
//
// The cursor increment here is the only write to answeredCount anywhere,
// and it never decreases.
func (s *Store) Submit(questionID string, value datatypes.AnswerValue) error {
	if err := value.Validate(); err != nil {
		return err
	}
	question := s.questionByID(questionID)
	if question == nil {
		return fmt.Errorf("%w: %q", datatypes.ErrUnknownQuestion, questionID)
	}

	s.mu.Lock()
	if s.answeredCount >= s.def.TotalSteps() {
		s.mu.Unlock()
		return datatypes.ErrIntakeComplete
	}

	s.answers[questionID] = &datatypes.Answer{
		QuestionID:     questionID,
		QuestionPrompt: question.Prompt,
		Value:          value,
		Reflection:     datatypes.PendingReflection(),
	}

	wasCursor := s.answeredCount < s.def.TotalSteps() &&
		s.def.Questions[s.answeredCount].ID == questionID
	stepIndex := s.answeredCount
	var trail []datatypes.Answer
	if wasCursor {
		s.answeredCount++
		trail = s.answersInOrderLocked(stepIndex)
	}
	s.mu.Unlock()

	if !wasCursor {
		slog.Info("Answer overwrite off-cursor", "session_id", s.id, "question_id", questionID)
		return nil
	}

	go s.processStep(stepIndex, questionID, value, trail)

	if stepIndex == s.def.EarlyCompletionIndex() {
		early := append(trail, datatypes.Answer{
			QuestionID:     questionID,
			QuestionPrompt: question.Prompt,
			Value:          value,
			Reflection:     datatypes.PendingReflection(),
		})
		go s.runEarlyCompletion(early)
	}
	return nil
}

// MergeReflection applies a resolved reflection to the answer it belongs
// to. A missing target is logged and dropped: under the submit protocol
// the record must already exist, so absence is a consistency warning, not
// a fault worth failing anything over.
func (s *Store) MergeReflection(questionID string, reflection datatypes.Reflection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answer, ok := s.answers[questionID]
	if !ok {
		slog.Warn("Reflection merge target missing",
			"session_id", s.id, "question_id", questionID)
		return
	}
	answer.Reflection = reflection
}

// RetryCompletion re-runs the authoritative completion call with the full
// answer set. Safe to call concurrently; the write-once cell makes the
// duplicate result a no-op.
func (s *Store) RetryCompletion(ctx context.Context) (*datatypes.CompletionOutputs, error) {
	s.mu.Lock()
	if s.answeredCount < s.def.TotalSteps() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: intake not complete", datatypes.ErrInvalidStep)
	}
	if outputs, _, ok := s.completion.Get(); ok {
		s.mu.Unlock()
		return outputs, nil
	}
	answers := s.answersInOrderLocked(s.def.TotalSteps())
	s.mu.Unlock()

	outputs, err := s.completer.Generate(ctx, s.def, answers)
	if err != nil {
		return nil, err
	}
	s.setCompletion(flow.SourceAuthoritative, outputs)
	outputs, _, _ = s.completion.Get()
	return outputs, nil
}

// Snapshot returns a deep-copied view of the session.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		SessionID:       s.id,
		IntakeType:      s.def.Type,
		AnsweredCount:   s.answeredCount,
		TotalSteps:      s.def.TotalSteps(),
		IsComplete:      s.answeredCount >= s.def.TotalSteps(),
		Answers:         s.answersInOrderLocked(s.def.TotalSteps()),
		CompletionRetry: s.completionRetryable,
	}
	if !view.IsComplete {
		q := datatypes.PublicQuestionView(s.def.Questions[s.answeredCount])
		view.CurrentQuestion = &q
	}
	if outputs, source, ok := s.completion.Get(); ok {
		view.CompletionOutputs = outputs
		view.CompletionSource = string(source)
	}
	return view
}

// ID returns the session identifier.
func (s *Store) ID() string { return s.id }

// processStep is the background step call made after a cursor submit.
func (s *Store) processStep(stepIndex int, questionID string, value datatypes.AnswerValue, trail []datatypes.Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stepTimeout)
	defer cancel()

	resp, err := s.processor.Process(ctx, &datatypes.StepRequest{
		IntakeType:    s.def.Type,
		StepIndex:     stepIndex,
		PriorAnswers:  trail,
		CurrentAnswer: value,
	})

	if resp == nil {
		if flow.IsCallerError(err) {
			// Should be impossible: the store derived the request from
			// its own definition.
			slog.Error("Step call rejected as caller error",
				"session_id", s.id, "step", stepIndex, "error", err)
			return
		}
		slog.Error("Step call failed, reflection marked failed",
			"session_id", s.id, "question_id", questionID, "error", err)
		s.MergeReflection(questionID, datatypes.FailedReflection())
		return
	}

	s.MergeReflection(questionID, resp.Reflection)

	if resp.IsComplete {
		if resp.CompletionOutputs != nil {
			s.setCompletion(flow.SourceAuthoritative, resp.CompletionOutputs)
		} else if err != nil && errors.Is(err, datatypes.ErrGenerationFailure) {
			// Authoritative completion failed. If the early task already
			// won the cell there is nothing to retry.
			if _, _, ok := s.completion.Get(); !ok {
				s.mu.Lock()
				s.completionRetryable = true
				s.mu.Unlock()
				slog.Error("Authoritative completion failed, retry available",
					"session_id", s.id, "error", err)
			}
		}
	}
}

// runEarlyCompletion is the speculative completion task. It is purely an
// optimization: failures are swallowed and a losing result is discarded by
// the cell.
func (s *Store) runEarlyCompletion(answers []datatypes.Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stepTimeout)
	defer cancel()

	outputs, err := s.completer.Generate(ctx, s.def, answers)
	if err != nil {
		slog.Warn("Early completion task failed (ignored)",
			"session_id", s.id, "error", err)
		return
	}
	s.setCompletion(flow.SourceEarly, outputs)
}

func (s *Store) setCompletion(source flow.CompletionSource, outputs *datatypes.CompletionOutputs) {
	if s.completion.Set(source, outputs) {
		s.metrics.CompletionRaceTotal.WithLabelValues(string(source)).Inc()
		s.mu.Lock()
		s.completionRetryable = false
		s.mu.Unlock()
		slog.Info("Completion outputs set", "session_id", s.id, "source", source)
	}
}

func (s *Store) questionByID(id string) *datatypes.QuestionDefinition {
	for i := range s.def.Questions {
		if s.def.Questions[i].ID == id {
			return &s.def.Questions[i]
		}
	}
	return nil
}

// answersInOrderLocked copies the recorded answers for steps below limit,
// in definition order. Copies, not pointers: the trail handed to a
// background call must not race with later merges.
func (s *Store) answersInOrderLocked(limit int) []datatypes.Answer {
	out := make([]datatypes.Answer, 0, limit)
	for i := 0; i < limit && i < s.def.TotalSteps(); i++ {
		if a, ok := s.answers[s.def.Questions[i].ID]; ok {
			out = append(out, *a)
		}
	}
	return out
}
