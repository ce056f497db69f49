// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes: step processor request/response types.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxAnswerTextBytes bounds a single free-text answer. Oversized
	// payloads are rejected before any generative call is made.
	MaxAnswerTextBytes = 16 * 1024 // 16KB

	// MaxPriorAnswers bounds the answer trail a step request may carry.
	MaxPriorAnswers = 64
)

// stepValidate is the shared validator instance for step datatypes.
var stepValidate *validator.Validate

func init() {
	stepValidate = validator.New()
	_ = stepValidate.RegisterValidation("answertext", validateAnswerText)
}

// validateAnswerText enforces MaxAnswerTextBytes on free-text answers.
// Byte length, not rune count: the bound exists to cap payload memory.
func validateAnswerText(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxAnswerTextBytes
}

// StepRequest is one stateless invocation of the step processor: the
// caller's full prior trail plus the answer just given for StepIndex.
type StepRequest struct {
	IntakeType    string      `json:"intake_type" validate:"required"`
	StepIndex     int         `json:"step_index" validate:"gte=0"`
	PriorAnswers  []Answer    `json:"prior_answers" validate:"max=64,dive"`
	CurrentAnswer AnswerValue `json:"current_answer"`
}

// Validate checks the request shape, including the answer value union tag.
func (r *StepRequest) Validate() error {
	if err := stepValidate.Struct(r); err != nil {
		return err
	}
	return r.CurrentAnswer.Validate()
}

// StepMetadata echoes positional context back to the caller.
type StepMetadata struct {
	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
	IntakeType  string `json:"intake_type"`
}

// StepResponse is the step processor result. NextQuestion is nil on the
// final step; CompletionOutputs is non-nil only on the final step and only
// when the authoritative completion call succeeded.
type StepResponse struct {
	Reflection        Reflection         `json:"reflection"`
	NextQuestion      *PublicQuestion    `json:"next_question,omitempty"`
	IsComplete        bool               `json:"is_complete"`
	CompletionOutputs *CompletionOutputs `json:"completion_outputs,omitempty"`
	Metadata          StepMetadata       `json:"metadata"`
}
