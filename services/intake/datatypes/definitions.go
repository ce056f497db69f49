// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes: question and intake definition types.
//
// Definitions are deploy-time data, authored in YAML and loaded by the
// catalog package. The ClinicalIntent annotation is internal-only: it feeds
// prompt construction and must never be serialized to a caller. Public
// serialization always goes through PublicQuestionView / PublicDefinitionView.
package datatypes

// QuestionKind is the input widget the question expects.
type QuestionKind string

const (
	QuestionKindText         QuestionKind = "text"
	QuestionKindSingleSelect QuestionKind = "single_select"
	QuestionKindMultiSelect  QuestionKind = "multi_select"
)

// Option is one selectable choice on a select-type question.
type Option struct {
	DisplayText    string `yaml:"display_text" json:"display_text"`
	Value          string `yaml:"value" json:"value"`
	IsOtherVariant bool   `yaml:"is_other_variant" json:"is_other_variant"`
}

// ReflectionTemplate is a pre-authored acknowledgment for one exact
// selection combination. Values are compared as sets (order-insensitive).
type ReflectionTemplate struct {
	Values []string `yaml:"values" json:"values"`
	Ack    string   `yaml:"ack" json:"ack"`
}

// QuestionDefinition is one step of an intake. Immutable after load.
//
// IDs are stable and never reused across semantically different questions;
// all asynchronous state updates key on them.
//
// ClinicalIntent is deliberately excluded from JSON: it describes what the
// question is probing for and is consumed only by the reflection and
// completion prompt builders.
type QuestionDefinition struct {
	ID      string       `yaml:"id" json:"id"`
	Prompt  string       `yaml:"prompt" json:"prompt"`
	Kind    QuestionKind `yaml:"kind" json:"kind"`
	Options []Option     `yaml:"options,omitempty" json:"options,omitempty"`

	// Examples are shown to the user as nudges for text questions.
	Examples []string `yaml:"examples,omitempty" json:"examples,omitempty"`

	// SkipReflection flags low-signal questions whose acknowledgment is the
	// fixed SkipAck, with no generative call.
	SkipReflection bool   `yaml:"skip_reflection,omitempty" json:"-"`
	SkipAck        string `yaml:"skip_ack,omitempty" json:"-"`

	// Templates are exact-match canned acknowledgments for select questions.
	Templates []ReflectionTemplate `yaml:"templates,omitempty" json:"-"`

	// ClinicalIntent is internal-only. Never expose to callers.
	ClinicalIntent string `yaml:"clinical_intent,omitempty" json:"-"`
}

// IntakeDefinition is one complete ordered questionnaire.
type IntakeDefinition struct {
	Type      string               `yaml:"type" json:"type"`
	Title     string               `yaml:"title" json:"title"`
	Questions []QuestionDefinition `yaml:"questions" json:"questions"`

	// EarlyStartIndex is the step index whose recorded answer triggers the
	// speculative completion call. When nil it defaults to totalSteps - 2
	// (the second-to-last question). A negative value disables speculation
	// for this intake.
	EarlyStartIndex *int `yaml:"early_start_index,omitempty" json:"-"`
}

// TotalSteps returns the number of questions in this intake.
func (d *IntakeDefinition) TotalSteps() int {
	return len(d.Questions)
}

// EarlyCompletionIndex returns the step index at which the speculative
// completion call may start. Returns -1 when speculation is disabled or
// the intake is too short for it.
func (d *IntakeDefinition) EarlyCompletionIndex() int {
	if d.EarlyStartIndex != nil {
		if *d.EarlyStartIndex < 0 {
			return -1
		}
		return *d.EarlyStartIndex
	}
	if len(d.Questions) < 2 {
		return -1
	}
	return len(d.Questions) - 2
}

// =============================================================================
// Public (stripped) views
// =============================================================================

// PublicQuestion is the caller-visible projection of a QuestionDefinition.
// It is built field by field so that adding an internal field to
// QuestionDefinition can never leak by default.
type PublicQuestion struct {
	ID       string       `json:"id"`
	Prompt   string       `json:"prompt"`
	Kind     QuestionKind `json:"kind"`
	Options  []Option     `json:"options,omitempty"`
	Examples []string     `json:"examples,omitempty"`
}

// PublicDefinition is the caller-visible projection of an IntakeDefinition.
type PublicDefinition struct {
	Type       string           `json:"type"`
	Title      string           `json:"title"`
	TotalSteps int              `json:"total_steps"`
	Questions  []PublicQuestion `json:"questions"`
}

// PublicQuestionView strips internal annotations from a question definition.
func PublicQuestionView(q QuestionDefinition) PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Prompt:   q.Prompt,
		Kind:     q.Kind,
		Options:  q.Options,
		Examples: q.Examples,
	}
}

// PublicDefinitionView strips internal annotations from a whole intake.
func PublicDefinitionView(d *IntakeDefinition) PublicDefinition {
	out := PublicDefinition{
		Type:       d.Type,
		Title:      d.Title,
		TotalSteps: d.TotalSteps(),
		Questions:  make([]PublicQuestion, 0, len(d.Questions)),
	}
	for _, q := range d.Questions {
		out.Questions = append(out.Questions, PublicQuestionView(q))
	}
	return out
}
