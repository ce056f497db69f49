// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the intake service.
//
// This file contains the answer value union and the two-phase reflection
// type. For question and intake definition types, see definitions.go.
// For step request/response types, see step.go.
package datatypes

import (
	"fmt"
	"sort"
)

// =============================================================================
// Answer Values
// =============================================================================

// AnswerValueKind discriminates the two shapes an answer value can take.
type AnswerValueKind string

const (
	// AnswerKindText is free-form text typed by the user.
	AnswerKindText AnswerValueKind = "text"

	// AnswerKindSelection is an ordered set of option values chosen by the
	// user (one value for single-select questions, one or more for
	// multi-select).
	AnswerKindSelection AnswerValueKind = "selection"
)

// AnswerValue is a tagged union: exactly one of Text or Selection is
// meaningful, according to Kind. Consumers must switch on Kind rather than
// probing which field happens to be populated.
type AnswerValue struct {
	Kind      AnswerValueKind `json:"kind" validate:"required,oneof=text selection"`
	Text      string          `json:"text,omitempty" validate:"answertext"`
	Selection []string        `json:"selection,omitempty"`
}

// TextValue builds a free-text answer value.
func TextValue(text string) AnswerValue {
	return AnswerValue{Kind: AnswerKindText, Text: text}
}

// SelectionValue builds a selection answer value. Order is preserved as
// submitted.
func SelectionValue(values ...string) AnswerValue {
	return AnswerValue{Kind: AnswerKindSelection, Selection: values}
}

// Validate checks that the union tag matches the populated arm.
func (v AnswerValue) Validate() error {
	switch v.Kind {
	case AnswerKindText:
		if len(v.Selection) != 0 {
			return fmt.Errorf("text answer must not carry a selection")
		}
		if len(v.Text) > MaxAnswerTextBytes {
			return fmt.Errorf("text answer exceeds %d bytes", MaxAnswerTextBytes)
		}
		return nil
	case AnswerKindSelection:
		if len(v.Selection) == 0 {
			return fmt.Errorf("selection answer must carry at least one value")
		}
		if v.Text != "" {
			return fmt.Errorf("selection answer must not carry text")
		}
		return nil
	default:
		return fmt.Errorf("unknown answer value kind %q", v.Kind)
	}
}

// SortedSelection returns the selection values in lexicographic order.
// Used for template matching, where the user's click order is irrelevant.
func (v AnswerValue) SortedSelection() []string {
	out := make([]string, len(v.Selection))
	copy(out, v.Selection)
	sort.Strings(out)
	return out
}

// Display renders the value for inclusion in a prompt or log line.
func (v AnswerValue) Display() string {
	if v.Kind == AnswerKindText {
		return v.Text
	}
	out := ""
	for i, s := range v.Selection {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// =============================================================================
// Reflections
// =============================================================================

// ReflectionState tracks the lifecycle of a reflection. A reflection starts
// pending and transitions exactly once, so "not yet generated" and
// "generated as empty string" are never conflated.
type ReflectionState string

const (
	// ReflectionPending means the step call that produces this reflection
	// has not resolved yet.
	ReflectionPending ReflectionState = "pending"

	// ReflectionResolved means Text holds the final acknowledgment.
	ReflectionResolved ReflectionState = "resolved"

	// ReflectionFailed means the generation call failed; the answer stays
	// usable and later questions are unaffected.
	ReflectionFailed ReflectionState = "failed"
)

// Reflection is the two-phase acknowledgment value attached to an Answer.
type Reflection struct {
	State ReflectionState `json:"state"`
	Text  string          `json:"text,omitempty"`
}

// PendingReflection is the initial value for every newly created Answer.
func PendingReflection() Reflection {
	return Reflection{State: ReflectionPending}
}

// ResolvedReflection wraps a final acknowledgment text.
func ResolvedReflection(text string) Reflection {
	return Reflection{State: ReflectionResolved, Text: text}
}

// FailedReflection marks a reflection whose generation call failed.
func FailedReflection() Reflection {
	return Reflection{State: ReflectionFailed}
}

// =============================================================================
// Answers
// =============================================================================

// Answer is one recorded question/answer/reflection triple. Answers are
// owned exclusively by the session store; the reflection field is mutated
// in place exactly once when the step result arrives.
type Answer struct {
	QuestionID     string      `json:"question_id" validate:"required"`
	QuestionPrompt string      `json:"question_prompt"`
	Value          AnswerValue `json:"value"`
	Reflection     Reflection  `json:"reflection"`
}
