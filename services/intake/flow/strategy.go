// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package flow implements the intake orchestration engine: reflection
// strategy selection, the per-step processor, and completion generation
// with its speculative early start.
package flow

import (
	"github.com/stillpoint/intake/services/intake/datatypes"
)

// Directive is the reflection production strategy chosen for one answer.
//
// Roughly half the catalog is closed-form; skipping or templating those
// questions removes their generation latency and cost entirely, since an
// acknowledgment of a forced choice carries little information.
type Directive int

const (
	// DirectiveSkip returns the question's fixed canned acknowledgment.
	// Zero latency, zero generative calls. Never fails.
	DirectiveSkip Directive = iota

	// DirectiveTemplate returns a pre-authored acknowledgment matched to
	// the exact selection. Never fails.
	DirectiveTemplate

	// DirectiveGenerate invokes the generation capability at the small
	// tier. The only directive that can fail.
	DirectiveGenerate
)

func (d Directive) String() string {
	switch d {
	case DirectiveSkip:
		return "skip"
	case DirectiveTemplate:
		return "template"
	case DirectiveGenerate:
		return "generate"
	default:
		return "unknown"
	}
}

// SelectStrategy decides how the reflection for (question, value) is
// produced. For Skip and Template the returned ack is the final reflection
// text; for Generate it is empty.
//
// A selection with no exact template match falls through to Generate.
func SelectStrategy(q *datatypes.QuestionDefinition, value datatypes.AnswerValue) (Directive, string) {
	if q.SkipReflection {
		return DirectiveSkip, q.SkipAck
	}
	if value.Kind == datatypes.AnswerKindSelection {
		if ack, ok := matchTemplate(q.Templates, value); ok {
			return DirectiveTemplate, ack
		}
	}
	return DirectiveGenerate, ""
}

// matchTemplate finds a template whose value set equals the selection.
// Comparison is order-insensitive: templates are authored for combinations,
// not click sequences.
func matchTemplate(templates []datatypes.ReflectionTemplate, value datatypes.AnswerValue) (string, bool) {
	selected := value.SortedSelection()
	for _, tpl := range templates {
		if len(tpl.Values) != len(selected) {
			continue
		}
		want := datatypes.SelectionValue(tpl.Values...).SortedSelection()
		match := true
		for i := range want {
			if want[i] != selected[i] {
				match = false
				break
			}
		}
		if match {
			return tpl.Ack, true
		}
	}
	return "", false
}
