// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"fmt"

	"github.com/stillpoint/intake/pkg/validation"
	"github.com/stillpoint/intake/services/intake/datatypes"
)

// validateDefinition enforces the structural rules a definition must meet
// before the engine will serve it. These run at load time so a bad
// definition fails the deploy, not a user session.
func validateDefinition(def *datatypes.IntakeDefinition) error {
	if err := validation.ValidateIntakeType(def.Type); err != nil {
		return err
	}
	if len(def.Questions) == 0 {
		return fmt.Errorf("intake %q has no questions", def.Type)
	}
	// Negative early_start_index disables speculation for the intake.
	if def.EarlyStartIndex != nil && *def.EarlyStartIndex >= len(def.Questions)-1 {
		return fmt.Errorf("intake %q: early_start_index %d must be below %d (the final step)",
			def.Type, *def.EarlyStartIndex, len(def.Questions)-1)
	}

	seen := make(map[string]bool, len(def.Questions))
	for i := range def.Questions {
		q := &def.Questions[i]
		if err := validateQuestion(def.Type, q); err != nil {
			return err
		}
		if seen[q.ID] {
			return fmt.Errorf("intake %q: duplicate question id %q", def.Type, q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}

func validateQuestion(intakeType string, q *datatypes.QuestionDefinition) error {
	if err := validation.ValidateQuestionID(q.ID); err != nil {
		return fmt.Errorf("intake %q: %w", intakeType, err)
	}
	if q.Prompt == "" {
		return fmt.Errorf("intake %q: question %q has no prompt", intakeType, q.ID)
	}

	isSelect := false
	switch q.Kind {
	case datatypes.QuestionKindText:
		if len(q.Options) != 0 {
			return fmt.Errorf("intake %q: text question %q must not declare options", intakeType, q.ID)
		}
	case datatypes.QuestionKindSingleSelect, datatypes.QuestionKindMultiSelect:
		isSelect = true
		if len(q.Options) == 0 {
			return fmt.Errorf("intake %q: select question %q has no options", intakeType, q.ID)
		}
	default:
		return fmt.Errorf("intake %q: question %q has unknown kind %q", intakeType, q.ID, q.Kind)
	}

	if q.SkipReflection && q.SkipAck == "" {
		return fmt.Errorf("intake %q: question %q is skip-flagged but has no skip_ack", intakeType, q.ID)
	}
	if q.SkipReflection && q.Kind == datatypes.QuestionKindText {
		return fmt.Errorf("intake %q: text question %q cannot be skip-flagged", intakeType, q.ID)
	}

	if len(q.Templates) > 0 && !isSelect {
		return fmt.Errorf("intake %q: question %q declares templates but is not a select question", intakeType, q.ID)
	}
	optionValues := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if opt.Value == "" {
			return fmt.Errorf("intake %q: question %q has an option with an empty value", intakeType, q.ID)
		}
		if optionValues[opt.Value] {
			return fmt.Errorf("intake %q: question %q has duplicate option value %q", intakeType, q.ID, opt.Value)
		}
		optionValues[opt.Value] = true
	}
	for _, tpl := range q.Templates {
		if tpl.Ack == "" {
			return fmt.Errorf("intake %q: question %q has a template with an empty ack", intakeType, q.ID)
		}
		if len(tpl.Values) == 0 {
			return fmt.Errorf("intake %q: question %q has a template with no values", intakeType, q.ID)
		}
		for _, v := range tpl.Values {
			if !optionValues[v] {
				return fmt.Errorf("intake %q: question %q template references unknown option value %q",
					intakeType, q.ID, v)
			}
		}
	}
	return nil
}
