// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for identifiers.
//
// Intake types and question ids are used as map keys, URL path segments,
// and log attributes. Validating them at the boundary keeps arbitrary user
// input out of those positions.
package validation

import (
	"fmt"
	"regexp"
)

// slugPattern matches intake-type and question-id identifiers.
// Lowercase letters, digits, underscores, hyphens; must start alphanumeric.
// Max length: 64 characters.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// ValidateIntakeType validates an intake type identifier.
//
// Valid identifiers are 1-64 characters of lowercase alphanumerics,
// underscores, and hyphens, starting with an alphanumeric.
func ValidateIntakeType(intakeType string) error {
	if intakeType == "" {
		return fmt.Errorf("intake type cannot be empty")
	}
	if !slugPattern.MatchString(intakeType) {
		return fmt.Errorf("invalid intake type %q (must be 1-64 lowercase alphanumeric chars, underscores, or hyphens)", intakeType)
	}
	return nil
}

// ValidateQuestionID validates a question identifier. Same shape as intake
// types: question ids are stable keys and appear in URLs and merge calls.
func ValidateQuestionID(id string) error {
	if id == "" {
		return fmt.Errorf("question id cannot be empty")
	}
	if !slugPattern.MatchString(id) {
		return fmt.Errorf("invalid question id %q (must be 1-64 lowercase alphanumeric chars, underscores, or hyphens)", id)
	}
	return nil
}
