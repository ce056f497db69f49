// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "errors"

// Sentinel errors shared across the intake service. Callers classify with
// errors.Is; wrapping sites add context with fmt.Errorf("...: %w", err).
var (
	// ErrUnknownIntake: the intake type does not exist in the catalog.
	// Caller error. Fatal for the call, nothing is written.
	ErrUnknownIntake = errors.New("unknown intake type")

	// ErrInvalidStep: the step index is outside the intake's range.
	// Caller error. Fatal for the call, nothing is written.
	ErrInvalidStep = errors.New("invalid step index")

	// ErrGenerationFailure: the generation capability errored or timed out.
	// Recoverable; reflections stay failed-neutral, completion is retryable.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrUnknownQuestion: the question id does not exist in the intake's
	// definition.
	ErrUnknownQuestion = errors.New("unknown question id")

	// ErrSessionNotFound: no live session with the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrIntakeComplete: a submit arrived after the last question was
	// already answered.
	ErrIntakeComplete = errors.New("intake already complete")
)
