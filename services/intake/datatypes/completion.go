// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// CompletionOutputs are the three artifacts produced once per session, at
// the end of an intake. Set at most once (first non-nil result of the
// early/authoritative race), immutable thereafter.
type CompletionOutputs struct {
	PersonalizedBrief string   `json:"personalized_brief"`
	FirstSessionGuide string   `json:"first_session_guide"`
	Experiments       []string `json:"experiments"`
}
