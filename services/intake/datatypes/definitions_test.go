// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleDefinition() *IntakeDefinition {
	return &IntakeDefinition{
		Type:  "sample",
		Title: "Sample intake",
		Questions: []QuestionDefinition{
			{
				ID: "q1", Prompt: "How are you?", Kind: QuestionKindText,
				ClinicalIntent: "presenting concern, acute distress screen",
			},
			{
				ID: "q2", Prompt: "Pick areas", Kind: QuestionKindMultiSelect,
				Options:        []Option{{DisplayText: "Work", Value: "work"}},
				SkipReflection: false,
				Templates:      []ReflectionTemplate{{Values: []string{"work"}, Ack: "Noted."}},
				ClinicalIntent: "domain screener",
			},
			{
				ID: "q3", Prompt: "How long?", Kind: QuestionKindSingleSelect,
				Options:        []Option{{DisplayText: "Weeks", Value: "weeks"}},
				SkipReflection: true,
				SkipAck:        "Thanks.",
			},
		},
	}
}

// The internal annotation must never survive any public serialization
// path: neither the stripped view nor direct marshaling of the definition.
func TestClinicalIntent_NeverSerialized(t *testing.T) {
	def := sampleDefinition()

	t.Run("public view", func(t *testing.T) {
		raw, err := json.Marshal(PublicDefinitionView(def))
		if err != nil {
			t.Fatalf("Failed to marshal: %v", err)
		}
		if strings.Contains(string(raw), "distress") || strings.Contains(string(raw), "clinical") {
			t.Errorf("public view leaked internal annotation: %s", raw)
		}
		if strings.Contains(string(raw), "skip_ack") || strings.Contains(string(raw), "Noted.") {
			t.Errorf("public view leaked reflection authoring data: %s", raw)
		}
	})

	t.Run("raw definition marshal", func(t *testing.T) {
		raw, err := json.Marshal(def)
		if err != nil {
			t.Fatalf("Failed to marshal: %v", err)
		}
		if strings.Contains(string(raw), "distress") {
			t.Errorf("definition marshal leaked internal annotation: %s", raw)
		}
	})
}

func TestEarlyCompletionIndex(t *testing.T) {
	neg := -1
	one := 1

	tests := []struct {
		name  string
		def   *IntakeDefinition
		want  int
	}{
		{"defaults to second-to-last", sampleDefinition(), 1},
		{"explicit override", &IntakeDefinition{Questions: make([]QuestionDefinition, 5), EarlyStartIndex: &one}, 1},
		{"disabled", &IntakeDefinition{Questions: make([]QuestionDefinition, 5), EarlyStartIndex: &neg}, -1},
		{"single question intake has no early start", &IntakeDefinition{Questions: make([]QuestionDefinition, 1)}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.EarlyCompletionIndex(); got != tt.want {
				t.Errorf("EarlyCompletionIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStepRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     StepRequest
		wantErr bool
	}{
		{"valid text", StepRequest{IntakeType: "foundations", StepIndex: 0, CurrentAnswer: TextValue("hi")}, false},
		{"missing intake type", StepRequest{StepIndex: 0, CurrentAnswer: TextValue("hi")}, true},
		{"negative step", StepRequest{IntakeType: "foundations", StepIndex: -1, CurrentAnswer: TextValue("hi")}, true},
		{"bad union", StepRequest{IntakeType: "foundations", CurrentAnswer: AnswerValue{Kind: AnswerKindSelection}}, true},
		{"oversized text", StepRequest{IntakeType: "foundations", CurrentAnswer: TextValue(strings.Repeat("a", MaxAnswerTextBytes+1))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
