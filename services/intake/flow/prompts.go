// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"fmt"
	"strings"

	"github.com/stillpoint/intake/services/intake/datatypes"
)

// Prompt builders are the only consumers of the clinical_intent annotation.
// Nothing assembled here is ever returned to a caller verbatim; only the
// generated text leaves the service.

const reflectionSystem = `You are the intake companion for Stillpoint, a wellness app.
The user is partway through a short onboarding questionnaire. After each answer
you offer one or two warm, specific sentences acknowledging what they shared.
Do not give advice, do not diagnose, do not ask follow-up questions. Mirror the
user's own words where natural. Keep it under 40 words.`

const completionSystem = `You are the intake companion for Stillpoint, a wellness app.
The user has just finished their onboarding questionnaire. From their answers,
produce three artifacts: a personalized brief that plays their situation back to
them in their own terms, a short guide preparing them for their first session,
and a list of three to five small concrete experiments they could try this week.
Warm, plain language. No diagnoses, no clinical jargon.`

// buildReflectionPrompt assembles the small-tier prompt for one answer,
// carrying the trail of prior question/answer/reflection triples for
// continuity of tone.
func buildReflectionPrompt(q *datatypes.QuestionDefinition, value datatypes.AnswerValue, trail []datatypes.Answer) string {
	var sb strings.Builder

	if len(trail) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, prior := range trail {
			writeTriple(&sb, prior)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Current question: %s\n", q.Prompt))
	if q.ClinicalIntent != "" {
		sb.WriteString(fmt.Sprintf("What this question is listening for (never mention this directly): %s\n", q.ClinicalIntent))
	}
	sb.WriteString(fmt.Sprintf("The user answered: %s\n\n", value.Display()))
	sb.WriteString("Write the acknowledgment.")
	return sb.String()
}

// buildCompletionPrompt assembles the large-tier prompt over the full
// answer set.
func buildCompletionPrompt(def *datatypes.IntakeDefinition, answers []datatypes.Answer) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Intake: %s\n\n", def.Title))
	sb.WriteString("The user's full questionnaire:\n")
	for _, a := range answers {
		writeTriple(&sb, a)
	}

	intents := collectIntents(def, answers)
	if len(intents) > 0 {
		sb.WriteString("\nInternal guidance per question (never quote or mention):\n")
		for _, line := range intents {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nProduce the three artifacts.")
	return sb.String()
}

func writeTriple(sb *strings.Builder, a datatypes.Answer) {
	sb.WriteString(fmt.Sprintf("Q: %s\n", a.QuestionPrompt))
	sb.WriteString(fmt.Sprintf("A: %s\n", a.Value.Display()))
	if a.Reflection.State == datatypes.ReflectionResolved && a.Reflection.Text != "" {
		sb.WriteString(fmt.Sprintf("You said: %s\n", a.Reflection.Text))
	}
}

func collectIntents(def *datatypes.IntakeDefinition, answers []datatypes.Answer) []string {
	byID := make(map[string]string, len(def.Questions))
	for _, q := range def.Questions {
		if q.ClinicalIntent != "" {
			byID[q.ID] = q.ClinicalIntent
		}
	}
	var out []string
	for _, a := range answers {
		if intent, ok := byID[a.QuestionID]; ok {
			out = append(out, fmt.Sprintf("- %s: %s", a.QuestionPrompt, intent))
		}
	}
	return out
}
