// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint/intake/services/intake/datatypes"
)

func newTestProcessor(t *testing.T, client *fakeClient) *Processor {
	t.Helper()
	metrics := testMetrics()
	completer := NewCompletionGenerator(client, metrics)
	return NewProcessor(testCatalog(t), client, completer, metrics)
}

func TestProcessor_Validation(t *testing.T) {
	client := &fakeClient{}
	proc := newTestProcessor(t, client)

	t.Run("unknown intake", func(t *testing.T) {
		_, err := proc.Process(context.Background(), &datatypes.StepRequest{
			IntakeType:    "nope",
			StepIndex:     0,
			CurrentAnswer: datatypes.TextValue("hi"),
		})
		assert.ErrorIs(t, err, datatypes.ErrUnknownIntake)
	})

	t.Run("step index at totalSteps", func(t *testing.T) {
		_, err := proc.Process(context.Background(), &datatypes.StepRequest{
			IntakeType:    "threeq",
			StepIndex:     3,
			CurrentAnswer: datatypes.TextValue("hi"),
		})
		assert.ErrorIs(t, err, datatypes.ErrInvalidStep)
	})

	// Validation failures must abort before any generative call.
	generate, structured := client.counts()
	assert.Zero(t, generate)
	assert.Zero(t, structured)
}

func TestProcessor_StrategyCalls(t *testing.T) {
	t.Run("text question generates exactly once", func(t *testing.T) {
		client := &fakeClient{generateText: "Thanks for sharing that."}
		proc := newTestProcessor(t, client)

		resp, err := proc.Process(context.Background(), &datatypes.StepRequest{
			IntakeType:    "threeq",
			StepIndex:     0,
			CurrentAnswer: datatypes.TextValue("burned out at work"),
		})
		require.NoError(t, err)

		generate, structured := client.counts()
		assert.Equal(t, 1, generate)
		assert.Zero(t, structured)
		assert.Equal(t, datatypes.ReflectionResolved, resp.Reflection.State)
		assert.Equal(t, "Thanks for sharing that.", resp.Reflection.Text)
		assert.False(t, resp.IsComplete)
		require.NotNil(t, resp.NextQuestion)
		assert.Equal(t, "q2", resp.NextQuestion.ID)
		assert.Nil(t, resp.CompletionOutputs)
	})

	t.Run("template hit makes zero calls", func(t *testing.T) {
		client := &fakeClient{}
		proc := newTestProcessor(t, client)

		resp, err := proc.Process(context.Background(), &datatypes.StepRequest{
			IntakeType:    "threeq",
			StepIndex:     1,
			CurrentAnswer: datatypes.SelectionValue("stress", "work"),
		})
		require.NoError(t, err)

		generate, _ := client.counts()
		assert.Zero(t, generate)
		assert.Equal(t, "Work and stress feed each other.", resp.Reflection.Text)
	})

	t.Run("template miss falls through to generation", func(t *testing.T) {
		client := &fakeClient{}
		proc := newTestProcessor(t, client)

		_, err := proc.Process(context.Background(), &datatypes.StepRequest{
			IntakeType:    "threeq",
			StepIndex:     1,
			CurrentAnswer: datatypes.SelectionValue("sleep"),
		})
		require.NoError(t, err)

		generate, _ := client.counts()
		assert.Equal(t, 1, generate)
	})

	t.Run("skip-flagged final step never generates a reflection", func(t *testing.T) {
		client := &fakeClient{}
		proc := newTestProcessor(t, client)

		resp, err := proc.Process(context.Background(), &datatypes.StepRequest{
			IntakeType:    "threeq",
			StepIndex:     2,
			CurrentAnswer: datatypes.SelectionValue("months"),
		})
		require.NoError(t, err)

		generate, structured := client.counts()
		assert.Zero(t, generate, "skip must not invoke the generation capability")
		assert.Equal(t, 1, structured, "final step runs the authoritative completion call")
		assert.Equal(t, "Thanks, that helps.", resp.Reflection.Text)
		assert.True(t, resp.IsComplete)
		assert.Nil(t, resp.NextQuestion)
		require.NotNil(t, resp.CompletionOutputs)
		assert.Equal(t, "brief", resp.CompletionOutputs.PersonalizedBrief)
		assert.Len(t, resp.CompletionOutputs.Experiments, 3)
	})
}

func TestProcessor_ReflectionFailure(t *testing.T) {
	client := &fakeClient{generateErr: errors.New("backend down")}
	proc := newTestProcessor(t, client)

	resp, err := proc.Process(context.Background(), &datatypes.StepRequest{
		IntakeType:    "threeq",
		StepIndex:     0,
		CurrentAnswer: datatypes.TextValue("hi"),
	})
	assert.ErrorIs(t, err, datatypes.ErrGenerationFailure)
	assert.Nil(t, resp)
}

func TestProcessor_CompletionFailureKeepsReflection(t *testing.T) {
	client := &fakeClient{
		structuredFn: func(call int, prompt string) (json.RawMessage, error) {
			return nil, errors.New("backend down")
		},
	}
	proc := newTestProcessor(t, client)

	resp, err := proc.Process(context.Background(), &datatypes.StepRequest{
		IntakeType:    "threeq",
		StepIndex:     2,
		CurrentAnswer: datatypes.SelectionValue("weeks"),
	})
	assert.ErrorIs(t, err, datatypes.ErrGenerationFailure)
	require.NotNil(t, resp, "the resolved reflection must survive a completion failure")
	assert.Equal(t, "Thanks, that helps.", resp.Reflection.Text)
	assert.True(t, resp.IsComplete)
	assert.Nil(t, resp.CompletionOutputs)
}

func TestProcessor_MetadataAndTrail(t *testing.T) {
	var gotPrompt string
	client := &fakeClient{}
	proc := newTestProcessor(t, client)

	prior := []datatypes.Answer{{
		QuestionID:     "q1",
		QuestionPrompt: "What brings you here?",
		Value:          datatypes.TextValue("constant deadlines"),
		Reflection:     datatypes.ResolvedReflection("That sounds relentless."),
	}}
	client.structuredFn = func(call int, prompt string) (json.RawMessage, error) {
		gotPrompt = prompt
		return json.RawMessage(fakeCompletionJSON), nil
	}

	resp, err := proc.Process(context.Background(), &datatypes.StepRequest{
		IntakeType:    "threeq",
		StepIndex:     2,
		PriorAnswers:  prior,
		CurrentAnswer: datatypes.SelectionValue("weeks"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Metadata.CurrentStep)
	assert.Equal(t, 3, resp.Metadata.TotalSteps)
	assert.Equal(t, "threeq", resp.Metadata.IntakeType)
	assert.Contains(t, gotPrompt, "constant deadlines",
		"completion prompt must carry the full answer trail")
	assert.Contains(t, gotPrompt, "That sounds relentless.")
}

func TestCompletionGenerator_ConcurrentRetry(t *testing.T) {
	client := &fakeClient{}
	metrics := testMetrics()
	gen := NewCompletionGenerator(client, metrics)
	cat := testCatalog(t)
	def, err := cat.Get("threeq")
	require.NoError(t, err)

	answers := []datatypes.Answer{
		{QuestionID: "q1", QuestionPrompt: "What brings you here?", Value: datatypes.TextValue("a"), Reflection: datatypes.ResolvedReflection("r")},
		{QuestionID: "q2", QuestionPrompt: "Which areas feel heaviest?", Value: datatypes.SelectionValue("work"), Reflection: datatypes.ResolvedReflection("r")},
		{QuestionID: "q3", QuestionPrompt: "How long has it felt this way?", Value: datatypes.SelectionValue("weeks"), Reflection: datatypes.ResolvedReflection("r")},
	}

	var wg sync.WaitGroup
	results := make([]*datatypes.CompletionOutputs, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gen.Generate(context.Background(), def, answers)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		require.NoError(t, errs[i], fmt.Sprintf("call %d", i))
		require.NotNil(t, results[i])
	}
	_, structured := client.counts()
	assert.Equal(t, 4, structured)
}

func TestCompletionGenerator_EmptyAnswers(t *testing.T) {
	client := &fakeClient{}
	gen := NewCompletionGenerator(client, testMetrics())
	def, err := testCatalog(t).Get("threeq")
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), def, nil)
	assert.Error(t, err)
	_, structured := client.counts()
	assert.Zero(t, structured)
}
