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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/observability"
	"github.com/stillpoint/intake/services/llm"
)

// testIntakeYAML is the three-question intake used across flow tests:
// a text question, a templated multi-select, and a skip-flagged
// single-select. Speculation is disabled so call counts are exact.
const testIntakeYAML = `
type: threeq
title: Three question intake
early_start_index: -1
questions:
  - id: q1
    prompt: What brings you here?
    kind: text
    clinical_intent: presenting concern
  - id: q2
    prompt: Which areas feel heaviest?
    kind: multi_select
    options:
      - {display_text: Work, value: work}
      - {display_text: Stress, value: stress}
      - {display_text: Sleep, value: sleep}
    templates:
      - {values: [work, stress], ack: Work and stress feed each other.}
  - id: q3
    prompt: How long has it felt this way?
    kind: single_select
    skip_reflection: true
    skip_ack: Thanks, that helps.
    options:
      - {display_text: Weeks, value: weeks}
      - {display_text: Months, value: months}
`

const fakeCompletionJSON = `{"personalized_brief":"brief","first_session_guide":"guide","experiments":["walk","journal","call a friend"]}`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "threeq.yaml"), []byte(testIntakeYAML), 0o600); err != nil {
		t.Fatalf("writing test definition: %v", err)
	}
	cat, err := catalog.LoadDir(dir)
	if err != nil {
		t.Fatalf("loading test catalog: %v", err)
	}
	return cat
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

// fakeClient is a counting LLMClient. Optional hooks let tests inject
// failures or block calls to control resolution order.
type fakeClient struct {
	mu              sync.Mutex
	generateCalls   int
	structuredCalls int

	generateErr  error
	generateText string

	structuredFn func(call int, prompt string) (json.RawMessage, error)
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.mu.Lock()
	f.generateCalls++
	f.mu.Unlock()
	if f.generateErr != nil {
		return "", f.generateErr
	}
	if f.generateText != "" {
		return f.generateText, nil
	}
	return "That sounds like a lot to carry.", nil
}

func (f *fakeClient) GenerateStructured(ctx context.Context, schema llm.Schema, prompt string, params llm.GenerationParams) (json.RawMessage, error) {
	f.mu.Lock()
	f.structuredCalls++
	call := f.structuredCalls
	fn := f.structuredFn
	f.mu.Unlock()
	if fn != nil {
		return fn(call, prompt)
	}
	return json.RawMessage(fakeCompletionJSON), nil
}

func (f *fakeClient) counts() (generate, structured int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls, f.structuredCalls
}
