// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"sync"

	"github.com/stillpoint/intake/services/intake/datatypes"
)

// CompletionSource identifies which completion task produced a result.
type CompletionSource string

const (
	// SourceEarly is the speculative task started one step before the
	// intake actually finishes.
	SourceEarly CompletionSource = "early"

	// SourceAuthoritative is the call made from the final step, the only
	// task guaranteed to run.
	SourceAuthoritative CompletionSource = "authoritative"
)

// CompletionCell is a write-once cell for the session's completion
// outputs. The early and authoritative tasks both write here; the first
// non-nil write wins and every later write is a no-op. Reads never block.
type CompletionCell struct {
	mu      sync.Mutex
	outputs *datatypes.CompletionOutputs
	source  CompletionSource
}

// Set records outputs from source. Returns true if this write won the
// cell. Nil outputs never win: an early task that resolved empty or failed
// must not block the authoritative result.
func (c *CompletionCell) Set(source CompletionSource, outputs *datatypes.CompletionOutputs) bool {
	if outputs == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outputs != nil {
		return false
	}
	c.outputs = outputs
	c.source = source
	return true
}

// Get returns the winning outputs, their source, and whether the cell has
// been set.
func (c *CompletionCell) Get() (*datatypes.CompletionOutputs, CompletionSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputs, c.source, c.outputs != nil
}
