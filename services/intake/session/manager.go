// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/datatypes"
	"github.com/stillpoint/intake/services/intake/flow"
	"github.com/stillpoint/intake/services/intake/observability"
)

// DefaultStepTimeout bounds each background step call. The generation
// capability offers no latency guarantee, so expiry is the only exit from
// a hung call; it is treated as a generation failure.
const DefaultStepTimeout = 120 * time.Second

// Manager owns the live sessions. Sessions are in-memory and transient:
// durable history is an external collaborator, not this engine's job.
//
// One store per session id enforces the single-active-session discipline;
// multi-replica sessions (multi-tab) must be prevented upstream.
type Manager struct {
	catalog   *catalog.Catalog
	processor *flow.Processor
	completer *flow.CompletionGenerator
	metrics   *observability.Metrics

	stepTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Store
}

func NewManager(cat *catalog.Catalog, processor *flow.Processor, completer *flow.CompletionGenerator, metrics *observability.Metrics) *Manager {
	return &Manager{
		catalog:     cat,
		processor:   processor,
		completer:   completer,
		metrics:     metrics,
		stepTimeout: DefaultStepTimeout,
		sessions:    make(map[string]*Store),
	}
}

// SetStepTimeout overrides the background step deadline. Tests use short
// values.
func (m *Manager) SetStepTimeout(d time.Duration) {
	m.stepTimeout = d
}

// Create starts a new session for an intake type.
func (m *Manager) Create(intakeType string) (*Store, error) {
	def, err := m.catalog.Get(intakeType)
	if err != nil {
		return nil, err
	}
	store := &Store{
		id:          uuid.NewString(),
		def:         def,
		processor:   m.processor,
		completer:   m.completer,
		metrics:     m.metrics,
		stepTimeout: m.stepTimeout,
		answers:     make(map[string]*datatypes.Answer),
	}

	m.mu.Lock()
	m.sessions[store.id] = store
	m.mu.Unlock()

	slog.Info("Session created", "session_id", store.id, "intake_type", intakeType)
	return store, nil
}

// Get looks up a live session.
func (m *Manager) Get(sessionID string) (*Store, error) {
	m.mu.RLock()
	store, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", datatypes.ErrSessionNotFound, sessionID)
	}
	return store, nil
}

// Delete drops a live session. In-flight generation calls for it are left
// to finish; their merged results go nowhere.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	slog.Info("Session deleted", "session_id", sessionID)
}
