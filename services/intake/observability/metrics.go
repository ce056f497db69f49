// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the intake service.
//
// Metrics cover the cost/latency levers of the flow engine: how often each
// reflection strategy fires, how many generation calls go out per tier, and
// which side wins the early/authoritative completion race. Exposed via the
// /metrics endpoint; all operations are thread-safe via Prometheus's
// internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "stillpoint"

const intakeSubsystem = "intake"

// Metrics holds all Prometheus metrics for the intake service. Initialize
// once at startup via NewMetrics; tests pass their own registry.
type Metrics struct {
	// StepRequestsTotal counts step processor invocations.
	// Labels: intake_type, status (ok, unknown_intake, invalid_step, generation_failure)
	StepRequestsTotal *prometheus.CounterVec

	// ReflectionStrategyTotal counts resolved reflection directives.
	// Labels: intake_type, strategy (skip, template, generate)
	ReflectionStrategyTotal *prometheus.CounterVec

	// GenerationCallsTotal counts outbound generation-capability calls.
	// Labels: tier (small, large), status (success, error)
	GenerationCallsTotal *prometheus.CounterVec

	// GenerationInFlight gauges currently outstanding generation calls.
	GenerationInFlight prometheus.Gauge

	// CompletionRaceTotal counts completion races by winning source.
	// Labels: winner (early, authoritative)
	CompletionRaceTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures generation call latency.
	// Labels: tier (small, large)
	GenerationDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers all intake metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StepRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: intakeSubsystem,
			Name:      "step_requests_total",
			Help:      "Step processor invocations by intake type and outcome.",
		}, []string{"intake_type", "status"}),

		ReflectionStrategyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: intakeSubsystem,
			Name:      "reflection_strategy_total",
			Help:      "Reflection directives resolved, by strategy.",
		}, []string{"intake_type", "strategy"}),

		GenerationCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: intakeSubsystem,
			Name:      "generation_calls_total",
			Help:      "Outbound generation-capability calls by tier and status.",
		}, []string{"tier", "status"}),

		GenerationInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: intakeSubsystem,
			Name:      "generation_in_flight",
			Help:      "Generation calls currently outstanding.",
		}),

		CompletionRaceTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: intakeSubsystem,
			Name:      "completion_race_total",
			Help:      "Completion races resolved, by winning source.",
		}, []string{"winner"}),

		GenerationDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: intakeSubsystem,
			Name:      "generation_duration_seconds",
			Help:      "Generation call latency by tier.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"tier"}),
	}
}

// NewDefaultMetrics registers on the default Prometheus registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
