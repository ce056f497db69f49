// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/flow"
	"github.com/stillpoint/intake/services/intake/observability"
	"github.com/stillpoint/intake/services/intake/routes"
	"github.com/stillpoint/intake/services/intake/session"
	"github.com/stillpoint/intake/services/llm"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "stillpoint-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("intake-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func buildLLMClient() (llm.LLMClient, error) {
	var client llm.LLMClient
	var err error

	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "claude", "anthropic":
		client, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		client, err = llm.NewOllamaClient()
	}
	if err != nil {
		return nil, err
	}

	rps := 0.0
	if raw := os.Getenv("INTAKE_LLM_RPS"); raw != "" {
		rps, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			slog.Warn("INTAKE_LLM_RPS is not a number, rate limiting disabled", "value", raw)
			rps = 0
		}
	}
	return llm.NewRateLimitedClient(client, rps, 4), nil
}

func main() {
	port := os.Getenv("INTAKE_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load the intake catalog: %v", err)
	}
	slog.Info("Intake catalog loaded", "types", cat.Types())

	log.Println("Configuring the LLM Client")
	llmClient, err := buildLLMClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	metrics := observability.NewDefaultMetrics()
	completer := flow.NewCompletionGenerator(llmClient, metrics)
	processor := flow.NewProcessor(cat, llmClient, completer, metrics)
	mgr := session.NewManager(cat, processor, completer, metrics)

	router := gin.Default()
	router.Use(otelgin.Middleware("intake-service"))

	routes.SetupRoutes(router, cat, processor, mgr)

	log.Println("Starting the intake server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
