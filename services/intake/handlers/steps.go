// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/stillpoint/intake/services/intake/datatypes"
	"github.com/stillpoint/intake/services/intake/flow"
)

var stepTracer = otel.Tracer("stillpoint.intake.handlers")

// HandleStep is the stateless step processor endpoint, for callers that
// keep session state on their side. Synchronous: the response carries the
// resolved reflection and the next question, or the completion outputs on
// the final step.
func HandleStep(processor *flow.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := stepTracer.Start(c.Request.Context(), "HandleStep")
		defer span.End()

		var req datatypes.StepRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the step request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := processor.Process(ctx, &req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeStepError(c, resp, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// writeStepError maps the error taxonomy onto HTTP statuses. A completion
// failure on the final step still returns the resolved reflection so the
// caller can merge it before retrying.
func writeStepError(c *gin.Context, resp *datatypes.StepResponse, err error) {
	switch {
	case errors.Is(err, datatypes.ErrUnknownIntake):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown intake type"})
	case errors.Is(err, datatypes.ErrInvalidStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step index"})
	case errors.Is(err, datatypes.ErrGenerationFailure):
		body := gin.H{"error": "generation failed", "retryable": true}
		if resp != nil {
			body["reflection"] = resp.Reflection
			body["is_complete"] = resp.IsComplete
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		slog.Error("Step processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "step processing failed"})
	}
}
