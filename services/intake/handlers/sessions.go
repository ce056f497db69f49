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

	"github.com/stillpoint/intake/services/intake/datatypes"
	"github.com/stillpoint/intake/services/intake/session"
)

// SubmitAnswerRequest is the body for the session answer endpoint.
type SubmitAnswerRequest struct {
	QuestionID string                `json:"question_id" binding:"required"`
	Value      datatypes.AnswerValue `json:"value" binding:"required"`
}

// CreateSession starts a server-held session and returns its first
// question.
func CreateSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		intakeType := c.Param("intakeType")
		store, err := mgr.Create(intakeType)
		if err != nil {
			if errors.Is(err, datatypes.ErrUnknownIntake) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown intake type"})
				return
			}
			slog.Error("Session create failed", "intake_type", intakeType, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
			return
		}
		c.JSON(http.StatusCreated, store.Snapshot())
	}
}

// SubmitAnswer records an answer and returns the updated view
// immediately: the user keeps moving while the reflection call is in
// flight.
func SubmitAnswer(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := lookupSession(c, mgr)
		if !ok {
			return
		}

		var req SubmitAnswerRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the answer request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := store.Submit(req.QuestionID, req.Value); err != nil {
			switch {
			case errors.Is(err, datatypes.ErrUnknownQuestion):
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown question id"})
			case errors.Is(err, datatypes.ErrIntakeComplete):
				c.JSON(http.StatusConflict, gin.H{"error": "intake already complete"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusAccepted, store.Snapshot())
	}
}

// GetSession serves the current session view.
func GetSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := lookupSession(c, mgr)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

// RetryCompletion re-invokes the authoritative completion call after a
// generation failure. Idempotent: a result that already exists is
// returned as-is.
func RetryCompletion(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := lookupSession(c, mgr)
		if !ok {
			return
		}
		outputs, err := store.RetryCompletion(c.Request.Context())
		if err != nil {
			switch {
			case errors.Is(err, datatypes.ErrInvalidStep):
				c.JSON(http.StatusConflict, gin.H{"error": "intake not complete"})
			case errors.Is(err, datatypes.ErrGenerationFailure):
				c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed", "retryable": true})
			default:
				slog.Error("Completion retry failed", "session_id", store.ID(), "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "completion retry failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"completion_outputs": outputs})
	}
}

// DeleteSession drops a live session.
func DeleteSession(mgr *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := lookupSession(c, mgr)
		if !ok {
			return
		}
		mgr.Delete(store.ID())
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": store.ID()})
	}
}

func lookupSession(c *gin.Context, mgr *session.Manager) (*session.Store, bool) {
	store, err := mgr.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return store, true
}
