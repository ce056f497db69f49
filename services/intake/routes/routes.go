// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/flow"
	"github.com/stillpoint/intake/services/intake/handlers"
	"github.com/stillpoint/intake/services/intake/session"
)

func SetupRoutes(router *gin.Engine, cat *catalog.Catalog, processor *flow.Processor,
	mgr *session.Manager) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/intakes/:intakeType/definition", handlers.GetIntakeDefinition(cat))
		v1.POST("/intakes/:intakeType/sessions", handlers.CreateSession(mgr))

		// Stateless step processing for callers holding their own state
		v1.POST("/steps", handlers.HandleStep(processor))

		// Server-held session routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sessionId", handlers.GetSession(mgr))
			sessions.POST("/:sessionId/answers", handlers.SubmitAnswer(mgr))
			sessions.POST("/:sessionId/completion/retry", handlers.RetryCompletion(mgr))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(mgr))
		}
	}
}
