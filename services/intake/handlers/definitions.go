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

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/datatypes"
)

// GetIntakeDefinition serves the public view of an intake definition.
// Internal annotations never cross this boundary: the response is built
// from the stripped projection, not the definition itself.
func GetIntakeDefinition(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		intakeType := c.Param("intakeType")
		def, err := cat.Get(intakeType)
		if err != nil {
			if errors.Is(err, datatypes.ErrUnknownIntake) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown intake type"})
				return
			}
			slog.Error("Definition lookup failed", "intake_type", intakeType, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "definition lookup failed"})
			return
		}
		c.JSON(http.StatusOK, datatypes.PublicDefinitionView(def))
	}
}
