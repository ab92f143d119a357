// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package atlas

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the Atlas endpoints on a router group.
//
// Routes:
//
//	GET  /healthz            - Service health
//	POST /v1/analyze         - Full analysis of a project tree
//	POST /v1/security/scan   - Security funnel only
//	GET  /v1/patterns        - Architecture pattern catalog
//	GET  /v1/snapshots       - Stored analysis runs
//
// The /metrics endpoint is wired by the server bootstrap, not here,
// because the Prometheus handler lives outside the request-scoped
// middleware chain.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.GET("/healthz", handlers.HandleHealth)

	v1 := rg.Group("/v1")
	v1.Use(limitRequestBody(handlers.svc.Config().MaxRequestBytes))
	{
		v1.POST("/analyze", handlers.HandleAnalyze)
		v1.POST("/security/scan", handlers.HandleSecurityScan)
		v1.GET("/patterns", handlers.HandlePatterns)
		v1.GET("/snapshots", handlers.HandleSnapshots)
	}
}

// limitRequestBody caps request body reads. Oversized bodies surface
// as binding errors in the handlers.
func limitRequestBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
