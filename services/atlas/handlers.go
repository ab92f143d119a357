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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers holds the HTTP handlers for the Atlas service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers wrapping a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleAnalyze runs a full analysis.
//
// POST /v1/analyze
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Invalid request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Starting analysis", "project_root", req.ProjectRoot, "security", req.Security)

	result, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		statusCode, errCode := analysisErrorStatus(err)
		logger.Error("Analysis failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Analysis complete",
		"run_id", result.Meta.RunID,
		"files", result.Stats.Files,
		"issues", result.Stats.Issues,
		"findings", result.Stats.Findings,
		"duration_ms", result.Meta.DurationMs)

	c.JSON(http.StatusOK, result)
}

// HandleSecurityScan runs the security funnel on its own.
//
// POST /v1/security/scan
func (h *Handlers) HandleSecurityScan(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSecurityScan")

	var req SecurityScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Invalid request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Starting security scan", "project_root", req.ProjectRoot)

	report, err := h.svc.SecurityScan(c.Request.Context(), req)
	if err != nil {
		statusCode, errCode := analysisErrorStatus(err)
		logger.Error("Security scan failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Security scan complete",
		"run_id", report.RunID,
		"total", report.Total,
		"ast_filtered", len(report.ASTFiltered),
		"ai_filtered", len(report.AIFiltered))

	c.JSON(http.StatusOK, report)
}

// HandlePatterns lists the architecture pattern catalog.
//
// GET /v1/patterns
func (h *Handlers) HandlePatterns(c *gin.Context) {
	getOrCreateRequestID(c)
	patterns := h.svc.Patterns()
	c.JSON(http.StatusOK, PatternsResponse{
		Patterns: patterns,
		Total:    len(patterns),
	})
}

// HandleSnapshots lists stored analysis runs, newest first.
//
// GET /v1/snapshots
func (h *Handlers) HandleSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSnapshots")

	snapshots, err := h.svc.Snapshots(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrSnapshotsDisabled) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: err.Error(),
				Code:  "SNAPSHOTS_DISABLED",
			})
			return
		}
		logger.Error("List snapshots failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, SnapshotsResponse{
		Snapshots: snapshots,
		Total:     len(snapshots),
	})
}

// HandleHealth returns service health status.
//
// GET /healthz
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// analysisErrorStatus maps service errors to an HTTP status and a
// machine-readable code.
func analysisErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrRelativePath):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, ErrPathTraversal):
		return http.StatusBadRequest, "PATH_TRAVERSAL"
	case errors.Is(err, ErrRootNotAllowed):
		return http.StatusBadRequest, "ROOT_NOT_ALLOWED"
	case errors.Is(err, ErrProjectTooLarge):
		return http.StatusBadRequest, "PROJECT_TOO_LARGE"
	case errors.Is(err, ErrAnalysisInProgress):
		return http.StatusConflict, "ANALYSIS_IN_PROGRESS"
	case errors.Is(err, ErrAnalysisTimeout):
		return http.StatusGatewayTimeout, "ANALYSIS_TIMEOUT"
	default:
		return http.StatusInternalServerError, "ANALYSIS_FAILED"
	}
}

// getOrCreateRequestID returns the request ID from the X-Request-ID
// header, generating one when absent. The ID is echoed on the
// response for client-side correlation.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
