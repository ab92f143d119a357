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
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	RegisterRoutes(&router.RouterGroup, handlers)
	return router
}

func TestHandlers_HandleHealth(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}

	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleAnalyze_InvalidRequest(t *testing.T) {
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			body:       "{}",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed json",
			body:       `{"project_root":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "bad include glob",
			body:       `{"project_root": "/tmp/project", "includes": ["[oops"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "relative path",
			body:       `{"project_root": "relative/path"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PATH",
		},
		{
			name:       "path traversal",
			body:       `{"project_root": "/some/path/../traversal"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "PATH_TRAVERSAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/v1/analyze",
				bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var errResp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if errResp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, errResp.Code)
			}
		})
	}
}

func TestHandlers_HandleAnalyze_RootNotAllowed(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.AllowedRoots = []string{"/somewhere/else"}
	svc := NewService(cfg, WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	root := writeProject(t, mvcFixture())
	body := fmt.Sprintf(`{"project_root": %q}`, root)
	req, _ := http.NewRequest("POST", "/v1/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if errResp.Code != "ROOT_NOT_ALLOWED" {
		t.Errorf("expected code ROOT_NOT_ALLOWED, got %q", errResp.Code)
	}
}

func TestHandlers_HandleAnalyze_Success(t *testing.T) {
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	root := writeProject(t, mvcFixture())
	body := fmt.Sprintf(`{"project_root": %q}`, root)
	req, _ := http.NewRequest("POST", "/v1/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var result AnalysisResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if result.Stats.Files != 3 {
		t.Errorf("expected 3 files, got %d", result.Stats.Files)
	}

	if result.Meta.RunID == "" {
		t.Error("expected a run ID in the response")
	}
}

func TestHandlers_HandleAnalyze_BodyTooLarge(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxRequestBytes = 64
	svc := NewService(cfg, WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	body := fmt.Sprintf(`{"project_root": "/tmp/project", "includes": [%q]}`,
		strings.Repeat("x", 256))
	req, _ := http.NewRequest("POST", "/v1/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlers_HandleSecurityScan(t *testing.T) {
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	root := writeProject(t, map[string]string{
		"src/routes.js": strings.Join([]string{
			`const express = require('express');`,
			`const router = express.Router();`,
			``,
			`router.get('/lookup', (req, res) => {`,
			`  db.execute("SELECT * FROM user_sessions WHERE id=" + req.query.id);`,
			`  res.send('ok');`,
			`});`,
		}, "\n"),
	})
	body := fmt.Sprintf(`{"project_root": %q}`, root)
	req, _ := http.NewRequest("POST", "/v1/security/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var report struct {
		RunID string `json:"runId"`
		Total int    `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if report.Total < 1 {
		t.Errorf("expected at least one finding, got %d", report.Total)
	}
}

func TestHandlers_HandlePatterns(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/patterns", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp PatternsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Total == 0 {
		t.Error("expected at least one pattern")
	}

	if len(resp.Patterns) != resp.Total {
		t.Errorf("total %d does not match %d patterns", resp.Total, len(resp.Patterns))
	}
}

func TestHandlers_HandleSnapshots_Disabled(t *testing.T) {
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/snapshots", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if errResp.Code != "SNAPSHOTS_DISABLED" {
		t.Errorf("expected code SNAPSHOTS_DISABLED, got %q", errResp.Code)
	}
}

func TestHandlers_HandleSnapshots(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(DefaultServiceConfig(), WithStore(st), WithServiceLogger(quietLogger()))
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/snapshots", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp SnapshotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Total != 0 {
		t.Errorf("expected empty store, got %d snapshots", resp.Total)
	}
}

func TestHandlers_RequestIDEcho(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/patterns", nil)
	req.Header.Set("X-Request-ID", "test-request-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "test-request-123" {
		t.Errorf("expected request ID to be echoed, got %q", got)
	}

	// Without the header a request ID is generated.
	req2, _ := http.NewRequest("GET", "/v1/patterns", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	if w2.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request ID")
	}
}
