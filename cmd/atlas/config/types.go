// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
)

type AtlasConfig struct {
	// Service: HTTP service limits and allowlist
	Service ServiceConfig `yaml:"service"`

	// Store: snapshot store location
	Store StoreConfig `yaml:"store"`

	// Telemetry: trace and metric exporters
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Judge: the model backend behind the AI validation stages
	Judge JudgeConfig `yaml:"judge"`

	// Security: funnel thresholds and stage-3 cost controls
	Security SecurityConfig `yaml:"security"`
}

type ServiceConfig struct {
	Port             int      `yaml:"port"`               // e.g. 8080
	AnalysisTimeoutS int      `yaml:"analysis_timeout_s"` // e.g. 120
	MaxProjectFiles  int      `yaml:"max_project_files"`  // e.g. 10000
	MaxProjectMB     int      `yaml:"max_project_mb"`     // e.g. 100
	SnapshotKeep     int      `yaml:"snapshot_keep"`      // e.g. 20
	AllowedRoots     []string `yaml:"allowed_roots"`      // empty = any absolute path
}

type StoreConfig struct {
	// Path is the badger directory. Empty falls back to
	// ~/.atlas/snapshots.
	Path string `yaml:"path,omitempty"`
}

type TelemetryConfig struct {
	// TraceExporter can be "otlp", "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter can be "prometheus", "stdout", or "none".
	MetricExporter string `yaml:"metric_exporter"`

	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type JudgeConfig struct {
	// Type can be "ollama", "openai", or "none".
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type SecurityConfig struct {
	FilterThreshold   float64 `yaml:"filter_threshold"`    // stage-2 auto-removal confidence, e.g. 0.85
	AIRemoveThreshold float64 `yaml:"ai_remove_threshold"` // stage-3 false-positive removal confidence, e.g. 0.80
	MaxAIValidations  int     `yaml:"max_ai_validations"`  // stage-3 cost cap, e.g. 50
	BatchSize         int     `yaml:"batch_size"`          // judge requests per batch
	BatchDelayS       int     `yaml:"batch_delay_s"`       // pause between batches
}

// StorePath resolves the snapshot directory, falling back to
// ~/.atlas/snapshots when unset.
func (c *AtlasConfig) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".atlas", "snapshots")
	}
	return filepath.Join(home, ".atlas", "snapshots")
}

func DefaultConfig() AtlasConfig {
	return AtlasConfig{
		Service: ServiceConfig{
			Port:             8080,
			AnalysisTimeoutS: 120,
			MaxProjectFiles:  10000,
			MaxProjectMB:     100,
			SnapshotKeep:     20,
			AllowedRoots:     []string{},
		},
		Store: StoreConfig{},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRate:     1.0,
		},
		Judge: JudgeConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "glm-4.7-flash",
		},
		Security: SecurityConfig{
			FilterThreshold:   0.85,
			AIRemoveThreshold: 0.80,
			MaxAIValidations:  50,
			BatchSize:         5,
			BatchDelayS:       2,
		},
	}
}
