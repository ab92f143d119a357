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
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".atlas", "atlas.yaml")

	// Create the config
	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	// Verify the file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	// Read and verify the config
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg AtlasConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	// Verify some defaults
	if cfg.Judge.Type != "ollama" {
		t.Errorf("Judge.Type = %q, want %q", cfg.Judge.Type, "ollama")
	}
	if cfg.Service.Port != 8080 {
		t.Errorf("Service.Port = %d, want 8080", cfg.Service.Port)
	}
	if cfg.Service.MaxProjectFiles != 10000 {
		t.Errorf("Service.MaxProjectFiles = %d, want 10000", cfg.Service.MaxProjectFiles)
	}
	if cfg.Security.FilterThreshold != 0.85 {
		t.Errorf("Security.FilterThreshold = %v, want 0.85", cfg.Security.FilterThreshold)
	}
	if cfg.Security.MaxAIValidations != 50 {
		t.Errorf("Security.MaxAIValidations = %d, want 50", cfg.Security.MaxAIValidations)
	}
}

// TestCreateDefault_DirectoryCreation verifies directory is created.
func TestCreateDefault_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()

	// Use a nested path
	configPath := filepath.Join(tempDir, "deep", "nested", "path", "atlas.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed with nested path: %v", err)
	}

	// Verify the directories were created
	dirPath := filepath.Dir(configPath)
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		t.Fatal("nested directories were not created")
	}
}

// TestStorePath verifies store path resolution.
func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()

	path := cfg.StorePath()
	if path == "" {
		t.Fatal("StorePath() returned empty path")
	}
	if filepath.Base(path) != "snapshots" {
		t.Errorf("expected snapshots directory, got %q", path)
	}

	cfg.Store.Path = "/var/lib/atlas/snaps"
	if got := cfg.StorePath(); got != "/var/lib/atlas/snaps" {
		t.Errorf("explicit path not honored, got %q", got)
	}
}

// TestConfigRoundTrip verifies a config survives marshal/unmarshal.
func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.AllowedRoots = []string{"/srv/projects"}
	cfg.Judge.Type = "none"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded AtlasConfig
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(decoded.Service.AllowedRoots) != 1 || decoded.Service.AllowedRoots[0] != "/srv/projects" {
		t.Errorf("allowed roots did not round-trip: %+v", decoded.Service.AllowedRoots)
	}
	if decoded.Judge.Type != "none" {
		t.Errorf("judge type did not round-trip: %q", decoded.Judge.Type)
	}
}
