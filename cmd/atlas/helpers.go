// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianAtlas/cmd/atlas/config"
	"github.com/AleutianAI/AleutianAtlas/services/atlas"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/security"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/store"
	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

// Exit codes shared by all commands.
const (
	exitSuccess  = 0
	exitFindings = 1
	exitError    = 2
)

// resolveProjectRoot returns the absolute project root from the first
// positional argument, defaulting to the working directory.
func resolveProjectRoot(args []string) (string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	return abs, nil
}

// serviceConfigFromGlobal maps the loaded YAML config onto service
// limits, keeping service defaults for anything unset.
func serviceConfigFromGlobal() atlas.ServiceConfig {
	cfg := atlas.DefaultServiceConfig()
	svc := config.Global.Service

	if svc.AnalysisTimeoutS > 0 {
		cfg.MaxAnalysisDuration = time.Duration(svc.AnalysisTimeoutS) * time.Second
	}
	if svc.MaxProjectFiles > 0 {
		cfg.MaxProjectFiles = svc.MaxProjectFiles
	}
	if svc.MaxProjectMB > 0 {
		cfg.MaxProjectSize = int64(svc.MaxProjectMB) * 1024 * 1024
	}
	if svc.SnapshotKeep > 0 {
		cfg.SnapshotKeep = svc.SnapshotKeep
	}
	cfg.AllowedRoots = svc.AllowedRoots
	return cfg
}

// securityOptionsFromGlobal maps the config's security section onto
// funnel tuning, keeping stage defaults for anything unset.
func securityOptionsFromGlobal() security.PipelineOptions {
	opts := security.DefaultPipelineOptions()
	sec := config.Global.Security

	if sec.FilterThreshold > 0 {
		opts.FilterThreshold = sec.FilterThreshold
	}
	if sec.AIRemoveThreshold > 0 {
		opts.Validator.RemoveThreshold = sec.AIRemoveThreshold
	}
	if sec.MaxAIValidations > 0 {
		opts.Validator.MaxVulns = sec.MaxAIValidations
	}
	if sec.BatchSize > 0 {
		opts.Validator.BatchSize = sec.BatchSize
	}
	if sec.BatchDelayS > 0 {
		opts.Validator.BatchDelay = time.Duration(sec.BatchDelayS) * time.Second
	}
	return opts
}

// newJudge builds the LLM client for AI validation stages. Returns nil
// when the judge is disabled, which drops those stages to heuristics.
func newJudge(noLLM bool) llm.LLMClient {
	if noLLM {
		return nil
	}
	judge := config.Global.Judge
	switch judge.Type {
	case "ollama":
		if judge.BaseURL == "" {
			return nil
		}
		return llm.NewOllamaClientFor(judge.BaseURL, judge.Model)
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil
		}
		return llm.NewOpenAIClientFor(key, judge.Model)
	default:
		return nil
	}
}

// openSnapshotStore opens the configured badger store. The caller must
// Close it.
func openSnapshotStore() (*store.Store, error) {
	cfg := store.DefaultConfig()
	cfg.Path = config.Global.StorePath()
	return store.Open(cfg)
}

// newAnalysisService wires a service from global config. withStore
// controls whether the snapshot store is opened; the returned cleanup
// is always safe to call.
func newAnalysisService(noLLM, withStore bool) (*atlas.Service, func(), error) {
	opts := []atlas.Option{
		atlas.WithSecurityOptions(securityOptionsFromGlobal()),
	}

	if judge := newJudge(noLLM); judge != nil {
		opts = append(opts, atlas.WithJudge(judge))
	}

	cleanup := func() {}
	if withStore {
		st, err := openSnapshotStore()
		if err != nil {
			return nil, cleanup, fmt.Errorf("open snapshot store: %w", err)
		}
		opts = append(opts, atlas.WithStore(st))
		cleanup = func() { _ = st.Close() }
	}

	return atlas.NewService(serviceConfigFromGlobal(), opts...), cleanup, nil
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(exitError)
	}
}

// outputCommandError reports a failed command in the requested format.
func outputCommandError(jsonOut bool, msg string, err error) {
	if jsonOut {
		outputJSON(map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("%s: %v", msg, err),
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
