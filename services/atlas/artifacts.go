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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names written by WriteArtifacts.
const (
	ArtifactAnalysis     = "analysis.json"
	ArtifactArchitecture = "architecture.json"
	ArtifactFlows        = "flows.json"
	ArtifactSecurity     = "security.json"
)

// WriteArtifacts writes the bundle to dir for downstream renderers:
// analysis.json holds the full bundle, and architecture.json,
// flows.json, and security.json hold their sections on their own.
// Sections the run skipped produce no file. The directory is created
// if missing.
func WriteArtifacts(dir string, result *AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("nil analysis result")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, ArtifactAnalysis), result); err != nil {
		return err
	}
	if result.Architecture != nil {
		if err := writeJSON(filepath.Join(dir, ArtifactArchitecture), result.Architecture); err != nil {
			return err
		}
	}
	if result.Flows != nil {
		if err := writeJSON(filepath.Join(dir, ArtifactFlows), result.Flows); err != nil {
			return err
		}
	}
	if result.Security != nil {
		if err := writeJSON(filepath.Join(dir, ArtifactSecurity), result.Security); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
