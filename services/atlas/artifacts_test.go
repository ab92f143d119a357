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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArtifacts(t *testing.T) {
	root := writeProject(t, mvcFixture())
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, WriteArtifacts(dir, result))

	// The full bundle plus the sections this run produced.
	for _, name := range []string{ArtifactAnalysis, ArtifactArchitecture, ArtifactFlows} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}

	// Security was not requested, so no security.json.
	_, err = os.Stat(filepath.Join(dir, ArtifactSecurity))
	assert.True(t, os.IsNotExist(err), "security.json should not exist")

	data, err := os.ReadFile(filepath.Join(dir, ArtifactAnalysis))
	require.NoError(t, err)

	var decoded AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.Meta.RunID, decoded.Meta.RunID)
	assert.Equal(t, result.Stats.Files, decoded.Stats.Files)
	assert.Len(t, decoded.Files, result.Stats.Files)
}

func TestWriteArtifacts_SkippedSections(t *testing.T) {
	result := &AnalysisResult{
		Meta:  AnalysisMeta{RunID: "run-1", Version: ServiceVersion},
		Stats: AnalysisStats{Files: 0},
	}

	dir := t.TempDir()
	require.NoError(t, WriteArtifacts(dir, result))

	_, err := os.Stat(filepath.Join(dir, ArtifactAnalysis))
	assert.NoError(t, err)

	for _, name := range []string{ArtifactArchitecture, ArtifactFlows, ArtifactSecurity} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s should not exist for a run without that section", name)
	}
}

func TestWriteArtifacts_NilResult(t *testing.T) {
	err := WriteArtifacts(t.TempDir(), nil)
	require.Error(t, err)
}
