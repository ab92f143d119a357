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

import "errors"

// Sentinel errors for the Atlas analysis service.
var (
	// ErrRelativePath indicates the project root was a relative path.
	ErrRelativePath = errors.New("project root must be absolute path")

	// ErrPathTraversal indicates the path contains .. traversal sequences.
	ErrPathTraversal = errors.New("path contains traversal sequences")

	// ErrRootNotAllowed indicates the resolved root is outside the
	// configured allowlist.
	ErrRootNotAllowed = errors.New("project root is not under an allowed root")

	// ErrProjectTooLarge indicates the project exceeds the configured
	// file or byte limits.
	ErrProjectTooLarge = errors.New("project exceeds size limits")

	// ErrAnalysisInProgress indicates another run is already active for
	// this project root.
	ErrAnalysisInProgress = errors.New("analysis already in progress")

	// ErrAnalysisTimeout indicates the run exceeded MaxAnalysisDuration.
	ErrAnalysisTimeout = errors.New("analysis timed out")

	// ErrSnapshotsDisabled indicates no snapshot store is configured.
	ErrSnapshotsDisabled = errors.New("snapshot store not configured")
)
