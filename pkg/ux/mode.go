// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

var (
	modeMu sync.RWMutex
	plain  = detectPlain()
)

// detectPlain honors the NO_COLOR convention and falls back to plain
// output whenever stdout is not a terminal, so piped and redirected
// output stays greppable.
func detectPlain() bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	fd := os.Stdout.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// SetPlain overrides detection. The CLI maps --plain onto this.
func SetPlain(v bool) {
	modeMu.Lock()
	defer modeMu.Unlock()
	plain = v
}

// IsPlain reports whether styling is disabled.
func IsPlain() bool {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return plain
}
