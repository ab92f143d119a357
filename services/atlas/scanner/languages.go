// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"path/filepath"
	"strings"
)

// Language identifies the source language of a scanned file.
type Language string

// Supported languages.
const (
	LanguageUnknown    Language = ""
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageRust       Language = "rust"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
)

// extensionLanguages maps file extensions to their language.
var extensionLanguages = map[string]Language{
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".mts":  LanguageTypeScript,
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".cjs":  LanguageJavaScript,
	".py":   LanguagePython,
	".pyi":  LanguagePython,
	".rs":   LanguageRust,
	".go":   LanguageGo,
	".java": LanguageJava,
}

// DetectLanguage returns the language for a file path based on its
// extension, or LanguageUnknown for unrecognized extensions.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionLanguages[ext]
}

// String returns the language name.
func (l Language) String() string {
	if l == LanguageUnknown {
		return "unknown"
	}
	return string(l)
}

// IndentBased reports whether the language delimits blocks by
// indentation rather than braces.
func (l Language) IndentBased() bool {
	return l == LanguagePython
}

// SupportedExtensions returns the recognized file extensions, for use
// in default include globs.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		exts = append(exts, ext)
	}
	return exts
}
