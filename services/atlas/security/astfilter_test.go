// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package security

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
)

// evalLines is a shorthand for running one finding through the stage-2
// checks against literal source lines.
func evalLines(t *testing.T, v *Vulnerability, lang scanner.Language, lines ...string) filterDecision {
	t.Helper()
	f := NewASTFilter(0, 0, nil)
	return f.evaluate(v, lines, commentedLines(lines, lang))
}

// TestEvaluateCommentedCode verifies commented-out sinks are
// classified first.
func TestEvaluateCommentedCode(t *testing.T) {
	v := &Vulnerability{File: "src/app.js", Line: 1, Category: CategorySQLInjection}
	d := evalLines(t, v, scanner.LanguageJavaScript,
		`// db.execute("DELETE FROM users WHERE id=" + req.query.id);`)
	assert.True(t, d.falsePositive)
	assert.Equal(t, "commented-out code", d.reason)
	assert.InDelta(t, 0.95, d.confidence, 0.001)
}

// TestEvaluateLoggingLine verifies sink text inside an output
// statement is classified as noise.
func TestEvaluateLoggingLine(t *testing.T) {
	v := &Vulnerability{File: "app/loader.py", Line: 1, Category: CategoryDeserialization}
	d := evalLines(t, v, scanner.LanguagePython,
		`print("pickle.loads is unsafe, use json instead")`)
	assert.True(t, d.falsePositive)
	assert.Equal(t, "logging statement", d.reason)
	assert.InDelta(t, 0.9, d.confidence, 0.001)
}

// TestEvaluateSuppressionComment verifies nosec-style annotations on
// the line above stand the filter down.
func TestEvaluateSuppressionComment(t *testing.T) {
	v := &Vulnerability{File: "app/tasks.py", Line: 2, Category: CategoryCommandInjection}
	d := evalLines(t, v, scanner.LanguagePython,
		`# nosec: constant argument list`,
		`subprocess.run(cmd)`)
	assert.True(t, d.falsePositive)
	assert.Equal(t, "suppression comment", d.reason)
}

// TestEvaluateTestFile verifies test fixtures are filtered by path
// convention.
func TestEvaluateTestFile(t *testing.T) {
	v := &Vulnerability{File: "src/__tests__/routes.test.js", Line: 1, Category: CategorySQLInjection}
	d := evalLines(t, v, scanner.LanguageJavaScript,
		`db.execute("SELECT * FROM users WHERE id=" + req.query.id);`)
	assert.True(t, d.falsePositive)
	assert.Equal(t, "test file", d.reason)
	assert.InDelta(t, 0.85, d.confidence, 0.001)
}

// TestEvaluateStaleLocation verifies a finding pointing past the file
// end is kept rather than judged.
func TestEvaluateStaleLocation(t *testing.T) {
	v := &Vulnerability{File: "src/app.js", Line: 99, Category: CategorySQLInjection}
	d := evalLines(t, v, scanner.LanguageJavaScript, `doWork();`)
	assert.False(t, d.falsePositive)
	assert.Nil(t, d.trace)
}

// TestIsParameterized verifies the placeholder styles, including
// arguments wrapping onto the next line.
func TestIsParameterized(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  bool
	}{
		{"positional question mark", []string{`db.execute("SELECT * FROM t WHERE id = ?", [id]);`}, true},
		{"postgres ordinal", []string{`db.query("SELECT * FROM t WHERE id = $1", [id]);`}, true},
		{"psycopg named", []string{`cur.execute("SELECT * FROM t WHERE name = %(name)s", row)`}, true},
		{"named bind", []string{`db.execute("SELECT * FROM t WHERE id = :id", params)`}, true},
		{"wrapped arguments", []string{`db.execute(`, `  "SELECT * FROM t WHERE id = ?", [id]);`}, true},
		{"string concatenation", []string{`db.execute("SELECT * FROM t WHERE id=" + id);`}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isParameterized(tt.lines, 0))
		})
	}
}

// TestEvaluateSanitizer verifies the two sanitizer outcomes: a shared
// variable clears the removal threshold, an unrelated sanitizer stays
// below it.
func TestEvaluateSanitizer(t *testing.T) {
	t.Run("same variable removed", func(t *testing.T) {
		v := &Vulnerability{
			File: "src/render.js", Line: 2, Column: 8,
			Category: CategoryXSS, TaintSource: string(TaintRequestBody),
		}
		d := evalLines(t, v, scanner.LanguageJavaScript,
			`const content = sanitizeHtml(req.body.content);`,
			`element.innerHTML = content;`)
		assert.True(t, d.falsePositive)
		assert.Equal(t, "sanitizer applied to content", d.reason)
		assert.InDelta(t, 0.85, d.confidence, 0.001)
	})

	t.Run("unrelated sanitizer kept", func(t *testing.T) {
		v := &Vulnerability{
			File: "src/render.js", Line: 2, Column: 8,
			Category: CategoryXSS, TaintSource: string(TaintRequestBody),
		}
		d := evalLines(t, v, scanner.LanguageJavaScript,
			`const banner = sanitizeHtml(footer);`,
			`element.innerHTML = req.body.content;`)
		assert.True(t, d.falsePositive)
		assert.Equal(t, "sanitizer in preceding lines", d.reason)
		assert.InDelta(t, 0.8, d.confidence, 0.001)
	})
}

// TestTraceTaint verifies the declaration-to-sink walk.
func TestTraceTaint(t *testing.T) {
	t.Run("direct use confirmed", func(t *testing.T) {
		trace := traceTaint([]string{
			`db.execute("SELECT * FROM t WHERE id=" + req.query.id);`,
		}, 0)
		require.NotNil(t, trace)
		assert.True(t, trace.ReachesSink)
		assert.Zero(t, trace.SanitizedAt)
		assert.Equal(t, "req.query", trace.Variable)
	})

	t.Run("variable flow confirmed", func(t *testing.T) {
		trace := traceTaint([]string{
			`const userId = req.query.id;`,
			`const limit = 50;`,
			`db.execute("SELECT * FROM t WHERE id=" + userId);`,
		}, 2)
		require.NotNil(t, trace)
		assert.Equal(t, "userId", trace.Variable)
		assert.Equal(t, 1, trace.DeclaredAt)
		assert.Equal(t, []int{3}, trace.Usages)
		assert.True(t, trace.ReachesSink)
		assert.Zero(t, trace.SanitizedAt)
	})

	t.Run("sanitized flow not confirmed", func(t *testing.T) {
		trace := traceTaint([]string{
			`let name = req.body.name;`,
			`name = escapeHtml(name);`,
			`element.innerHTML = name;`,
		}, 2)
		require.NotNil(t, trace)
		assert.Equal(t, "name", trace.Variable)
		assert.Equal(t, 2, trace.SanitizedAt)
		assert.True(t, trace.ReachesSink)
	})

	t.Run("no declaration found", func(t *testing.T) {
		trace := traceTaint([]string{
			`doWork();`,
			`db.execute(q);`,
		}, 1)
		assert.Nil(t, trace)
	})
}

// TestFilterEndToEnd runs scanner output through the filter and checks
// the removal audit.
func TestFilterEndToEnd(t *testing.T) {
	scan, rc := writeTree(t, map[string]string{
		"src/app.js": strings.Join([]string{
			`const id = req.query.id;`,
			`db.execute("SELECT * FROM users WHERE id=" + id);`,
			``,
			`// db.execute("DELETE FROM users WHERE id=" + req.query.id);`,
			``,
			`db.execute("SELECT * FROM users WHERE id = ?", [req.query.id]);`,
		}, "\n"),
	})
	found := NewBaseScanner(3, nil).Scan(context.Background(), scan, rc)
	require.Len(t, found, 3)

	f := NewASTFilter(0, 0, nil)
	result := f.Filter(context.Background(), found, rc)

	require.Len(t, result.Kept, 1)
	kept := result.Kept[0]
	assert.Equal(t, 2, kept.Line)
	require.NotNil(t, kept.Trace)
	assert.True(t, kept.Trace.ReachesSink)
	assert.InDelta(t, 0.8, kept.Confidence, 0.001)

	require.Len(t, result.Removed, 2)
	reasons := map[string]FilterMethod{}
	for _, r := range result.Removed {
		reasons[r.Reason] = r.Method
	}
	assert.Equal(t, FilterMethodAST, reasons["commented-out code"])
	assert.Equal(t, FilterMethodAST, reasons["parameterized query"])
}

// TestFilterIdempotent verifies re-running the filter on its own kept
// set removes nothing further.
func TestFilterIdempotent(t *testing.T) {
	scan, rc := writeTree(t, map[string]string{
		"src/app.js": strings.Join([]string{
			`const id = req.query.id;`,
			`db.execute("SELECT * FROM users WHERE id=" + id);`,
			``,
			`// db.execute("DELETE FROM users WHERE id=" + req.query.id);`,
			``,
			`db.execute("SELECT * FROM users WHERE id = ?", [req.query.id]);`,
		}, "\n"),
	})
	found := NewBaseScanner(3, nil).Scan(context.Background(), scan, rc)

	f := NewASTFilter(0, 0, nil)
	first := f.Filter(context.Background(), found, rc)
	second := f.Filter(context.Background(), first.Kept, rc)

	assert.Empty(t, second.Removed)
	assert.Len(t, second.Kept, len(first.Kept))
}

// TestFilterKeepsUnreadable verifies a finding whose file vanished is
// kept as-is.
func TestFilterKeepsUnreadable(t *testing.T) {
	rc := newRunContext(t.TempDir())
	vulns := []Vulnerability{{File: "gone.js", Line: 1, Category: CategorySQLInjection}}

	result := NewASTFilter(0, 0, nil).Filter(context.Background(), vulns, rc)
	assert.Len(t, result.Kept, 1)
	assert.Empty(t, result.Removed)
}

// TestFilterCancellation verifies cancellation keeps the unexamined
// remainder instead of dropping it.
func TestFilterCancellation(t *testing.T) {
	rc := newRunContext(t.TempDir())
	vulns := []Vulnerability{
		{File: "a.js", Line: 1},
		{File: "b.js", Line: 1},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewASTFilter(0, 0, nil).Filter(ctx, vulns, rc)
	assert.Len(t, result.Kept, 2)
	assert.Empty(t, result.Removed)
}

// TestCommentedLines verifies line and block comment tracking.
func TestCommentedLines(t *testing.T) {
	t.Run("c family", func(t *testing.T) {
		got := commentedLines([]string{
			`// single`,
			`code();`,
			`/* block start`,
			`still inside`,
			`end */`,
			`after();`,
			`/* one line */`,
		}, scanner.LanguageJavaScript)
		assert.Equal(t, []bool{true, false, true, true, true, false, true}, got)
	})

	t.Run("python", func(t *testing.T) {
		got := commentedLines([]string{
			`# comment`,
			`x = 1`,
			`"""docstring`,
			`more text`,
			`"""`,
			`y = 2`,
		}, scanner.LanguagePython)
		assert.Equal(t, []bool{true, false, true, true, true, false}, got)
	})
}

// TestIsTestFile verifies the path conventions across ecosystems.
func TestIsTestFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/app.test.ts", true},
		{"src/app.spec.js", true},
		{"pkg/store/store_test.go", true},
		{"tests/helper.py", true},
		{"src/__tests__/routes.js", true},
		{"test_scanner.py", true},
		{"src/conftest.py", true},
		{"src/routes.js", false},
		{"src/latest.js", false},
		{"src/protest/banner.js", false},
		{"src/contest_results.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTestFile(tt.path))
		})
	}
}
