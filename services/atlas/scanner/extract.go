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
	"regexp"
	"strings"
	"unicode"
)

// ExtractFile extracts imports, exports, types, functions, and
// top-level variables from raw file content.
//
// Description:
//
//	This is a structural heuristic, not a parser. Function and class
//	bodies are delimited by brace-balance counting for brace languages
//	and indentation comparison for Python. The heuristic is linear in
//	file size, language-agnostic, and accepts bounded recall: deeply
//	unusual formatting can produce wrong boundaries, and downstream
//	confidence thresholds are tuned against exactly this error profile.
//
// Inputs:
//
//	path - File path relative to the scan root (stored on the result).
//	lang - Detected language. Unsupported languages produce a FileInfo
//	       with line/size metadata only.
//	content - Raw file content.
//
// Outputs:
//
//	*FileInfo - The extracted record. Never nil.
func ExtractFile(path string, lang Language, content string) *FileInfo {
	lines := strings.Split(content, "\n")

	info := &FileInfo{
		Path:     path,
		Language: lang,
		Lines:    len(lines),
		Size:     int64(len(content)),
	}

	syn := syntaxFor(lang)
	if syn == nil {
		return info
	}

	depths := braceDepths(lines, lang)

	info.Imports = extractImports(syn, lang, lines)
	info.Classes = extractClasses(syn, lang, lines, depths)

	var impls []implBlock
	if lang == LanguageRust {
		impls = findImplBlocks(lines, depths)
		mergeImplTraits(info.Classes, impls)
	}

	info.Functions = extractFunctions(syn, lang, lines, depths, info.Classes, impls)
	info.Variables = extractVariables(syn, lang, lines, depths)
	collectAttributes(lang, lines, depths, info.Classes)
	info.Exports = extractExports(syn, lang, lines, info)

	return info
}

// =============================================================================
// Structural heuristics
// =============================================================================

// braceDepths returns the brace nesting depth at the start of each
// line, with one extra trailing entry for the depth after the final
// line. String literals and comments are skipped with a small
// character-level state machine; this is best-effort, not a lexer.
func braceDepths(lines []string, lang Language) []int {
	depths := make([]int, len(lines)+1)
	depth := 0
	inBlockComment := false

	lineCommentMark, blockOpen, blockClose := commentMarkers(lang)

	for i, line := range lines {
		depths[i] = depth

		var inString byte
		escaped := false
		j := 0
		for j < len(line) {
			c := line[j]

			if inBlockComment {
				if blockClose != "" && strings.HasPrefix(line[j:], blockClose) {
					inBlockComment = false
					j += len(blockClose)
					continue
				}
				j++
				continue
			}

			if inString != 0 {
				if escaped {
					escaped = false
				} else if c == '\\' {
					escaped = true
				} else if c == inString {
					inString = 0
				}
				j++
				continue
			}

			if lineCommentMark != "" && strings.HasPrefix(line[j:], lineCommentMark) {
				break
			}
			if blockOpen != "" && strings.HasPrefix(line[j:], blockOpen) {
				inBlockComment = true
				j += len(blockOpen)
				continue
			}

			switch c {
			case '"', '\'', '`':
				inString = c
			case '{':
				depth++
			case '}':
				if depth > 0 {
					depth--
				}
			}
			j++
		}
	}
	depths[len(lines)] = depth
	return depths
}

// commentMarkers returns the line-comment marker and block-comment
// delimiters for a language.
func commentMarkers(lang Language) (line, blockOpen, blockClose string) {
	switch lang {
	case LanguagePython:
		return "#", `"""`, `"""`
	case LanguageGo, LanguageRust, LanguageJava, LanguageTypeScript, LanguageJavaScript:
		return "//", "/*", "*/"
	default:
		return "", "", ""
	}
}

// findBraceEnd returns the index of the line on which the block opened
// at line start closes, based on the precomputed depth table. Returns
// start for single-line blocks and the last line when the block never
// closes (truncated or malformed source).
func findBraceEnd(lines []string, depths []int, start int) int {
	base := depths[start]
	for i := start; i < len(lines); i++ {
		if depths[i+1] <= base && strings.Contains(lines[i], "{") {
			return i
		}
		if i > start && depths[i+1] <= base {
			return i
		}
	}
	return len(lines) - 1
}

// findIndentEnd returns the index of the last line belonging to the
// indentation block opened by the statement at line start.
func findIndentEnd(lines []string, start int) int {
	base := indentOf(lines[start])
	end := start
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if indentOf(lines[i]) <= base {
			break
		}
		end = i
	}
	return end
}

// indentOf counts leading whitespace columns (tab counts as one).
func indentOf(line string) int {
	n := 0
	for _, c := range line {
		if c == ' ' || c == '\t' {
			n++
			continue
		}
		break
	}
	return n
}

// bodyEnd delimits the body of a declaration starting at line i.
func bodyEnd(lang Language, lines []string, depths []int, i int) int {
	if lang.IndentBased() {
		return findIndentEnd(lines, i)
	}
	return findBraceEnd(lines, depths, i)
}

// =============================================================================
// Imports
// =============================================================================

var goImportBlockOpen = regexp.MustCompile(`^\s*import\s*\(\s*$`)
var goImportBlockEntry = regexp.MustCompile(`^\s*(?:(\w+|\.)\s+)?"([^"]+)"`)

// extractImports runs the ordered import table over each line.
// Go import blocks are handled statefully since the table is
// line-oriented.
func extractImports(syn *languageSyntax, lang Language, lines []string) []Import {
	var imports []Import
	inGoBlock := false

	for i, line := range lines {
		if lang == LanguageGo {
			if inGoBlock {
				if strings.TrimSpace(line) == ")" {
					inGoBlock = false
					continue
				}
				if m := goImportBlockEntry.FindStringSubmatch(line); m != nil {
					imports = append(imports, Import{
						Path:       m[2],
						Alias:      m[1],
						IsRelative: false,
						Line:       i + 1,
					})
				}
				continue
			}
			if goImportBlockOpen.MatchString(line) {
				inGoBlock = true
				continue
			}
		}

		for _, im := range syn.imports {
			m := im.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			imp := Import{
				Path: m[im.pathGroup],
				Line: i + 1,
			}
			if im.clauseGroup > 0 && im.clauseGroup < len(m) {
				imp.Names, imp.Alias = parseImportClause(m[im.clauseGroup])
				// Python "from x import a" binds a name, not a default
				// alias; the single-name-is-default rule is TS/JS only.
				if lang == LanguagePython && imp.Alias != "" && len(imp.Names) == 0 {
					imp.Names = []string{imp.Alias}
					imp.Alias = ""
				}
			}
			if im.aliasGroup > 0 && im.aliasGroup < len(m) && m[im.aliasGroup] != "" {
				imp.Alias = m[im.aliasGroup]
			}
			imp.IsRelative = isRelativeImport(lang, imp.Path, line)
			imports = append(imports, imp)
			break
		}
	}
	return imports
}

// parseImportClause splits a binding clause into imported names and an
// alias. Handles "{a, b as c}", "* as ns", "Default", and
// "Default, {a, b}".
func parseImportClause(clause string) (names []string, alias string) {
	clause = strings.TrimSpace(clause)
	if clause == "" || clause == "*" {
		return nil, ""
	}

	if strings.HasPrefix(clause, "* as ") {
		return nil, strings.TrimSpace(strings.TrimPrefix(clause, "* as "))
	}

	open := strings.Index(clause, "{")
	if open >= 0 {
		closeIdx := strings.Index(clause, "}")
		if closeIdx < 0 {
			closeIdx = len(clause)
		}
		inner := clause[open+1 : closeIdx]
		for _, part := range strings.Split(inner, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			// "orig as local" binds local
			if idx := strings.Index(part, " as "); idx >= 0 {
				part = strings.TrimSpace(part[idx+4:])
			}
			names = append(names, part)
		}
		// default binding before the brace: "Default, {a}"
		if open > 0 {
			def := strings.TrimSuffix(strings.TrimSpace(clause[:open]), ",")
			def = strings.TrimSpace(def)
			if def != "" {
				alias = def
			}
		}
		return names, alias
	}

	// Plain clause: a default import or a comma list of names.
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, " as "); idx >= 0 {
			part = strings.TrimSpace(part[idx+4:])
		}
		names = append(names, part)
	}
	if len(names) == 1 {
		return nil, names[0]
	}
	return names, ""
}

// isRelativeImport reports whether an import path refers to a file
// inside the scanned tree rather than an external package.
func isRelativeImport(lang Language, path, line string) bool {
	switch lang {
	case LanguageTypeScript, LanguageJavaScript:
		return strings.HasPrefix(path, ".")
	case LanguagePython:
		return strings.HasPrefix(path, ".")
	case LanguageRust:
		if strings.HasPrefix(path, "crate") || strings.HasPrefix(path, "super") || strings.HasPrefix(path, "self") {
			return true
		}
		// mod declarations pull in sibling files
		return strings.Contains(line, "mod ")
	default:
		return false
	}
}

// =============================================================================
// Classes
// =============================================================================

// extractClasses runs the ordered class table over top-level lines.
func extractClasses(syn *languageSyntax, lang Language, lines []string, depths []int) []ClassInfo {
	var classes []ClassInfo

	for i, line := range lines {
		if !lang.IndentBased() && depths[i] != 0 {
			continue
		}
		if lang.IndentBased() && indentOf(line) != 0 {
			continue
		}

		for _, cm := range syn.classDecls {
			m := cm.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			ci := ClassInfo{
				Name:      m[cm.nameGroup],
				Kind:      cm.kind,
				StartLine: i + 1,
				EndLine:   i + 1,
			}
			if !cm.bodyless {
				ci.EndLine = bodyEnd(lang, lines, depths, i) + 1
			}
			if cm.extendsGroup > 0 && cm.extendsGroup < len(m) && m[cm.extendsGroup] != "" {
				if lang == LanguagePython || cm.kind == "interface" {
					// Python bases and interface extends are comma lists.
					for _, base := range strings.Split(m[cm.extendsGroup], ",") {
						base = strings.TrimSpace(base)
						if base == "" {
							continue
						}
						if ci.Extends == "" {
							ci.Extends = base
						} else {
							ci.Implements = append(ci.Implements, base)
						}
					}
				} else {
					ci.Extends = strings.TrimSpace(m[cm.extendsGroup])
				}
			}
			if cm.implementsGroup > 0 && cm.implementsGroup < len(m) && m[cm.implementsGroup] != "" {
				for _, impl := range strings.Split(m[cm.implementsGroup], ",") {
					impl = strings.TrimSpace(impl)
					if impl != "" {
						ci.Implements = append(ci.Implements, impl)
					}
				}
			}
			ci.Exported = isExportedDecl(lang, ci.Name, line)
			ci.Modifiers = declModifiers(line)
			classes = append(classes, ci)
			break
		}
	}
	return classes
}

// implBlock records one Rust impl block.
type implBlock struct {
	typeName  string
	traitName string
	startLine int
	endLine   int
}

var rustImplRe = regexp.MustCompile(`^\s*impl(?:<[^>]*>)?\s+(?:([\w:]+)(?:<[^>]*>)?\s+for\s+)?([\w:]+)`)

// findImplBlocks locates Rust impl blocks so functions inside them can
// be attributed to their type.
func findImplBlocks(lines []string, depths []int) []implBlock {
	var impls []implBlock
	for i, line := range lines {
		if depths[i] != 0 {
			continue
		}
		m := rustImplRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		impls = append(impls, implBlock{
			typeName:  lastSegment(m[2], "::"),
			traitName: lastSegment(m[1], "::"),
			startLine: i + 1,
			endLine:   findBraceEnd(lines, depths, i) + 1,
		})
	}
	return impls
}

// mergeImplTraits records trait implementations on the matching struct.
func mergeImplTraits(classes []ClassInfo, impls []implBlock) {
	for _, impl := range impls {
		if impl.traitName == "" {
			continue
		}
		for i := range classes {
			if classes[i].Name == impl.typeName {
				classes[i].Implements = append(classes[i].Implements, impl.traitName)
				break
			}
		}
	}
}

// lastSegment returns the final separator-delimited segment of s.
func lastSegment(s, sep string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, sep)
	return parts[len(parts)-1]
}

// =============================================================================
// Functions
// =============================================================================

// extractFunctions runs the ordered function table, delimits bodies,
// and scans each body for call sites and branch points.
func extractFunctions(syn *languageSyntax, lang Language, lines []string, depths []int, classes []ClassInfo, impls []implBlock) []FunctionInfo {
	var funcs []FunctionInfo

	for i, line := range lines {
		if !functionLineEligible(lang, line, depths, i, classes) {
			continue
		}

		for _, re := range syn.functionDecls {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			groups := namedGroups(re, m)
			name := groups["name"]
			if name == "" || controlKeywords[name] {
				continue
			}

			fn := FunctionInfo{
				Name:      name,
				StartLine: i + 1,
				Signature: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "{")),
				Params:    parseParams(lang, groups["params"]),
				Exported:  isExportedDecl(lang, name, line),
				Modifiers: declModifiers(line),
			}
			if groups["async"] != "" {
				fn.Modifiers = appendUniqueModifier(fn.Modifiers, "async")
			}
			if recv := groups["recv"]; recv != "" {
				fn.Class = goReceiverType(recv)
			}

			end := bodyEnd(lang, lines, depths, i)
			fn.EndLine = end + 1

			fn.Class = enclosingTypeName(lang, fn, i+1, classes, impls)
			fn.IsConstructor = isConstructorName(lang, fn.Name, fn.Class)

			body := lines[i:min(end+1, len(lines))]
			fn.Complexity = countComplexity(body)
			fn.Calls = extractCalls(body, i+1, fn.Name)

			funcs = append(funcs, fn)
			break
		}
	}
	return funcs
}

// appendUniqueModifier adds a modifier unless already present.
func appendUniqueModifier(mods []string, mod string) []string {
	for _, m := range mods {
		if m == mod {
			return mods
		}
	}
	return append(mods, mod)
}

// functionLineEligible gates which lines are tried against the
// function table, to keep the loose method pattern from matching
// arbitrary nested code.
func functionLineEligible(lang Language, line string, depths []int, i int, classes []ClassInfo) bool {
	switch lang {
	case LanguageGo:
		return depths[i] == 0
	case LanguageRust:
		return depths[i] <= 1
	case LanguageJava:
		return depths[i] <= 1
	case LanguageTypeScript, LanguageJavaScript:
		if depths[i] == 0 {
			return true
		}
		// Depth 1 lines are eligible only inside a class body, where
		// the method pattern applies.
		return depths[i] == 1 && insideClass(i+1, classes)
	case LanguagePython:
		return strings.Contains(line, "def ")
	default:
		return false
	}
}

// insideClass reports whether a 1-indexed line is inside any class span.
func insideClass(line int, classes []ClassInfo) bool {
	for _, c := range classes {
		if line > c.StartLine && line <= c.EndLine {
			return true
		}
	}
	return false
}

// enclosingTypeName attributes a function to its containing type.
func enclosingTypeName(lang Language, fn FunctionInfo, line int, classes []ClassInfo, impls []implBlock) string {
	if fn.Class != "" {
		return fn.Class
	}
	if lang == LanguageRust {
		for _, impl := range impls {
			if line > impl.startLine && line <= impl.endLine {
				return impl.typeName
			}
		}
		return ""
	}
	for _, c := range classes {
		if c.Kind == "type_alias" {
			continue
		}
		if line > c.StartLine && line <= c.EndLine {
			return c.Name
		}
	}
	return ""
}

// isConstructorName recognizes constructor declarations by convention.
func isConstructorName(lang Language, name, class string) bool {
	switch lang {
	case LanguageTypeScript, LanguageJavaScript:
		return name == "constructor"
	case LanguagePython:
		return name == "__init__"
	case LanguageJava:
		return class != "" && name == class
	case LanguageRust:
		return class != "" && name == "new"
	default:
		return false
	}
}

// goReceiverType extracts the receiver type from a Go receiver clause
// ("s *Server" -> "Server").
func goReceiverType(recv string) string {
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	t := fields[len(fields)-1]
	t = strings.TrimPrefix(t, "*")
	if idx := strings.Index(t, "["); idx > 0 {
		t = t[:idx]
	}
	return t
}

// parseParams extracts parameter names from a raw parameter list.
func parseParams(lang Language, params string) []string {
	params = strings.TrimSpace(params)
	if params == "" {
		return nil
	}

	var names []string
	for _, part := range strings.Split(params, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "..." {
			continue
		}

		switch lang {
		case LanguageJava:
			// "final Map<String, X> name" - name is the last identifier
			ids := paramNameRe.FindAllString(part, -1)
			if len(ids) > 0 {
				names = append(names, ids[len(ids)-1])
			}
		case LanguageRust:
			// "mut name: Type" - name precedes the colon
			head := part
			if idx := strings.Index(part, ":"); idx >= 0 {
				head = part[:idx]
			}
			ids := paramNameRe.FindAllString(head, -1)
			if len(ids) > 0 {
				names = append(names, ids[len(ids)-1])
			}
		default:
			// "name: Type", "name Type", "name=default"
			if id := paramNameRe.FindString(part); id != "" {
				names = append(names, id)
			}
		}
	}
	return names
}

// countComplexity computes the heuristic cyclomatic complexity of a
// body: 1 plus the number of branch keywords and short-circuit
// operators.
func countComplexity(body []string) int {
	complexity := 1
	for _, line := range body {
		complexity += len(complexityWordRe.FindAllString(line, -1))
		complexity += strings.Count(line, "&&")
		complexity += strings.Count(line, "||")
	}
	return complexity
}

// extractCalls scans body lines for call sites, skipping the
// declaration's own name on its first line.
func extractCalls(body []string, startLine int, selfName string) []CallRef {
	type callKey struct {
		name string
		line int
	}
	var calls []CallRef
	seen := make(map[callKey]bool)

	for i, line := range body {
		for _, m := range callSiteRe.FindAllStringSubmatch(line, -1) {
			name := m[2]
			if controlKeywords[name] {
				continue
			}
			if i == 0 && name == selfName {
				continue
			}
			// One call ref per (name, line); repeated calls on the
			// same line collapse.
			key := callKey{name, startLine + i}
			if seen[key] {
				continue
			}
			seen[key] = true
			calls = append(calls, CallRef{
				Name:    name,
				Line:    startLine + i,
				Awaited: m[1] != "",
			})
		}
	}
	return calls
}

// =============================================================================
// Variables and attributes
// =============================================================================

// extractVariables runs the ordered variable table over top-level
// lines. Lines already claimed as arrow functions are skipped.
func extractVariables(syn *languageSyntax, lang Language, lines []string, depths []int) []VariableInfo {
	var vars []VariableInfo

	for i, line := range lines {
		if lang.IndentBased() {
			if indentOf(line) != 0 {
				continue
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") ||
				strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async ") ||
				strings.HasPrefix(trimmed, "class ") || strings.HasPrefix(trimmed, "import ") ||
				strings.HasPrefix(trimmed, "from ") || strings.HasPrefix(trimmed, "@") {
				continue
			}
		} else if depths[i] != 0 {
			continue
		}

		if isArrowFunctionLine(lang, line) {
			continue
		}

		for _, re := range syn.variableDecls {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			groups := namedGroups(re, m)
			name := groups["name"]
			if name == "" || name == "__all__" || controlKeywords[name] {
				continue
			}

			vars = append(vars, VariableInfo{
				Name:     name,
				Line:     i + 1,
				Constant: isConstantDecl(lang, name, groups["kw"], line),
				DataType: strings.TrimSpace(groups["type"]),
				Exported: isExportedDecl(lang, name, line),
			})
			break
		}
	}
	return vars
}

// isArrowFunctionLine reports whether a TS/JS line declares an arrow
// function (captured by the function table, not the variable table).
func isArrowFunctionLine(lang Language, line string) bool {
	if lang != LanguageTypeScript && lang != LanguageJavaScript {
		return false
	}
	return strings.Contains(line, "=>")
}

// isConstantDecl decides whether a declaration is constant-like.
func isConstantDecl(lang Language, name, keyword, line string) bool {
	switch lang {
	case LanguageTypeScript, LanguageJavaScript:
		return keyword == "const"
	case LanguagePython:
		return name == strings.ToUpper(name) && strings.ContainsFunc(name, unicode.IsUpper)
	case LanguageRust:
		return keyword == "const" || keyword == "static"
	case LanguageGo:
		return keyword == "const"
	case LanguageJava:
		return strings.Contains(line, "final ")
	default:
		return false
	}
}

// memberFieldRes matches type-level data members per language.
var memberFieldRes = map[Language]*regexp.Regexp{
	LanguageTypeScript: regexp.MustCompile(`^\s*(?:(?:public|private|protected|readonly|static)\s+)*(\w+)\s*(?:\?\s*)?:\s*([^=;(]+?)\s*(?:[=;]|$)`),
	LanguageJava:       regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final)\s+)+([\w<>\[\],.]+)\s+(\w+)\s*(?:=|;)`),
	LanguageRust:       regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(\w+)\s*:\s*([^,]+),?\s*$`),
	LanguageGo:         regexp.MustCompile(`^\s+(\w+)\s+([\w\[\]*.]+)`),
}

// pyAttrAssignRe and pyAttrAnnotRe match class-level assignments and
// bare annotations respectively.
var pyAttrAssignRe = regexp.MustCompile(`^\s+(\w+)\s*(?::\s*([^=]+?))?\s*=\s*[^=]`)
var pyAttrAnnotRe = regexp.MustCompile(`^\s+(\w+)\s*:\s*(\S[^=]*?)\s*$`)

// collectAttributes fills each class's Attributes from member-level
// declarations inside its span.
func collectAttributes(lang Language, lines []string, depths []int, classes []ClassInfo) {
	if lang.IndentBased() {
		collectPythonAttributes(lines, classes)
		return
	}

	re, ok := memberFieldRes[lang]
	if !ok {
		if lang == LanguageJavaScript {
			re = memberFieldRes[LanguageTypeScript]
		} else {
			return
		}
	}

	for ci := range classes {
		c := &classes[ci]
		if c.Kind == "type_alias" || c.EndLine <= c.StartLine {
			continue
		}
		for i := c.StartLine; i < c.EndLine-1 && i < len(lines); i++ {
			line := lines[i]
			if depths[i] != 1 {
				continue
			}
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			name, dataType := m[1], ""
			if len(m) > 2 {
				dataType = strings.TrimSpace(m[2])
			}
			if lang == LanguageJava {
				// Java regex captures (type, name)
				name, dataType = m[2], strings.TrimSpace(m[1])
			}
			if controlKeywords[name] || strings.Contains(line, "(") {
				continue
			}
			c.Attributes = append(c.Attributes, VariableInfo{
				Name:     name,
				Line:     i + 1,
				DataType: dataType,
				Exported: isExportedDecl(lang, name, line),
			})
		}
	}
}

// collectPythonAttributes records class-body assignments at the class
// body indent level. Deeper lines belong to method bodies.
func collectPythonAttributes(lines []string, classes []ClassInfo) {
	for ci := range classes {
		c := &classes[ci]
		if c.EndLine <= c.StartLine {
			continue
		}

		bodyIndent := -1
		for i := c.StartLine; i < c.EndLine && i < len(lines); i++ {
			line := lines[i]
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			if bodyIndent < 0 {
				bodyIndent = indentOf(line)
			}
			if indentOf(line) != bodyIndent {
				continue
			}
			if strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async ") ||
				strings.HasPrefix(trimmed, "class ") || strings.HasPrefix(trimmed, "@") {
				continue
			}

			m := pyAttrAssignRe.FindStringSubmatch(line)
			if m == nil {
				m = pyAttrAnnotRe.FindStringSubmatch(line)
			}
			if m == nil || strings.Contains(line, "(") {
				continue
			}
			name := m[1]
			if controlKeywords[name] {
				continue
			}
			c.Attributes = append(c.Attributes, VariableInfo{
				Name:     name,
				Line:     i + 1,
				Constant: name == strings.ToUpper(name) && strings.ContainsFunc(name, unicode.IsUpper),
				DataType: strings.TrimSpace(m[2]),
				Exported: !strings.HasPrefix(name, "_"),
			})
		}
	}
}

// =============================================================================
// Exports
// =============================================================================

var pyAllRe = regexp.MustCompile(`__all__\s*=\s*\[([^\]]*)\]`)
var quotedNameRe = regexp.MustCompile(`['"](\w+)['"]`)

// extractExports determines the file's exported symbol names.
//
// TS/JS use explicit export statements; all other languages derive
// exports from declaration visibility.
func extractExports(syn *languageSyntax, lang Language, lines []string, info *FileInfo) []string {
	seen := make(map[string]bool)
	var exports []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			exports = append(exports, name)
		}
	}

	switch lang {
	case LanguageTypeScript, LanguageJavaScript:
		for _, line := range lines {
			for _, re := range syn.exportDecls {
				m := re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				clause := m[1]
				if strings.Contains(clause, ",") || strings.Contains(line, "{") && !strings.Contains(line, "from") {
					for _, part := range strings.Split(clause, ",") {
						part = strings.TrimSpace(part)
						if idx := strings.Index(part, " as "); idx >= 0 {
							part = strings.TrimSpace(part[idx+4:])
						}
						add(part)
					}
				} else {
					add(strings.TrimSpace(clause))
				}
				break
			}
		}

	case LanguagePython:
		// __all__ wins when present.
		content := strings.Join(lines, "\n")
		if m := pyAllRe.FindStringSubmatch(content); m != nil {
			for _, qm := range quotedNameRe.FindAllStringSubmatch(m[1], -1) {
				add(qm[1])
			}
			return exports
		}
		for _, f := range info.Functions {
			if f.Class == "" && !strings.HasPrefix(f.Name, "_") {
				add(f.Name)
			}
		}
		for _, c := range info.Classes {
			if !strings.HasPrefix(c.Name, "_") {
				add(c.Name)
			}
		}
		for _, v := range info.Variables {
			if !strings.HasPrefix(v.Name, "_") {
				add(v.Name)
			}
		}

	default:
		for _, f := range info.Functions {
			if f.Exported && f.Class == "" {
				add(f.Name)
			}
		}
		for _, c := range info.Classes {
			if c.Exported {
				add(c.Name)
			}
		}
		for _, v := range info.Variables {
			if v.Exported {
				add(v.Name)
			}
		}
	}
	return exports
}

// =============================================================================
// Shared helpers
// =============================================================================

// namedGroups maps a regex's named capture groups to their values.
func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}

// isExportedDecl decides visibility from the declaration line.
func isExportedDecl(lang Language, name, line string) bool {
	switch lang {
	case LanguageTypeScript, LanguageJavaScript:
		return strings.Contains(line, "export ")
	case LanguagePython:
		return !strings.HasPrefix(name, "_")
	case LanguageRust:
		return strings.Contains(line, "pub ") || strings.Contains(line, "pub(")
	case LanguageGo:
		r := []rune(name)
		return len(r) > 0 && unicode.IsUpper(r[0])
	case LanguageJava:
		return strings.Contains(line, "public ")
	default:
		return false
	}
}

// modifierWords are declaration modifiers worth carrying onto nodes.
var modifierWords = []string{"async", "static", "const", "abstract", "final", "pub", "export", "default", "unsafe", "readonly", "override", "synchronized"}

// declModifiers collects recognized modifier keywords from a
// declaration line, in source order.
func declModifiers(line string) []string {
	head := line
	if idx := strings.IndexAny(line, "({:="); idx > 0 {
		head = line[:idx]
	}
	fields := strings.Fields(head)

	var mods []string
	for _, f := range fields {
		for _, w := range modifierWords {
			if f == w {
				mods = append(mods, w)
				break
			}
		}
	}
	return mods
}
