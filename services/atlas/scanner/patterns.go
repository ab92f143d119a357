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

import "regexp"

// languageSyntax bundles the ordered pattern tables for one language.
//
// Tables are evaluated in declaration order with first-match-wins
// semantics. The tables are package-level immutable values; matching is
// safe for concurrent use.
type languageSyntax struct {
	lang Language

	// imports are tried in order against each line.
	imports []*importMatcher

	// functionDecl matches function/method declarations. Group names:
	// name, params, and optionally recv/async.
	functionDecls []*regexp.Regexp

	// classDecls matches type declarations, paired with the kind each
	// pattern produces.
	classDecls []classMatcher

	// variableDecl matches top-level variable declarations.
	variableDecls []*regexp.Regexp

	// exportDecl matches explicit export statements (TS/JS only).
	exportDecls []*regexp.Regexp
}

// importMatcher is one (pattern, shape) entry in the import table.
type importMatcher struct {
	re *regexp.Regexp

	// pathGroup is the capture group index of the module path.
	pathGroup int

	// clauseGroup is the capture group of the binding clause
	// ("{a, b}", "* as ns", "Default"), or 0 when absent.
	clauseGroup int

	// aliasGroup is the capture group of a trailing alias, or 0.
	aliasGroup int
}

// classMatcher is one (pattern, kind) entry in the class table.
type classMatcher struct {
	re *regexp.Regexp

	// kind is the declaration kind this pattern produces: class,
	// struct, interface, trait, enum, or type_alias.
	kind string

	// nameGroup, extendsGroup, implementsGroup are capture group
	// indexes (0 when the pattern has no such group).
	nameGroup       int
	extendsGroup    int
	implementsGroup int

	// bodyless is true for declarations with no block body
	// (type aliases, unit structs).
	bodyless bool
}

// tsSyntax covers TypeScript; jsSyntax shares most tables.
var tsSyntax = &languageSyntax{
	lang: LanguageTypeScript,
	imports: []*importMatcher{
		// import Default, {a, b} from 'path' / import * as ns from 'path'
		{re: regexp.MustCompile(`^\s*import\s+(?:type\s+)?(.+?)\s+from\s+['"]([^'"]+)['"]`), pathGroup: 2, clauseGroup: 1},
		// bare side-effect import: import 'path'
		{re: regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`), pathGroup: 1},
		// re-export: export {a} from 'path' / export * from 'path'
		{re: regexp.MustCompile(`^\s*export\s+(\{[^}]*\}|\*)\s+from\s+['"]([^'"]+)['"]`), pathGroup: 2, clauseGroup: 1},
		// CommonJS: const x = require('path')
		{re: regexp.MustCompile(`^\s*(?:const|let|var)\s+(\{[^}]+\}|\w+)\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)`), pathGroup: 2, clauseGroup: 1},
	},
	functionDecls: []*regexp.Regexp{
		// function declarations
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?P<async>async\s+)?function\s*\*?\s*(?P<name>\w+)\s*\((?P<params>[^)]*)\)`),
		// arrow functions bound to const/let/var
		regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>\w+)\s*(?::[^=]+)?=\s*(?P<async>async\s+)?(?:\([^)]*\)|\w+)\s*=>`),
		// class methods (filtered against control keywords by the extractor)
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|readonly|static|override)\s+)*(?P<async>async\s+)?(?P<name>\w+)\s*\((?P<params>[^)]*)\)\s*(?::\s*[^{;]+)?\{`),
	},
	classDecls: []classMatcher{
		{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)(?:<[^>]*>)?(?:\s+extends\s+([\w.]+))?(?:\s+implements\s+([\w\s,.]+?))?\s*\{`), kind: "class", nameGroup: 1, extendsGroup: 2, implementsGroup: 3},
		{re: regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)(?:<[^>]*>)?(?:\s+extends\s+([\w\s,.]+?))?\s*\{`), kind: "interface", nameGroup: 1, extendsGroup: 2},
		{re: regexp.MustCompile(`^\s*(?:export\s+)?(?:const\s+)?enum\s+(\w+)\s*\{`), kind: "enum", nameGroup: 1},
		{re: regexp.MustCompile(`^\s*(?:export\s+)?type\s+(\w+)(?:<[^>]*>)?\s*=`), kind: "type_alias", nameGroup: 1, bodyless: true},
	},
	variableDecls: []*regexp.Regexp{
		regexp.MustCompile(`^(?:export\s+)?(?P<kw>const|let|var)\s+(?P<name>\w+)\s*(?::\s*(?P<type>[^=;]+?))?\s*(?:=|;|$)`),
	},
	exportDecls: []*regexp.Regexp{
		regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:abstract\s+)?(?:async\s+)?(?:function\s*\*?|class|interface|enum|type|const|let|var)\s+(\w+)`),
		regexp.MustCompile(`^\s*export\s+\{([^}]+)\}\s*;?\s*$`),
		regexp.MustCompile(`^\s*export\s+default\s+(\w+)\s*;?\s*$`),
	},
}

// jsSyntax reuses the TypeScript tables; the extras TS adds (interfaces,
// type annotations) simply never match JavaScript source.
var jsSyntax = &languageSyntax{
	lang:          LanguageJavaScript,
	imports:       tsSyntax.imports,
	functionDecls: tsSyntax.functionDecls,
	classDecls:    tsSyntax.classDecls,
	variableDecls: tsSyntax.variableDecls,
	exportDecls:   tsSyntax.exportDecls,
}

var pySyntax = &languageSyntax{
	lang: LanguagePython,
	imports: []*importMatcher{
		// from module import a, b as c
		{re: regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+(.+?)\s*$`), pathGroup: 1, clauseGroup: 2},
		// import module as alias
		{re: regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?\s*$`), pathGroup: 1, aliasGroup: 2},
	},
	functionDecls: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?P<async>async\s+)?def\s+(?P<name>\w+)\s*\((?P<params>[^)]*)\)`),
	},
	classDecls: []classMatcher{
		{re: regexp.MustCompile(`^\s*class\s+(\w+)(?:\(([^)]*)\))?\s*:`), kind: "class", nameGroup: 1, extendsGroup: 2},
	},
	variableDecls: []*regexp.Regexp{
		regexp.MustCompile(`^(?P<name>\w+)\s*(?::\s*(?P<type>[^=]+?))?\s*=\s*[^=]`),
	},
}

var rustSyntax = &languageSyntax{
	lang: LanguageRust,
	imports: []*importMatcher{
		// use path::to::{a, b};
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+([\w:]+)::\{([^}]*)\}\s*;`), pathGroup: 1, clauseGroup: 2},
		// use path::to::item;
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+([\w:]+?)(?:\s+as\s+(\w+))?\s*;`), pathGroup: 1, aliasGroup: 2},
		// mod child;
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)\s*;`), pathGroup: 1},
	},
	functionDecls: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?P<async>async\s+)?(?:unsafe\s+)?(?:extern\s+"[^"]*"\s+)?fn\s+(?P<name>\w+)\s*(?:<[^>]*>)?\s*\((?P<params>[^)]*)`),
	},
	classDecls: []classMatcher{
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)(?:<[^>]*>)?\s*[({]`), kind: "struct", nameGroup: 1},
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)(?:<[^>]*>)?\s*;`), kind: "struct", nameGroup: 1, bodyless: true},
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)(?:<[^>]*>)?\s*\{`), kind: "enum", nameGroup: 1},
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)(?:<[^>]*>)?(?:\s*:\s*([\w\s+:]+?))?\s*\{`), kind: "trait", nameGroup: 1, extendsGroup: 2},
		{re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?type\s+(\w+)(?:<[^>]*>)?\s*=`), kind: "type_alias", nameGroup: 1, bodyless: true},
	},
	variableDecls: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?P<kw>static|const)\s+(?P<name>\w+)\s*:\s*(?P<type>[^=]+?)\s*=`),
	},
}

var goSyntax = &languageSyntax{
	lang: LanguageGo,
	imports: []*importMatcher{
		// single import, possibly aliased; block imports are handled
		// statefully by the extractor.
		{re: regexp.MustCompile(`^\s*import\s+(?:(\w+|\.)\s+)?"([^"]+)"`), pathGroup: 2, aliasGroup: 1},
	},
	functionDecls: []*regexp.Regexp{
		regexp.MustCompile(`^func\s+(?:\((?P<recv>[^)]+)\)\s+)?(?P<name>\w+)\s*\((?P<params>[^)]*)`),
	},
	classDecls: []classMatcher{
		{re: regexp.MustCompile(`^type\s+(\w+)\s+struct\s*\{`), kind: "struct", nameGroup: 1},
		{re: regexp.MustCompile(`^type\s+(\w+)\s+interface\s*\{`), kind: "interface", nameGroup: 1},
		{re: regexp.MustCompile(`^type\s+(\w+)\s+[=\w\[\]*.]`), kind: "type_alias", nameGroup: 1, bodyless: true},
	},
	variableDecls: []*regexp.Regexp{
		regexp.MustCompile(`^(?P<kw>var|const)\s+(?P<name>\w+)(?:\s+(?P<type>[\w\[\]*.]+))?`),
	},
}

var javaSyntax = &languageSyntax{
	lang: LanguageJava,
	imports: []*importMatcher{
		{re: regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`), pathGroup: 1},
	},
	functionDecls: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract|synchronized|native)\s+)+(?:<[^>]*>\s*)?[\w<>\[\],.\s]+?\s+(?P<name>\w+)\s*\((?P<params>[^)]*)\)\s*(?:throws\s+[\w,.\s]+)?\s*\{`),
		// constructors: no return type, name starts uppercase
		regexp.MustCompile(`^\s*(?:(?:public|private|protected)\s+)(?P<name>[A-Z]\w*)\s*\((?P<params>[^)]*)\)\s*(?:throws\s+[\w,.\s]+)?\s*\{`),
	},
	classDecls: []classMatcher{
		{re: regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final|abstract)\s+)*class\s+(\w+)(?:<[^>]*>)?(?:\s+extends\s+([\w.]+))?(?:\s+implements\s+([\w\s,.]+?))?\s*\{`), kind: "class", nameGroup: 1, extendsGroup: 2, implementsGroup: 3},
		{re: regexp.MustCompile(`^\s*(?:(?:public|private|protected|static)\s+)*interface\s+(\w+)(?:<[^>]*>)?(?:\s+extends\s+([\w\s,.]+?))?\s*\{`), kind: "interface", nameGroup: 1, extendsGroup: 2},
		{re: regexp.MustCompile(`^\s*(?:(?:public|private|protected|static)\s+)*enum\s+(\w+)\s*(?:implements\s+([\w\s,.]+?)\s*)?\{`), kind: "enum", nameGroup: 1, implementsGroup: 2},
	},
	variableDecls: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|final)\s+)+(?P<type>[\w<>\[\],.]+)\s+(?P<name>\w+)\s*(?:=|;)`),
	},
}

// syntaxTable is the ordered list of supported languages.
var syntaxTable = []*languageSyntax{
	tsSyntax,
	jsSyntax,
	pySyntax,
	rustSyntax,
	goSyntax,
	javaSyntax,
}

// syntaxFor returns the pattern tables for a language, or nil when the
// language has no extraction support.
func syntaxFor(lang Language) *languageSyntax {
	for _, s := range syntaxTable {
		if s.lang == lang {
			return s
		}
	}
	return nil
}

// callSiteRe matches a call site: an identifier directly followed by an
// opening parenthesis. Dotted chains resolve to their final segment so
// "await this.repo.get(x)" yields an awaited call to "get". The
// extractor filters control-flow keywords.
var callSiteRe = regexp.MustCompile(`(?:\b(await)\s+)?(?:[\w$]+\.)*([A-Za-z_]\w*)\s*\(`)

// controlKeywords are identifiers that look like calls but are control
// flow. Shared across languages; entries that don't exist in a given
// language simply never match.
var controlKeywords = map[string]bool{
	"if": true, "else": true, "elif": true, "for": true, "while": true,
	"switch": true, "match": true, "case": true, "catch": true,
	"except": true, "return": true, "defer": true, "go": true,
	"select": true, "function": true, "func": true, "fn": true,
	"def": true, "with": true, "assert": true, "raise": true,
	"throw": true, "typeof": true, "instanceof": true, "new": true,
	"loop": true, "yield": true, "await": true, "delete": true,
	"in": true, "not": true, "and": true, "or": true, "lambda": true,
}

// complexityTokens are the branch markers counted by the complexity
// heuristic. Word tokens are matched on word boundaries; symbol tokens
// by plain substring count.
var complexityWordRe = regexp.MustCompile(`\b(if|elif|for|while|case|when|catch|except)\b`)

// paramNameRe pulls the parameter name out of one comma-separated
// parameter fragment ("x: string", "int x", "mut x", "x = 3").
var paramNameRe = regexp.MustCompile(`[A-Za-z_]\w*`)
