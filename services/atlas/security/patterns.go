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
	"regexp"
	"strings"
)

// RuleVersion tags the built-in rule tables. Bump when rules change.
const RuleVersion = "2026.01"

// ============================================================================
// Taint sources
// ============================================================================

// TaintTag names one family of untrusted input.
type TaintTag string

const (
	TaintRequestBody   TaintTag = "request_body"
	TaintRequestQuery  TaintTag = "request_query"
	TaintRequestParams TaintTag = "request_params"
	TaintRequestHeader TaintTag = "request_header"
	TaintFormInput     TaintTag = "form_input"
	TaintProcessArgs   TaintTag = "process_args"
	TaintEnvironment   TaintTag = "environment"
	TaintStdin         TaintTag = "stdin"
)

// TaintSource pairs a taint tag with the literal marker that signals
// it in source text.
type TaintSource struct {
	// Tag is the taint family.
	Tag TaintTag

	// Needle is the literal substring that marks the source.
	Needle string
}

// taintSources is the fixed source table, evaluated in order; the
// first matching entry tags the line. Order puts the more specific
// markers first.
var taintSources = []TaintSource{
	{TaintRequestBody, "req.body"},
	{TaintRequestQuery, "req.query"},
	{TaintRequestParams, "req.params"},
	{TaintRequestHeader, "req.headers"},
	{TaintRequestBody, "request.body"},
	{TaintRequestBody, "request.json"},
	{TaintRequestQuery, "request.args"},
	{TaintRequestQuery, "request.GET"},
	{TaintRequestBody, "request.POST"},
	{TaintFormInput, "request.form"},
	{TaintRequestParams, "ctx.Param"},
	{TaintRequestQuery, "ctx.Query"},
	{TaintRequestQuery, "r.URL.Query"},
	{TaintRequestBody, "r.Body"},
	{TaintRequestParams, "getParameter("},
	{TaintProcessArgs, "process.argv"},
	{TaintProcessArgs, "sys.argv"},
	{TaintProcessArgs, "os.Args"},
	{TaintEnvironment, "process.env"},
	{TaintEnvironment, "os.environ"},
	{TaintEnvironment, "os.Getenv"},
	{TaintStdin, "process.stdin"},
	{TaintStdin, "sys.stdin"},
	{TaintStdin, "os.Stdin"},
	{TaintStdin, "System.in"},
	{TaintStdin, "input("},
	{TaintStdin, "readline("},
}

// matchTaint returns the first taint source present in line at an
// identifier boundary, or false.
func matchTaint(line string) (TaintSource, bool) {
	for _, src := range taintSources {
		if needleAt(line, src.Needle) >= 0 {
			return src, true
		}
	}
	return TaintSource{}, false
}

// ============================================================================
// Dangerous sinks
// ============================================================================

// SinkRule describes one dangerous-sink family the base scanner flags.
//
// A rule matches per line either by literal needles with a cheap
// identifier-boundary check, or by a regular expression when needle
// matching is too coarse. A rule with RequiresTaint only fires when a
// taint source was seen on the same line or within the scanner's taint
// window above it; the rest fire unconditionally.
type SinkRule struct {
	// ID is the stable rule identifier (e.g. "SEC-020").
	ID string `json:"id"`

	// Category tags the vulnerability class the rule detects.
	Category Category `json:"category"`

	// Severity grades findings produced by this rule.
	Severity Severity `json:"severity"`

	// Title is the short finding name.
	Title string `json:"title"`

	// Description explains what the rule detects.
	Description string `json:"description"`

	// CWE is the Common Weakness Enumeration tag.
	CWE string `json:"cwe"`

	// OWASP is the OWASP Top 10 2021 tag.
	OWASP string `json:"owasp"`

	// Needles are the literal sink markers, any of which matches.
	// Ignored when Pattern is set.
	Needles []string `json:"needles,omitempty"`

	// Pattern is an anchored-enough regular expression used instead of
	// Needles for sinks that literal matching over-approximates.
	Pattern string `json:"pattern,omitempty"`

	// RequiresTaint gates the rule on a nearby taint source.
	RequiresTaint bool `json:"requiresTaint"`

	// Remediation suggests a fix.
	Remediation string `json:"remediation,omitempty"`

	// BaseConfidence seeds the finding confidence before any filter
	// stage has scored it.
	BaseConfidence float64 `json:"baseConfidence"`
}

// match returns the 0-based index of the rule's first occurrence in
// line, or -1.
func (r *SinkRule) match(line string) int {
	if r.Pattern != "" {
		re := compiledSinkPatterns[r.ID]
		if re == nil {
			return -1
		}
		if loc := re.FindStringIndex(line); loc != nil {
			return loc[0]
		}
		return -1
	}
	for _, n := range r.Needles {
		if i := needleAt(line, n); i >= 0 {
			return i
		}
	}
	return -1
}

// sinkRules is the fixed sink table, evaluated in order per line. At
// most one finding is emitted per rule per line.
var sinkRules = []SinkRule{

	// ========================================================================
	// A03:2021 – Injection
	// ========================================================================

	{
		ID:       "SEC-020",
		Category: CategorySQLInjection,
		Severity: SeverityCritical,
		Title:    "SQL Injection",
		Description: "Database query executed near untrusted input. " +
			"String-built SQL lets attackers rewrite the statement.",
		CWE:   "CWE-89",
		OWASP: "A03:2021",
		Needles: []string{
			".execute(", ".executemany(", "executeQuery(", "executeUpdate(",
			"session.query(", "db.query(", "db.Query(", "db.QueryRow(",
			"db.Exec(", "db.exec(", "conn.query(", "conn.Query(", "conn.Exec(",
			"pool.query(", "tx.Query(", "tx.QueryRow(", "tx.Exec(", ".raw(",
		},
		RequiresTaint:  true,
		Remediation:    "Use parameterized queries or prepared statements.",
		BaseConfidence: 0.8,
	},
	{
		ID:       "SEC-021",
		Category: CategoryCommandInjection,
		Severity: SeverityCritical,
		Title:    "Command Injection",
		Description: "Shell or process execution near untrusted input. " +
			"Unescaped arguments let attackers run arbitrary commands.",
		CWE:   "CWE-78",
		OWASP: "A03:2021",
		Needles: []string{
			"child_process.exec", "execSync(", "spawnSync(",
			"subprocess.call", "subprocess.run", "subprocess.Popen",
			"os.system(", "os.popen(", "exec.Command(", "shell_exec(",
			"Runtime.getRuntime().exec", "ProcessBuilder(",
		},
		RequiresTaint:  true,
		Remediation:    "Pass arguments as a vector, never through a shell string.",
		BaseConfidence: 0.8,
	},
	{
		ID:       "SEC-022",
		Category: CategoryXSS,
		Severity: SeverityHigh,
		Title:    "Cross-Site Scripting",
		Description: "HTML injection sink receives data near untrusted " +
			"input without encoding.",
		CWE:   "CWE-79",
		OWASP: "A03:2021",
		Needles: []string{
			".innerHTML", ".outerHTML", "dangerouslySetInnerHTML",
			"document.write(", "insertAdjacentHTML(", "v-html",
			"render_template_string(",
		},
		RequiresTaint:  true,
		Remediation:    "Encode output for the HTML context or use safe templating.",
		BaseConfidence: 0.75,
	},
	{
		ID:       "SEC-023",
		Category: CategoryCodeInjection,
		Severity: SeverityCritical,
		Title:    "Code Injection",
		Description: "Dynamic code evaluation. Evaluated strings built from " +
			"untrusted input execute with full program privileges.",
		CWE:   "CWE-94",
		OWASP: "A03:2021",
		// Bare eval/exec calls only; dotted forms like regex.exec() are
		// a different animal.
		Pattern:        `(?:^|[^.\w])(?:eval|exec|execfile)\s*\(|new\s+Function\s*\(|vm\.runIn(?:New)?Context\s*\(`,
		RequiresTaint:  false,
		Remediation:    "Remove dynamic evaluation; dispatch on data instead of code.",
		BaseConfidence: 0.7,
	},

	// ========================================================================
	// A01:2021 – Broken Access Control
	// ========================================================================

	{
		ID:       "SEC-080",
		Category: CategoryPathTraversal,
		Severity: SeverityHigh,
		Title:    "Path Traversal",
		Description: "Filesystem access near untrusted input. Unvalidated " +
			"paths escape the intended directory via dot-dot segments.",
		CWE:   "CWE-22",
		OWASP: "A01:2021",
		Needles: []string{
			"readFile(", "readFileSync(", "writeFile(", "writeFileSync(",
			"createReadStream(", "createWriteStream(", "open(",
			"os.Open(", "os.ReadFile(", "os.WriteFile(", "os.Create(",
			"FileInputStream(", "FileOutputStream(", "FileReader(",
		},
		RequiresTaint:  true,
		Remediation:    "Canonicalize and validate paths against an allow-listed root.",
		BaseConfidence: 0.7,
	},

	// ========================================================================
	// A08:2021 – Software and Data Integrity Failures
	// ========================================================================

	{
		ID:       "SEC-050",
		Category: CategoryDeserialization,
		Severity: SeverityHigh,
		Title:    "Insecure Deserialization",
		Description: "Deserializer that can instantiate arbitrary types. " +
			"Untrusted payloads lead to object injection or code execution.",
		CWE:   "CWE-502",
		OWASP: "A08:2021",
		Needles: []string{
			"pickle.load", "pickle.loads", "yaml.load(", "yaml.unsafe_load",
			"marshal.loads", "unserialize(", "ObjectInputStream(",
			".readObject(", "Marshal.load",
		},
		RequiresTaint:  false,
		Remediation:    "Use a data-only format or a safe loader variant.",
		BaseConfidence: 0.75,
	},

	// ========================================================================
	// A10:2021 – Server-Side Request Forgery
	// ========================================================================

	{
		ID:       "SEC-070",
		Category: CategorySSRF,
		Severity: SeverityHigh,
		Title:    "Server-Side Request Forgery",
		Description: "Outbound request near untrusted input. Attacker-chosen " +
			"URLs reach internal services and metadata endpoints.",
		CWE:   "CWE-918",
		OWASP: "A10:2021",
		Needles: []string{
			"fetch(", "axios.get(", "axios.post(", "axios(",
			"requests.get(", "requests.post(", "urllib.request.urlopen(",
			"http.Get(", "http.Post(", "httpClient.Do(", "client.Do(",
			"HttpURLConnection",
		},
		RequiresTaint:  true,
		Remediation:    "Validate destinations against an allow list before connecting.",
		BaseConfidence: 0.7,
	},
}

// compiledSinkPatterns holds the compiled regex per rule ID. The rule
// table is closed and package-owned, so compilation happens once at
// init; a rule whose pattern fails to compile simply never matches.
var compiledSinkPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for i := range sinkRules {
		if p := sinkRules[i].Pattern; p != "" {
			if re, err := regexp.Compile(p); err == nil {
				m[sinkRules[i].ID] = re
			}
		}
	}
	return m
}()

// Rules returns a copy of the sink rule table, for reporting surfaces.
func Rules() []SinkRule {
	out := make([]SinkRule, len(sinkRules))
	copy(out, sinkRules)
	return out
}

// RuleByID returns the sink rule with the given id, or nil.
func RuleByID(id string) *SinkRule {
	for i := range sinkRules {
		if sinkRules[i].ID == id {
			r := sinkRules[i]
			return &r
		}
	}
	return nil
}

// ============================================================================
// Needle matching
// ============================================================================

// isIdentChar reports whether b continues an identifier.
func isIdentChar(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// needleAt returns the 0-based index of the first occurrence of needle
// in line that sits at an identifier boundary, or -1.
//
// A needle that begins with an identifier character must not be
// preceded by one, so "eval(" never matches inside "primeval(". A
// needle that ends with one must not be followed by one, so "req.body"
// never matches inside "req.bodyParser". Needles delimited by
// punctuation (".execute(") match anywhere.
func needleAt(line, needle string) int {
	if needle == "" {
		return -1
	}
	headBound := isIdentChar(needle[0])
	tailBound := isIdentChar(needle[len(needle)-1])
	from := 0
	for {
		i := strings.Index(line[from:], needle)
		if i < 0 {
			return -1
		}
		i += from
		ok := true
		if headBound && i > 0 && isIdentChar(line[i-1]) {
			ok = false
		}
		if ok && tailBound {
			if j := i + len(needle); j < len(line) && isIdentChar(line[j]) {
				ok = false
			}
		}
		if ok {
			return i
		}
		from = i + 1
	}
}
