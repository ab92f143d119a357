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
	"math"
	"regexp"
	"strings"
)

// ============================================================================
// Secret rules
// ============================================================================

// SecretRule describes one hardcoded-credential pattern.
//
// Structured tokens (AWS key ids, GitHub tokens) match on shape alone.
// Loose assignments gate on Shannon entropy so that placeholder values
// like "your-api-key-here" stay quiet.
type SecretRule struct {
	// ID is the stable rule identifier (e.g. "SEC-012").
	ID string `json:"id"`

	// Type names the credential kind (e.g. "aws_access_key").
	Type string `json:"type"`

	// Title is the short finding name.
	Title string `json:"title"`

	// Description explains what the rule detects.
	Description string `json:"description"`

	// Severity grades findings produced by this rule.
	Severity Severity `json:"severity"`

	// CWE is the Common Weakness Enumeration tag.
	CWE string `json:"cwe"`

	// OWASP is the OWASP Top 10 2021 tag.
	OWASP string `json:"owasp"`

	// Pattern is the detection regex. The secret value is capture
	// group 1 when the pattern declares one, the whole match otherwise.
	Pattern string `json:"pattern"`

	// FalsePositiveHints suppress a match when any hint appears in the
	// lowercased line.
	FalsePositiveHints []string `json:"falsePositiveHints,omitempty"`

	// EntropyThreshold gates the match on the secret value's Shannon
	// entropy in bits per character. Zero disables the gate.
	EntropyThreshold float64 `json:"entropyThreshold,omitempty"`

	// BaseConfidence seeds the finding confidence. Structured token
	// shapes score higher than loose assignment matches.
	BaseConfidence float64 `json:"baseConfidence"`
}

// secretRules is the fixed credential table, evaluated in order per
// line. At most one finding is emitted per rule per line.
var secretRules = []SecretRule{

	// ========================================================================
	// A02:2021 – Cryptographic Failures
	// ========================================================================

	{
		ID:             "SEC-010",
		Type:           "private_key",
		Title:          "Private Key Material",
		Description:    "PEM-encoded private key embedded in source.",
		Severity:       SeverityCritical,
		CWE:            "CWE-321",
		OWASP:          "A02:2021",
		Pattern:        `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY`,
		BaseConfidence: 0.95,
	},

	// ========================================================================
	// A07:2021 – Identification and Authentication Failures
	// ========================================================================

	{
		ID:             "SEC-011",
		Type:           "aws_access_key",
		Title:          "AWS Access Key ID",
		Description:    "AWS access key id embedded in source.",
		Severity:       SeverityCritical,
		CWE:            "CWE-798",
		OWASP:          "A07:2021",
		Pattern:        `(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
		BaseConfidence: 0.95,
	},
	{
		ID:                 "SEC-011",
		Type:               "aws_secret_key",
		Title:              "AWS Secret Access Key",
		Description:        "AWS secret access key embedded in source.",
		Severity:           SeverityCritical,
		CWE:                "CWE-798",
		OWASP:              "A07:2021",
		Pattern:            `(?i)aws[^'"\n]{0,20}['"]([0-9a-zA-Z/+]{40})['"]`,
		FalsePositiveHints: []string{"example", "sample", "fake"},
		EntropyThreshold:   3.5,
		BaseConfidence:     0.85,
	},
	{
		ID:             "SEC-012",
		Type:           "gcp_api_key",
		Title:          "GCP API Key",
		Description:    "Google Cloud API key embedded in source.",
		Severity:       SeverityHigh,
		CWE:            "CWE-798",
		OWASP:          "A07:2021",
		Pattern:        `AIza[0-9A-Za-z_\-]{35}`,
		BaseConfidence: 0.9,
	},
	{
		ID:             "SEC-012",
		Type:           "github_token",
		Title:          "GitHub Token",
		Description:    "GitHub personal access or app token embedded in source.",
		Severity:       SeverityCritical,
		CWE:            "CWE-798",
		OWASP:          "A07:2021",
		Pattern:        `(?:ghp|gho|ghu|ghs|ghr)_[a-zA-Z0-9]{36,}`,
		BaseConfidence: 0.95,
	},
	{
		ID:             "SEC-012",
		Type:           "slack_token",
		Title:          "Slack Token",
		Description:    "Slack bot, app, or user token embedded in source.",
		Severity:       SeverityHigh,
		CWE:            "CWE-798",
		OWASP:          "A07:2021",
		Pattern:        `xox[baprs]-[0-9a-zA-Z\-]{10,}`,
		BaseConfidence: 0.9,
	},
	{
		ID:             "SEC-012",
		Type:           "stripe_key",
		Title:          "Stripe Live Key",
		Description:    "Stripe live secret or restricted key embedded in source.",
		Severity:       SeverityCritical,
		CWE:            "CWE-798",
		OWASP:          "A07:2021",
		Pattern:        `(?:sk|rk)_live_[0-9a-zA-Z]{24,}`,
		BaseConfidence: 0.95,
	},
	{
		ID:          "SEC-013",
		Type:        "database_url",
		Title:       "Database URL With Credentials",
		Description: "Connection string carrying a password embedded in source.",
		Severity:    SeverityCritical,
		CWE:         "CWE-798",
		OWASP:       "A07:2021",
		Pattern:     `(?:postgres|postgresql|mysql|mongodb|redis|amqp)://[^:\s'"]+:([^@\s'"]+)@`,
		FalsePositiveHints: []string{
			"example", "localhost:password", "user:pass@", "<", "{{", "${",
		},
		BaseConfidence: 0.9,
	},
	{
		ID:          "SEC-013",
		Type:        "hardcoded_password",
		Title:       "Hardcoded Password",
		Description: "Password literal assigned in source.",
		Severity:    SeverityMedium,
		CWE:         "CWE-798",
		OWASP:       "A07:2021",
		Pattern:     `(?i)(?:password|passwd|pwd)\s*[:=]\s*['"]([^'"]{6,})['"]`,
		FalsePositiveHints: []string{
			"example", "changeme", "placeholder", "your", "xxx", "****",
			"<", "{{", "${", "process.env", "os.environ", "getenv", "config",
		},
		BaseConfidence: 0.7,
	},
	{
		ID:          "SEC-014",
		Type:        "generic_api_key",
		Title:       "Hardcoded API Credential",
		Description: "High-entropy credential literal assigned in source.",
		Severity:    SeverityHigh,
		CWE:         "CWE-798",
		OWASP:       "A07:2021",
		Pattern:     `(?i)(?:api[_-]?key|apikey|secret[_-]?key|access[_-]?token|auth[_-]?token|client[_-]?secret)\s*[:=]\s*['"]([A-Za-z0-9_\-/+=]{16,})['"]`,
		FalsePositiveHints: []string{
			"example", "sample", "your", "test", "dummy", "placeholder",
			"<", "{{", "${", "process.env", "os.environ", "getenv",
		},
		EntropyThreshold: 3.5,
		BaseConfidence:   0.7,
	},
}

// compiledSecretPatterns holds the compiled regex per rule type,
// populated once at init; a rule whose pattern fails to compile never
// matches.
var compiledSecretPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(secretRules))
	for i := range secretRules {
		if re, err := regexp.Compile(secretRules[i].Pattern); err == nil {
			m[secretRules[i].Type] = re
		}
	}
	return m
}()

// SecretRules returns a copy of the secret rule table, for reporting
// surfaces.
func SecretRules() []SecretRule {
	out := make([]SecretRule, len(secretRules))
	copy(out, secretRules)
	return out
}

// secretHit is one secret-rule match on a line.
type secretHit struct {
	rule   *SecretRule
	secret string
	index  int
}

// matchSecrets returns all secret-rule hits on a line, in table order.
func matchSecrets(line string) []secretHit {
	var hits []secretHit
	lower := strings.ToLower(line)
	for i := range secretRules {
		rule := &secretRules[i]
		re := compiledSecretPatterns[rule.Type]
		if re == nil {
			continue
		}
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		if hintsSuppress(lower, rule.FalsePositiveHints) {
			continue
		}
		secret := line[loc[0]:loc[1]]
		if len(loc) >= 4 && loc[2] >= 0 {
			secret = line[loc[2]:loc[3]]
		}
		if rule.EntropyThreshold > 0 && shannonEntropy(secret) < rule.EntropyThreshold {
			continue
		}
		hits = append(hits, secretHit{rule: rule, secret: secret, index: loc[0]})
	}
	return hits
}

// hintsSuppress reports whether any false-positive hint occurs in the
// lowercased line.
func hintsSuppress(lower string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// maskSecret hides a credential value for safe display: short values
// vanish entirely, longer ones keep two characters of context at each
// end.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	stars := len(secret) - 4
	if stars < 1 {
		stars = 1
	}
	return secret[:2] + strings.Repeat("*", stars) + secret[len(secret)-2:]
}

// shannonEntropy returns the Shannon entropy of s in bits per
// character. Uniformly random base64 text sits near 6; English prose
// near 4; repeated placeholder text well below 3.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	n := float64(len(s))
	var h float64
	for _, c := range freq {
		if c > 0 {
			p := float64(c) / n
			h -= p * math.Log2(p)
		}
	}
	return h
}
