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
	"fmt"
	"os"

	"github.com/owenrumney/go-sarif/v2/sarif"
)

// SARIF converts the report into a SARIF 2.1.0 document so findings
// can flow into code-scanning UIs. Only surviving findings are
// emitted; the filter audit stays in the JSON report.
func (r *EnhancedSecurityReport) SARIF() (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("create sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI("aleutian-atlas", "https://github.com/AleutianAI/AleutianAtlas")

	seenRules := make(map[string]bool)
	for i := range r.Vulnerabilities {
		v := &r.Vulnerabilities[i]

		if !seenRules[v.RuleID] {
			seenRules[v.RuleID] = true
			run.AddRule(v.RuleID).
				WithDescription(v.Title).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: toSarifLevel(v.Severity),
				})
		}

		region := sarif.NewRegion().WithStartLine(v.Line)
		if v.EndLine > v.Line {
			region = region.WithEndLine(v.EndLine)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(v.File)).
				WithRegion(region))

		message := v.Title
		if v.Snippet != "" {
			message = fmt.Sprintf("%s: %s", v.Title, v.Snippet)
		}

		result := sarif.NewRuleResult(v.RuleID).
			WithMessage(sarif.NewTextMessage(message)).
			WithLevel(toSarifLevel(v.Severity)).
			WithLocations([]*sarif.Location{location})
		result.PropertyBag = *sarif.NewPropertyBag()
		result.Properties["severity"] = string(v.Severity)
		result.Properties["category"] = string(v.Category)
		if v.CWE != "" {
			result.Properties["cwe"] = v.CWE
		}
		if v.OWASP != "" {
			result.Properties["owasp"] = v.OWASP
		}
		if v.Confidence > 0 {
			result.Properties["confidence"] = v.Confidence
		}
		if v.NeedsReview {
			result.Properties["needsReview"] = true
		}
		run.AddResult(result)
	}

	report.AddRun(run)
	return report, nil
}

// WriteSARIF writes the SARIF document to path.
func (r *EnhancedSecurityReport) WriteSARIF(path string) error {
	report, err := r.SARIF()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sarif file: %w", err)
	}
	defer f.Close()
	if err := report.PrettyWrite(f); err != nil {
		return fmt.Errorf("write sarif file: %w", err)
	}
	return nil
}

// toSarifLevel maps severity grades onto SARIF result levels.
func toSarifLevel(s Severity) string {
	switch s {
	case SeverityCritical, SeverityHigh:
		return "error"
	case SeverityMedium:
		return "warning"
	case SeverityLow, SeverityInfo:
		return "note"
	default:
		return "none"
	}
}
