// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package architecture

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

// fakeClient is a canned external judge for detector and classifier
// tests.
type fakeClient struct {
	mu        sync.Mutex
	available bool
	reply     string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeClient) Available(ctx context.Context) bool {
	return f.available
}

var _ llm.LLMClient = (*fakeClient)(nil)

// makeScan builds a scan result holding just paths, which is all the
// detector reads.
func makeScan(paths ...string) *scanner.ScanResult {
	scan := &scanner.ScanResult{Root: "/tmp/project", ProjectName: "fixture"}
	for _, p := range paths {
		scan.Files = append(scan.Files, &scanner.FileInfo{
			Path:     p,
			Language: scanner.DetectLanguage(p),
		})
	}
	return scan
}

// mvcFixture are the paths and dependencies of a small MVC-shaped
// project: a controller calling a service calling a model.
func mvcFixture() (*scanner.ScanResult, map[string][]string) {
	scan := makeScan(
		"controllers/UserController.ts",
		"services/UserService.ts",
		"models/User.ts",
	)
	deps := map[string][]string{
		"controllers/UserController.ts": {"services/UserService.ts"},
		"services/UserService.ts":       {"models/User.ts"},
	}
	return scan, deps
}

func TestDetector_Detect_MVCProject(t *testing.T) {
	scan, deps := mvcFixture()
	d := NewDetector(nil, DefaultDetectorOptions(), nil)

	results := d.Detect(context.Background(), scan, deps)
	if len(results) == 0 {
		t.Fatal("expected at least one candidate")
	}

	top := results[0]
	if top.Pattern.Name != "Layered" && top.Pattern.Name != "MVC" {
		t.Errorf("expected top pattern Layered or MVC, got %q", top.Pattern.Name)
	}
	if top.Confidence <= 30 {
		t.Errorf("expected top confidence > 30, got %.1f", top.Confidence)
	}
	if len(top.Violations) != 0 {
		t.Errorf("expected zero violations, got %+v", top.Violations)
	}

	// Every file of the fixture lands in a layer of the top pattern.
	if top.Pattern.Name == "Layered" {
		want := map[string]int{"presentation": 1, "business": 1, "persistence": 1}
		for layer, n := range want {
			if top.LayerDistribution[layer] != n {
				t.Errorf("layer %s: expected %d files, got %d",
					layer, n, top.LayerDistribution[layer])
			}
		}
	}

	// Ranking is descending.
	for i := 1; i < len(results); i++ {
		if results[i].Confidence > results[i-1].Confidence {
			t.Errorf("results not sorted: %.1f before %.1f",
				results[i-1].Confidence, results[i].Confidence)
		}
	}
}

func TestDetector_Detect_CleanProject(t *testing.T) {
	scan := makeScan(
		"controllers/UserHttp.ts",
		"usecases/CreateUser.ts",
		"domain/User.ts",
		"infrastructure/UserRepo.ts",
	)
	// A domain file reaching into infrastructure breaks the inward
	// dependency rule.
	deps := map[string][]string{
		"domain/User.ts": {"infrastructure/UserRepo.ts"},
	}

	d := NewDetector(nil, DefaultDetectorOptions(), nil)
	results := d.Detect(context.Background(), scan, deps)
	if len(results) == 0 {
		t.Fatal("expected candidates")
	}

	top := results[0]
	if top.Pattern.Name != "Clean Architecture" {
		t.Fatalf("expected Clean Architecture on top, got %q", top.Pattern.Name)
	}
	if top.Confidence < 80 {
		t.Errorf("expected confidence >= 80, got %.1f", top.Confidence)
	}

	if len(top.Violations) != 1 {
		t.Fatalf("expected exactly one violation, got %d", len(top.Violations))
	}
	v := top.Violations[0]
	if v.SourceLayer != "domain" || v.TargetLayer != "infrastructure" {
		t.Errorf("expected domain->infrastructure violation, got %s->%s",
			v.SourceLayer, v.TargetLayer)
	}
	if v.Severity != ViolationSeverityError {
		t.Errorf("strict pattern violation must be an error, got %q", v.Severity)
	}
	if v.SourceFile != "domain/User.ts" || v.TargetFile != "infrastructure/UserRepo.ts" {
		t.Errorf("unexpected violation files: %+v", v)
	}
}

func TestDetector_Detect_NoPattern(t *testing.T) {
	scan := makeScan("stuff/one.ts", "junk/two.ts")
	d := NewDetector(nil, DefaultDetectorOptions(), nil)

	results := d.Detect(context.Background(), scan, nil)
	if len(results) != 0 {
		t.Errorf("expected no candidates for shapeless tree, got %d", len(results))
	}
}

// Adding matched indicator weight must never lower a pattern's score.
func TestDetector_ScoreMonotonicity(t *testing.T) {
	d := NewDetector(nil, DefaultDetectorOptions(), nil)
	paths := []string{"controllers/Home.ts"}

	base := &ArchitecturePattern{
		Name: "base",
		Layers: []Layer{
			{Name: "controllers", Aliases: []string{"controllers"}, Level: 1},
		},
		Indicators: []Indicator{
			{Description: "a", Pattern: regexp.MustCompile(`(?i)(^|/)controllers?(/|$)`), Weight: 30},
			{Description: "b", Pattern: regexp.MustCompile(`never-matches-zzz`), Weight: 20},
		},
		Strictness: StrictnessFlexible,
	}
	baseScore := d.scorePattern(base, paths, nil).Confidence

	t.Run("extra matched indicator", func(t *testing.T) {
		grown := *base
		grown.Indicators = append(append([]Indicator{}, base.Indicators...), Indicator{
			Description: "c",
			Pattern:     regexp.MustCompile(`(?i)(^|/)controllers?(/|$)`),
			Weight:      50,
		})
		score := d.scorePattern(&grown, paths, nil).Confidence
		if score < baseScore {
			t.Errorf("adding a matched indicator lowered score: %.2f -> %.2f", baseScore, score)
		}
	})

	t.Run("heavier matched indicator", func(t *testing.T) {
		heavier := *base
		heavier.Indicators = append([]Indicator{}, base.Indicators...)
		heavier.Indicators[0].Weight = 60
		score := d.scorePattern(&heavier, paths, nil).Confidence
		if score < baseScore {
			t.Errorf("raising a matched weight lowered score: %.2f -> %.2f", baseScore, score)
		}
	})
}

// A missing required indicator collapses the score to 30% but keeps
// the candidate computable.
func TestDetector_RequiredIndicatorPenalty(t *testing.T) {
	d := NewDetector(nil, DefaultDetectorOptions(), nil)
	paths := []string{"src/a.ts"}

	flexible := &ArchitecturePattern{
		Name:   "no-required",
		Layers: []Layer{{Name: "x", Aliases: []string{"x"}, Level: 1}},
		Indicators: []Indicator{
			{Description: "src", Pattern: regexp.MustCompile(`(?i)(^|/)src(/|$)`), Weight: 50},
			{Description: "zzz", Pattern: regexp.MustCompile(`never-zzz`), Weight: 50},
		},
	}
	required := &ArchitecturePattern{
		Name:   "with-required",
		Layers: flexible.Layers,
		Indicators: []Indicator{
			flexible.Indicators[0],
			{Description: "zzz", Pattern: regexp.MustCompile(`never-zzz`), Weight: 50, Required: true},
		},
	}

	without := d.scorePattern(flexible, paths, nil).Confidence
	with := d.scorePattern(required, paths, nil).Confidence

	if math.Abs(without-40.0) > 0.01 {
		t.Errorf("expected unpenalized score 40, got %.2f", without)
	}
	if math.Abs(with-without*requiredMissPenalty) > 0.01 {
		t.Errorf("expected penalized score %.2f, got %.2f", without*requiredMissPenalty, with)
	}
}

func TestDetector_ExternalBlend(t *testing.T) {
	t.Run("blends named candidate", func(t *testing.T) {
		scan, deps := mvcFixture()
		judge := &fakeClient{
			available: true,
			reply:     `Looks like MVC to me. {"pattern": "mvc", "confidence": 100, "reasoning": "controllers and models folders"}`,
		}
		d := NewDetector(judge, DefaultDetectorOptions(), nil)

		results := d.Detect(context.Background(), scan, deps)
		if judge.calls != 1 {
			t.Fatalf("expected one judge call, got %d", judge.calls)
		}

		var mvc, layered *DetectionResult
		for i := range results {
			switch results[i].Pattern.Name {
			case "MVC":
				mvc = &results[i]
			case "Layered":
				layered = &results[i]
			}
		}
		if mvc == nil || layered == nil {
			t.Fatalf("expected MVC and Layered candidates, got %d results", len(results))
		}

		// Heuristic MVC score is 70/100*80 + 2/3*20 = 69.33; blending
		// a 100-confidence external verdict at 40% gives 81.6.
		if math.Abs(mvc.Confidence-81.6) > 0.05 {
			t.Errorf("expected blended MVC confidence 81.6, got %.2f", mvc.Confidence)
		}
		if math.Abs(layered.Confidence-87.0) > 0.05 {
			t.Errorf("expected Layered untouched at 87, got %.2f", layered.Confidence)
		}

		// The prompt carries the directory shape and the candidates.
		prompt := judge.prompts[0]
		for _, want := range []string{"controllers", "MVC", "Layered"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("unavailable judge keeps heuristics", func(t *testing.T) {
		scan, deps := mvcFixture()
		judge := &fakeClient{available: false}
		d := NewDetector(judge, DefaultDetectorOptions(), nil)

		results := d.Detect(context.Background(), scan, deps)
		if judge.calls != 0 {
			t.Errorf("expected no judge calls, got %d", judge.calls)
		}
		if len(results) == 0 || results[0].Pattern.Name != "Layered" {
			t.Errorf("expected heuristic ranking with Layered on top")
		}
	})

	t.Run("malformed reply keeps heuristics", func(t *testing.T) {
		scan, deps := mvcFixture()
		judge := &fakeClient{available: true, reply: "definitely some architecture"}
		d := NewDetector(judge, DefaultDetectorOptions(), nil)

		results := d.Detect(context.Background(), scan, deps)
		var layered *DetectionResult
		for i := range results {
			if results[i].Pattern.Name == "Layered" {
				layered = &results[i]
			}
		}
		if layered == nil || math.Abs(layered.Confidence-87.0) > 0.05 {
			t.Errorf("expected Layered unchanged at 87")
		}
	})
}

func TestTopDirectories(t *testing.T) {
	scan := makeScan(
		"src/controllers/a.ts",
		"src/controllers/b.ts",
		"src/models/c.ts",
		"root.ts",
	)
	dirs := topDirectories(scan, 40)
	want := []string{"src", "src/controllers", "src/models"}
	if len(dirs) != len(want) {
		t.Fatalf("expected %v, got %v", want, dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dir %d: expected %q, got %q", i, want[i], dirs[i])
		}
	}
}
