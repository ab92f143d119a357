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

import "testing"

func TestDefaultCatalog_Shape(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog) != 8 {
		t.Fatalf("expected 8 patterns, got %d", len(catalog))
	}

	wantNames := []string{
		"Clean Architecture", "Hexagonal", "Domain-Driven Design", "MVC",
		"MVVM", "Layered", "Microservices", "Feature-based",
	}
	for i, want := range wantNames {
		if catalog[i].Name != want {
			t.Errorf("pattern %d: expected %q, got %q", i, want, catalog[i].Name)
		}
	}

	for _, p := range catalog {
		if len(p.Layers) < 2 {
			t.Errorf("%s: expected at least 2 layers, got %d", p.Name, len(p.Layers))
		}
		if len(p.Indicators) == 0 {
			t.Errorf("%s: expected indicators", p.Name)
		}
		if p.FlowDirection == "" {
			t.Errorf("%s: missing flow direction", p.Name)
		}
		if p.Strictness != StrictnessStrict && p.Strictness != StrictnessFlexible {
			t.Errorf("%s: bad strictness %q", p.Name, p.Strictness)
		}

		seenLevels := make(map[int]bool)
		for i := range p.Layers {
			l := &p.Layers[i]
			if l.Name == "" {
				t.Errorf("%s: layer %d has no name", p.Name, i)
			}
			if l.Level <= 0 {
				t.Errorf("%s/%s: level must be positive, got %d", p.Name, l.Name, l.Level)
			}
			if seenLevels[l.Level] {
				t.Errorf("%s: duplicate layer level %d", p.Name, l.Level)
			}
			seenLevels[l.Level] = true
			if len(l.Aliases) == 0 {
				t.Errorf("%s/%s: expected aliases", p.Name, l.Name)
			}
		}

		total := 0
		for i := range p.Indicators {
			ind := &p.Indicators[i]
			if ind.Pattern == nil {
				t.Errorf("%s: indicator %q has nil pattern", p.Name, ind.Description)
			}
			if ind.Weight <= 0 {
				t.Errorf("%s: indicator %q has weight %d", p.Name, ind.Description, ind.Weight)
			}
			total += ind.Weight
		}
		if total != 100 {
			t.Errorf("%s: indicator weights sum to %d, want 100", p.Name, total)
		}
	}
}

// Every allowed-dependency entry must name a real layer of the same
// pattern, or violation checks would silently never fire for it.
func TestDefaultCatalog_AllowedDependenciesResolve(t *testing.T) {
	for _, p := range DefaultCatalog() {
		for i := range p.Layers {
			l := &p.Layers[i]
			for _, dep := range l.AllowedDependencies {
				if p.LayerByName(dep) == nil {
					t.Errorf("%s/%s: allowed dependency %q names no layer",
						p.Name, l.Name, dep)
				}
			}
		}
	}
}

func TestPatternByName(t *testing.T) {
	p, ok := PatternByName("mvc")
	if !ok || p.Name != "MVC" {
		t.Fatalf("expected MVC lookup to succeed, got %v %v", p, ok)
	}
	if _, ok := PatternByName("Space Elevator"); ok {
		t.Error("expected unknown pattern lookup to fail")
	}
}

func TestLayerAllows(t *testing.T) {
	l := Layer{Name: "business", AllowedDependencies: []string{"persistence"}}

	if !l.Allows("business") {
		t.Error("same-layer dependency must always be allowed")
	}
	if !l.Allows("persistence") {
		t.Error("listed dependency must be allowed")
	}
	if l.Allows("presentation") {
		t.Error("unlisted dependency must not be allowed")
	}
}

func TestPatternViolationSeverity(t *testing.T) {
	strict := &ArchitecturePattern{Strictness: StrictnessStrict}
	if got := strict.ViolationSeverityFor(); got != ViolationSeverityError {
		t.Errorf("strict pattern: expected error severity, got %q", got)
	}
	flexible := &ArchitecturePattern{Strictness: StrictnessFlexible}
	if got := flexible.ViolationSeverityFor(); got != ViolationSeverityWarning {
		t.Errorf("flexible pattern: expected warning severity, got %q", got)
	}
}
