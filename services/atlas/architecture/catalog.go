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
	"regexp"
	"strings"
)

// defaultCatalog holds the built-in patterns, compiled once at package
// load. Entries are shared across runs; callers must treat them as
// read-only.
var defaultCatalog = []*ArchitecturePattern{
	cleanPattern(),
	hexagonalPattern(),
	dddPattern(),
	mvcPattern(),
	mvvmPattern(),
	layeredPattern(),
	microservicesPattern(),
	featureBasedPattern(),
}

// DefaultCatalog returns the built-in pattern catalog.
func DefaultCatalog() []*ArchitecturePattern {
	return defaultCatalog
}

// PatternByName looks a pattern up by name, case-insensitively.
func PatternByName(name string) (*ArchitecturePattern, bool) {
	for _, p := range defaultCatalog {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// rx compiles a path regex for catalog entries.
func rx(expr string) *regexp.Regexp {
	return regexp.MustCompile(expr)
}

// rxs compiles several path regexes.
func rxs(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, rx(e))
	}
	return out
}

// cleanPattern describes Clean Architecture: use cases around a pure
// domain, frameworks and drivers at the rim, dependencies pointing
// inward.
func cleanPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "Clean Architecture",
		Description: "Use-case driven design with a framework-free domain core and inward-pointing dependencies.",
		Layers: []Layer{
			{
				Name:                "presentation",
				Aliases:             []string{"presentation", "controllers", "api", "web", "ui", "handlers", "delivery"},
				Patterns:            rxs(`(?i)(controller|handler)s?\.[a-z]+$`),
				Level:               1,
				AllowedDependencies: []string{"application", "domain"},
			},
			{
				Name:                "application",
				Aliases:             []string{"application", "usecases", "use_cases", "use-cases", "interactors", "app"},
				Patterns:            rxs(`(?i)(usecase|use_case|interactor)s?\.[a-z]+$`),
				Level:               2,
				AllowedDependencies: []string{"domain"},
			},
			{
				Name:                "domain",
				Aliases:             []string{"domain", "entities", "core", "model", "models"},
				Patterns:            rxs(`(?i)entit(y|ies)\.[a-z]+$`),
				Level:               3,
				AllowedDependencies: []string{},
			},
			{
				Name:                "infrastructure",
				Aliases:             []string{"infrastructure", "infra", "persistence", "repositories", "db", "database", "external", "frameworks"},
				Patterns:            rxs(`(?i)repositor(y|ies)[^/]*\.[a-z]+$`),
				Level:               4,
				AllowedDependencies: []string{"application", "domain"},
			},
		},
		Indicators: []Indicator{
			{
				Description: "use-case layer",
				Pattern:     rx(`(?i)(^|/)(usecases?|use_cases?|use-cases?|interactors?|application)(/|$)`),
				Weight:      30,
				Required:    true,
			},
			{
				Description: "domain entities",
				Pattern:     rx(`(?i)(^|/)(domain|entities)(/|$)`),
				Weight:      30,
				Required:    true,
			},
			{
				Description: "infrastructure layer",
				Pattern:     rx(`(?i)(^|/)(infrastructure|infra|frameworks?)(/|$)`),
				Weight:      25,
			},
			{
				Description: "interface adapters",
				Pattern:     rx(`(?i)(^|/)(adapters?|gateways?|presenters?)(/|$)`),
				Weight:      15,
			},
		},
		FlowDirection: FlowInward,
		Strictness:    StrictnessStrict,
	}
}

// hexagonalPattern describes Ports & Adapters: a core reached only
// through ports, with driving and driven adapters on the outside.
func hexagonalPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "Hexagonal",
		Description: "Ports and adapters around an isolated application core.",
		Layers: []Layer{
			{
				Name:                "adapters-in",
				Aliases:             []string{"adapters/in", "adapters/inbound", "adapters/primary", "adapters/driving", "driving", "rest", "http", "web"},
				Patterns:            rxs(`(?i)(^|/)adapters?/[^/]*(controller|rest|http|graphql|grpc)`),
				Level:               1,
				AllowedDependencies: []string{"ports", "core"},
			},
			{
				Name:                "ports",
				Aliases:             []string{"ports", "port"},
				Patterns:            rxs(`(?i)[/_-]ports?\.[a-z]+$`),
				Level:               2,
				AllowedDependencies: []string{"core"},
			},
			{
				Name:                "core",
				Aliases:             []string{"core", "domain", "hexagon", "application"},
				Level:               3,
				AllowedDependencies: []string{"ports"},
			},
			{
				Name:                "adapters-out",
				Aliases:             []string{"adapters/out", "adapters/outbound", "adapters/secondary", "adapters/driven", "driven", "persistence", "repositories"},
				Patterns:            rxs(`(?i)(^|/)adapters?/[^/]*(repository|persistence|storage|db|client)`),
				Level:               4,
				AllowedDependencies: []string{"ports", "core"},
			},
		},
		Indicators: []Indicator{
			{
				Description: "ports folder",
				Pattern:     rx(`(?i)(^|/)ports?(/|$)`),
				Weight:      35,
				Required:    true,
			},
			{
				Description: "adapters folder",
				Pattern:     rx(`(?i)(^|/)adapters?(/|$)`),
				Weight:      35,
				Required:    true,
			},
			{
				Description: "domain core",
				Pattern:     rx(`(?i)(^|/)(core|domain|hexagon)(/|$)`),
				Weight:      20,
			},
			{
				Description: "driving/driven split",
				Pattern:     rx(`(?i)(^|/)(driving|driven|primary|secondary|inbound|outbound)(/|$)`),
				Weight:      10,
			},
		},
		FlowDirection: FlowInward,
		Strictness:    StrictnessStrict,
	}
}

// dddPattern describes tactical Domain-Driven Design: a rich domain
// model behind application services, infrastructure at the edge.
func dddPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "Domain-Driven Design",
		Description: "Aggregates, value objects, and domain events behind application services.",
		Layers: []Layer{
			{
				Name:                "interface",
				Aliases:             []string{"interface", "interfaces", "api", "presentation", "ui", "rest"},
				Patterns:            rxs(`(?i)controllers?\.[a-z]+$`),
				Level:               1,
				AllowedDependencies: []string{"application", "domain"},
			},
			{
				Name:                "application",
				Aliases:             []string{"application", "app", "appservices", "application_services"},
				Patterns:            rxs(`(?i)(app_?service|application_?service)s?\.[a-z]+$`),
				Level:               2,
				AllowedDependencies: []string{"domain"},
			},
			{
				Name:                "domain",
				Aliases:             []string{"domain", "aggregates", "entities", "valueobjects", "value_objects", "events", "model"},
				Patterns:            rxs(`(?i)(aggregate|valueobject|value_object|domain_?event)s?\.[a-z]+$`),
				Level:               3,
				AllowedDependencies: []string{},
			},
			{
				Name:                "infrastructure",
				Aliases:             []string{"infrastructure", "infra", "persistence", "repositories"},
				Patterns:            rxs(`(?i)repositor(y|ies)[^/]*impl[^/]*\.[a-z]+$`),
				Level:               4,
				AllowedDependencies: []string{"domain", "application"},
			},
		},
		Indicators: []Indicator{
			{
				Description: "domain model",
				Pattern:     rx(`(?i)(^|/)domain(/|$)`),
				Weight:      30,
				Required:    true,
			},
			{
				Description: "aggregates or value objects",
				Pattern:     rx(`(?i)(aggregate|valueobject|value_object|domain_?event)s?`),
				Weight:      25,
			},
			{
				Description: "application services",
				Pattern:     rx(`(?i)(^|/)(application|app_?services?)(/|$)`),
				Weight:      20,
			},
			{
				Description: "repositories",
				Pattern:     rx(`(?i)repositor(y|ies)`),
				Weight:      15,
			},
			{
				Description: "bounded contexts",
				Pattern:     rx(`(?i)(^|/)(bounded_?contexts?|contexts?)(/|$)`),
				Weight:      10,
			},
		},
		FlowDirection: FlowInward,
		Strictness:    StrictnessStrict,
	}
}

// mvcPattern describes classic Model-View-Controller.
func mvcPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "MVC",
		Description: "Controllers receive requests, models hold state, views render it.",
		Layers: []Layer{
			{
				Name:                "controllers",
				Aliases:             []string{"controllers", "controller"},
				Patterns:            rxs(`(?i)controllers?\.[a-z]+$`),
				Level:               1,
				AllowedDependencies: []string{"models", "views"},
			},
			{
				Name:                "views",
				Aliases:             []string{"views", "view", "templates", "pages"},
				Patterns:            rxs(`(?i)views?\.[a-z]+$`),
				Level:               2,
				AllowedDependencies: []string{"models"},
			},
			{
				Name:                "models",
				Aliases:             []string{"models", "model"},
				Patterns:            rxs(`(?i)models?\.[a-z]+$`),
				Level:               3,
				AllowedDependencies: []string{},
			},
		},
		Indicators: []Indicator{
			{
				Description: "controllers folder",
				Pattern:     rx(`(?i)(^|/)controllers?(/|$)`),
				Weight:      35,
				Required:    true,
			},
			{
				Description: "models folder",
				Pattern:     rx(`(?i)(^|/)models?(/|$)`),
				Weight:      35,
				Required:    true,
			},
			{
				Description: "views folder",
				Pattern:     rx(`(?i)(^|/)(views?|templates)(/|$)`),
				Weight:      20,
			},
			{
				Description: "route definitions",
				Pattern:     rx(`(?i)(^|/)routes?(/|\.[a-z]+$)`),
				Weight:      10,
			},
		},
		FlowDirection: FlowTopDown,
		Strictness:    StrictnessFlexible,
	}
}

// mvvmPattern describes Model-View-ViewModel.
func mvvmPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "MVVM",
		Description: "Views bound to view models that project model state.",
		Layers: []Layer{
			{
				Name:                "views",
				Aliases:             []string{"views", "view", "pages", "screens"},
				Patterns:            rxs(`(?i)views?\.[a-z]+$`),
				Level:               1,
				AllowedDependencies: []string{"viewmodels"},
			},
			{
				Name:                "viewmodels",
				Aliases:             []string{"viewmodels", "viewmodel", "vm"},
				Patterns:            rxs(`(?i)view_?models?\.[a-z]+$`),
				Level:               2,
				AllowedDependencies: []string{"models"},
			},
			{
				Name:                "models",
				Aliases:             []string{"models", "model", "data", "entities"},
				Patterns:            rxs(`(?i)models?\.[a-z]+$`),
				Level:               3,
				AllowedDependencies: []string{},
			},
		},
		Indicators: []Indicator{
			{
				Description: "view models",
				Pattern:     rx(`(?i)view_?models?`),
				Weight:      50,
				Required:    true,
			},
			{
				Description: "views folder",
				Pattern:     rx(`(?i)(^|/)(views?|pages|screens)(/|$)`),
				Weight:      25,
			},
			{
				Description: "models folder",
				Pattern:     rx(`(?i)(^|/)models?(/|$)`),
				Weight:      25,
			},
		},
		FlowDirection: FlowTopDown,
		Strictness:    StrictnessFlexible,
	}
}

// layeredPattern describes a conventional n-tier stack.
func layeredPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "Layered",
		Description: "Presentation over business logic over persistence over the database.",
		Layers: []Layer{
			{
				Name:                "presentation",
				Aliases:             []string{"presentation", "ui", "web", "controllers", "views", "api"},
				Patterns:            rxs(`(?i)controllers?\.[a-z]+$`),
				Level:               1,
				AllowedDependencies: []string{"business"},
			},
			{
				Name:                "business",
				Aliases:             []string{"business", "services", "service", "logic", "bll"},
				Patterns:            rxs(`(?i)services?\.[a-z]+$`),
				Level:               2,
				AllowedDependencies: []string{"persistence"},
			},
			{
				Name:                "persistence",
				Aliases:             []string{"persistence", "repositories", "repository", "dal", "data", "models"},
				Patterns:            rxs(`(?i)(repositor(y|ies)|models?)\.[a-z]+$`),
				Level:               3,
				AllowedDependencies: []string{"database"},
			},
			{
				Name:                "database",
				Aliases:             []string{"database", "db", "migrations"},
				Level:               4,
				AllowedDependencies: []string{},
			},
		},
		Indicators: []Indicator{
			{
				Description: "presentation layer",
				Pattern:     rx(`(?i)(^|/)(presentation|controllers?|views?|ui|web)(/|$)`),
				Weight:      30,
			},
			{
				Description: "business layer",
				Pattern:     rx(`(?i)(^|/)(business|services?|logic|bll)(/|$)`),
				Weight:      30,
			},
			{
				Description: "data layer",
				Pattern:     rx(`(?i)(^|/)(persistence|repositor(y|ies)|dal|data|models?)(/|$)`),
				Weight:      30,
			},
			{
				Description: "database layer",
				Pattern:     rx(`(?i)(^|/)(database|db|migrations)(/|$)`),
				Weight:      10,
			},
		},
		FlowDirection: FlowTopDown,
		Strictness:    StrictnessFlexible,
	}
}

// microservicesPattern describes a service-per-folder decomposition
// behind a gateway.
func microservicesPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "Microservices",
		Description: "Independent services behind an API gateway, sharing only contracts.",
		Layers: []Layer{
			{
				Name:                "gateway",
				Aliases:             []string{"gateway", "api-gateway", "api_gateway", "apigateway", "bff", "edge"},
				Patterns:            rxs(`(?i)gateways?\.[a-z]+$`),
				Level:               1,
				AllowedDependencies: []string{"services", "shared"},
			},
			{
				Name:                "services",
				Aliases:             []string{"services", "svc", "microservices", "apps"},
				Patterns:            rxs(`(?i)(^|/)[a-z0-9-]+[-_](service|svc)(/|\.[a-z]+$)`),
				Level:               2,
				AllowedDependencies: []string{"shared"},
			},
			{
				Name:                "shared",
				Aliases:             []string{"shared", "common", "pkg", "libs", "lib", "proto", "contracts"},
				Level:               3,
				AllowedDependencies: []string{},
			},
		},
		Indicators: []Indicator{
			{
				Description: "api gateway",
				Pattern:     rx(`(?i)(^|/)(gateway|api[-_]?gateway|bff|edge)(/|$)`),
				Weight:      35,
				Required:    true,
			},
			{
				Description: "service-per-folder naming",
				Pattern:     rx(`(?i)(^|/)[a-z0-9-]+[-_](service|svc)(/|$)`),
				Weight:      30,
			},
			{
				Description: "shared contracts",
				Pattern:     rx(`(?i)(^|/)(proto|contracts|shared|common)(/|$)`),
				Weight:      20,
			},
			{
				Description: "deployment manifests",
				Pattern:     rx(`(?i)(^|/)(deployments?|k8s|kubernetes|charts?|compose)(/|$)`),
				Weight:      15,
			},
		},
		FlowDirection: FlowBidirectional,
		Strictness:    StrictnessFlexible,
	}
}

// featureBasedPattern describes vertical slicing by feature.
func featureBasedPattern() *ArchitecturePattern {
	return &ArchitecturePattern{
		Name:        "Feature-based",
		Description: "Vertical feature slices over a small shared core.",
		Layers: []Layer{
			{
				Name:                "features",
				Aliases:             []string{"features", "feature", "modules"},
				Level:               1,
				AllowedDependencies: []string{"core", "shared"},
			},
			{
				Name:                "core",
				Aliases:             []string{"core", "app"},
				Level:               2,
				AllowedDependencies: []string{"shared"},
			},
			{
				Name:                "shared",
				Aliases:             []string{"shared", "common", "lib", "libs", "utils"},
				Level:               3,
				AllowedDependencies: []string{},
			},
		},
		Indicators: []Indicator{
			{
				Description: "features folder",
				Pattern:     rx(`(?i)(^|/)(features?|modules)(/|$)`),
				Weight:      50,
				Required:    true,
			},
			{
				Description: "shared folder",
				Pattern:     rx(`(?i)(^|/)(shared|common|libs?)(/|$)`),
				Weight:      25,
			},
			{
				Description: "core folder",
				Pattern:     rx(`(?i)(^|/)(core|app)(/|$)`),
				Weight:      25,
			},
		},
		FlowDirection: FlowBidirectional,
		Strictness:    StrictnessFlexible,
	}
}
