// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianAtlas/cmd/atlas/config"
	"github.com/AleutianAI/AleutianAtlas/pkg/logging"
	"github.com/AleutianAI/AleutianAtlas/services/atlas"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	servePort  int
	serveDebug bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Atlas HTTP server",
	Long: `Expose the analysis service over HTTP.

The server offers the same operations as the CLI commands: full
analysis, standalone security scans, the pattern catalog, and saved
snapshots. Snapshot persistence is always on in server mode. Traces
and metrics are exported per the telemetry section of the config.

Examples:
  atlas serve                         # Listen on the configured port
  atlas serve --port 9090             # Override the port
  atlas serve --debug                 # Request logging + debug traces

Exit Codes:
  0 = Clean shutdown
  2 = Error (bind failure, store failure)`,
	Run: runServeCommand,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080,
		"Port to listen on (config value unless set)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false,
		"Enable debug mode")

	// Add to root
	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, args []string) {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, JSON: true, Service: "atlas-server"})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	port := servePort
	if !cmd.Flags().Changed("port") && config.Global.Service.Port > 0 {
		port = config.Global.Service.Port
	}

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfigFromGlobal())
	if err != nil {
		slog.Error("Failed to initialize telemetry", slog.String("error", err.Error()))
		os.Exit(exitError)
	}

	st, err := openSnapshotStore()
	if err != nil {
		slog.Error("Failed to open snapshot store", slog.String("error", err.Error()))
		os.Exit(exitError)
	}

	opts := []atlas.Option{
		atlas.WithStore(st),
		atlas.WithSecurityOptions(securityOptionsFromGlobal()),
	}
	if judge := newJudge(false); judge != nil {
		slog.Info("Judge configured", slog.String("type", config.Global.Judge.Type))
		opts = append(opts, atlas.WithJudge(judge))
	} else {
		slog.Info("No judge configured, AI validation stages disabled")
	}
	if metrics, merr := telemetry.NewMetrics(otel.Meter("atlas")); merr != nil {
		slog.Warn("Failed to create metrics instruments", slog.String("error", merr.Error()))
	} else {
		opts = append(opts, atlas.WithMetrics(metrics))
	}

	svc := atlas.NewService(serviceConfigFromGlobal(), opts...)
	handlers := atlas.NewHandlers(svc)

	// Set Gin mode
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if serveDebug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("atlas"))

	atlas.RegisterRoutes(&router.RouterGroup, handlers)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	printServeBanner(port)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Atlas server")
		if err := st.Close(); err != nil {
			slog.Warn("Snapshot store close failed", slog.String("error", err.Error()))
		}
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", port)
	slog.Info("Starting Atlas server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(exitError)
	}
}

// telemetryConfigFromGlobal maps the config file's telemetry section
// onto the telemetry package defaults.
func telemetryConfigFromGlobal() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = atlas.ServiceVersion

	tc := config.Global.Telemetry
	if tc.TraceExporter != "" {
		cfg.TraceExporter = tc.TraceExporter
	}
	if tc.MetricExporter != "" {
		cfg.MetricExporter = tc.MetricExporter
	}
	if tc.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = tc.OTLPEndpoint
	}
	if tc.SampleRate > 0 {
		cfg.SampleRate = tc.SampleRate
	}
	return cfg
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func printServeBanner(port int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      ALEUTIAN ATLAS SERVER                        ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Architecture mapping, data flows, and security scanning.         ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/healthz                          │  ║
║  │                                                             │  ║
║  │ # Analyze a project                                         │  ║
║  │ curl -X POST http://localhost:%d/v1/analyze \             │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"project_root": "/your/project/path"}'               │  ║
║  │                                                             │  ║
║  │ # Security scan only                                        │  ║
║  │ curl -X POST http://localhost:%d/v1/security/scan \       │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"project_root": "/your/project/path"}'               │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── POST /v1/analyze         Full architecture analysis          ║
║  ├── POST /v1/security/scan   Three-stage vulnerability scan      ║
║  ├── GET  /v1/patterns        Architecture pattern catalog        ║
║  ├── GET  /v1/snapshots       Saved analysis snapshots            ║
║  └── GET  /metrics            Prometheus metrics                  ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port, port)
}
