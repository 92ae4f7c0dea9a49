// Package main provides the MCP server entry point for searching document indexes.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/bull/docindex/internal/app"
	"github.com/bull/docindex/internal/config"
	mcpserver "github.com/bull/docindex/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "config file (.yaml or .toml)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if enabled, _ := strconv.ParseBool(os.Getenv("GOPS")); enabled {
		startGops()
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := app.NewLogger(os.Stderr, *verbose)

	index, err := app.OpenIndex(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open index: %v", err)
	}
	defer index.Close()

	embedder, err := app.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}

	server := mcpserver.NewServer(&mcpserver.Config{
		Index:     index,
		Embedder:  embedder,
		IndexName: cfg.Server.Index,
		Logger:    logger,
	})

	mux := mcpserver.NewMux(server, index, nil)
	addr := "0.0.0.0:" + strconv.Itoa(cfg.Server.Port)

	if cfg.Server.HTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		httpServer := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()

		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health, index %q)", addr, cfg.Server.Index)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: the health endpoint still runs in the background for local testing
	go func() {
		log.Printf("Starting health server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Printf("Starting docindex MCP server (stdio mode, index %q)...", cfg.Server.Index)
	if err := server.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}
