// Command toolserver exposes the gateway's tools to MCP clients over stdio.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lexiqai/llm-gateway/internal/config"
	"github.com/lexiqai/llm-gateway/internal/observability"
	"github.com/lexiqai/llm-gateway/internal/tools"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty).
		With().Str("component", "toolserver").Logger()

	registry := tools.NewDefaultRegistry(cfg, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
	logger.Info().Strs("tools", registry.Names()).Msg("Starting MCP tool server")

	if err := server.ServeStdio(tools.NewMCPServer(registry, version)); err != nil {
		logger.Error().Err(err).Msg("MCP server stopped")
		os.Exit(1)
	}
}
