// Guardlens MCP Server - exposes the simulated dashboard as MCP tools for LLMs
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/guardlens/internal/apiclient"
	"github.com/mbd888/guardlens/internal/mcpserver"
)

func main() {
	timeout, err := time.ParseDuration(envOrDefault("GUARDLENS_API_TIMEOUT", "15s"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid GUARDLENS_API_TIMEOUT: %v\n", err)
		os.Exit(1)
	}

	client := apiclient.New(apiclient.Config{
		BaseURL: envOrDefault("GUARDLENS_API_URL", apiclient.DefaultURL),
		Timeout: timeout,
	})

	s := mcpserver.NewMCPServer(client)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
