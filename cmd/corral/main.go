// Corral: Workflow Lifecycle Orchestrator MCP Server
//
// A universal MCP server that keeps AI coding sessions inside a
// disciplined sprint lifecycle: plan behind quality gates, lock a
// scope manifesto, execute within its boundaries, and archive the
// result with a full audit trail.
//
// Usage:
//
//	corral serve    # Start MCP server (stdio transport)
package main

import (
	"fmt"
	"os"

	corralserver "github.com/corralhq/corral/internal/server"
	"github.com/corralhq/corral/internal/updater"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("corral v%s\n", corralserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := corralserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check. Prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	return server.ServeStdio(s)
}

// checkForUpdates runs a best-effort release check and prints a notice
// to stderr when a newer version exists. Network failures are silent.
func checkForUpdates() {
	result := updater.CheckVersion(corralserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  📦 Update available: v%s → v%s\n     Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Corral v%s — Workflow Lifecycle Orchestrator MCP Server

Usage:
  corral serve    Start the MCP server (stdio transport)

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "corral": {
        "command": "corral",
        "args": ["serve"]
      }
    }
  }

Project state lives in .corral/ at the project root; tunables go in
.corral/config.yaml (max_iterations, checkpoints, context_sources).
`, corralserver.Version)
}
