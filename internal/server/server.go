// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/corralhq/corral/internal/audit"
	"github.com/corralhq/corral/internal/boundary"
	"github.com/corralhq/corral/internal/config"
	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/corralhq/corral/internal/prompts"
	"github.com/corralhq/corral/internal/registry"
	"github.com/corralhq/corral/internal/resources"
	"github.com/corralhq/corral/internal/tools"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the audit store and the registry
// watcher and must be called on shutdown (typically via defer). It is
// always non-nil and safe to call even if those subsystems failed to
// initialize.
func New() (*mcpserver.MCPServer, func(), error) {
	projectRoot, err := findServerRoot()
	if err != nil {
		return nil, noop, fmt.Errorf("resolving project root: %w", err)
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		log.Printf("WARNING: config unreadable, using defaults: %v", err)
		cfg = config.Default()
	}

	// --- Create shared dependencies ---

	store := registry.NewFileStore()
	store.SetRetries(cfg.PersistRetries)

	machine := lifecycle.NewMachine(store, lifecycle.Options{
		MaxIterations: cfg.MaxIterations,
		Checkpoints:   cfg.Checkpoints,
	})

	// Audit is an independent subsystem: if it fails to initialize,
	// everything else keeps working. Denials and transitions then go
	// unrecorded, which the audit_log tool reports.
	auditStore, auditErr := audit.New(registry.StatePath(projectRoot))
	if auditErr != nil {
		log.Printf("WARNING: audit subsystem disabled: %v", auditErr)
		auditStore = nil
	}

	machine.SetRecorder(auditStore)
	guard := boundary.NewGuard(auditStore)

	// Watch the registry file so external edits are at least visible
	// in the server log while a session is running.
	watcher, watchErr := registry.WatchRegistry(projectRoot)
	if watchErr != nil {
		log.Printf("WARNING: registry watcher disabled: %v", watchErr)
	} else {
		go func() {
			for ev := range watcher.Events {
				log.Printf("registry changed on disk (%s): %s", ev.Op, ev.Path)
			}
		}()
	}

	cleanup := func() {
		if watcher != nil {
			if err := watcher.Close(); err != nil {
				log.Printf("WARNING: registry watcher close: %v", err)
			}
		}
		if auditStore != nil {
			if err := auditStore.Close(); err != nil {
				log.Printf("WARNING: audit store close: %v", err)
			}
		}
	}

	// --- Create the MCP server ---

	s := mcpserver.NewMCPServer(
		"corral",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions()),
	)

	// --- Register foundation and planning tools ---

	foundationTool := tools.NewFoundationInitTool(store, cfg.ContextSources)
	s.AddTool(foundationTool.Definition(), foundationTool.Handle)

	gateTool := tools.NewGateUpdateTool(store)
	s.AddTool(gateTool.Definition(), gateTool.Handle)

	contextTool := tools.NewContextCheckTool(store)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	// --- Register sprint lifecycle tools ---

	startTool := tools.NewSprintStartTool(machine)
	s.AddTool(startTool.Definition(), startTool.Handle)

	lockTool := tools.NewSprintLockTool(machine)
	s.AddTool(lockTool.Definition(), lockTool.Handle)

	advanceTool := tools.NewSprintAdvanceTool(machine)
	s.AddTool(advanceTool.Definition(), advanceTool.Handle)

	pauseTool := tools.NewSprintPauseTool(machine)
	s.AddTool(pauseTool.Definition(), pauseTool.Handle)

	resumeTool := tools.NewSprintResumeTool(machine)
	s.AddTool(resumeTool.Definition(), resumeTool.Handle)

	completeTool := tools.NewSprintCompleteTool(machine)
	s.AddTool(completeTool.Definition(), completeTool.Handle)

	abandonTool := tools.NewSprintAbandonTool(machine)
	s.AddTool(abandonTool.Definition(), abandonTool.Handle)

	statusTool := tools.NewSprintStatusTool(store)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	// --- Register enforcement and recovery tools ---

	boundaryTool := tools.NewBoundaryCheckTool(store, guard)
	s.AddTool(boundaryTool.Definition(), boundaryTool.Handle)

	recoverTool := tools.NewRecoverTool(store, cfg.ContextSources, auditStore)
	s.AddTool(recoverTool.Definition(), recoverTool.Handle)

	auditTool := tools.NewAuditLogTool(auditStore)
	s.AddTool(auditTool.Definition(), auditTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when optional
// subsystems haven't been initialized.
func noop() {}

// findServerRoot walks up from cwd looking for a .corral/ directory,
// falling back to cwd for fresh projects.
func findServerRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		candidate := filepath.Join(current, registry.StateDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}

// serverInstructions returns the system instructions that tell the AI
// how to work under Corral's sprint discipline.
func serverInstructions() string {
	return `You have access to Corral, a workflow lifecycle orchestrator MCP server.

## WHEN TO ACTIVATE Corral

Use Corral whenever the user starts a non-trivial piece of work:
- Building a new feature or subsystem
- A refactor that touches more than a couple of files
- Any work the user wants tracked through planning, execution, testing and evaluation

## THE DISCIPLINE

1. Check state first: run corral_sprint_status before anything else.
2. Foundation before sprints: corral_foundation_init must have pinned the
   project's context hash before corral_sprint_start will work.
3. Plan before you touch code: work the planning checklist with
   corral_gate_update. Every gate must pass before the manifesto locks.
4. Locking is a human decision: ask the user for explicit approval before
   calling corral_sprint_lock, and pass their approval token through.
5. Stay inside the fence: during execution, call corral_boundary_check
   before every file write or delete. A denial is final; do not work
   around it. Widen scope by abandoning and re-planning the sprint.
6. Advance honestly: one corral_sprint_advance per work iteration. When a
   checkpoint asks for an assessment, give the user a real progress report.
7. Context drift matters: run corral_context_check when returning to a
   project. Stale context means re-planning, not pushing on.

Registry state lives in .corral/ at the project root. If it is ever
corrupted, corral_recover rebuilds what it can and reports its confidence.`
}
