package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mkonda/probemux/internal/config"
	"github.com/mkonda/probemux/internal/logger"
	"github.com/mkonda/probemux/internal/monitoring"
	"github.com/mkonda/probemux/internal/session"
	"github.com/mkonda/probemux/internal/store"
	"github.com/mkonda/probemux/internal/tools"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "", "Path to configuration file")
	debugMode := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if specified via flag
	if *debugMode {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
	}

	// Keep the standard logger off stdout, which carries JSON-RPC traffic
	log.SetOutput(os.Stderr)

	appLogger, err := logger.NewLogger(&cfg.Logging, "probemux")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting probe session supervisor", map[string]any{
		"version": cfg.Server.Version,
		"debug":   cfg.Server.Debug,
	})

	// Open the findings index if enabled
	var index *store.Store
	if cfg.Store.Enable {
		index, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open findings index: %v", err)
		}
		defer index.Close()

		appLogger.Info("Findings index opened", map[string]any{
			"path": cfg.Store.Path,
		})
	}

	// Create the session registry
	registry, err := session.NewRegistry(session.Options{
		Executable:    cfg.Worker.Executable,
		MaxSessions:   cfg.Worker.MaxSessions,
		ShutdownGrace: cfg.Worker.ShutdownGrace,
		MaxLineBytes:  cfg.Worker.MaxLineBytes,
	}, appLogger.WithComponent("registry"), index)
	if err != nil {
		log.Fatalf("Failed to create session registry: %v", err)
	}
	// Workers run in their own process groups; they must not outlive the
	// supervisor on any exit path, including client disconnect.
	defer registry.Shutdown()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start resource monitoring if enabled
	var monitor *monitoring.ResourceMonitor
	if cfg.Monitoring.Enable {
		monitor = monitoring.NewResourceMonitor(appLogger.WithComponent("monitoring"), cfg.Monitoring.Interval)
		monitor.SetCounters(registry.Count, registry.Running)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	supervisorTools := tools.NewSupervisorTools(registry, index, monitor, appLogger.WithComponent("tools"), cfg)

	// Create MCP server
	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)

	// Register session start tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_session",
		Description: "Spawn a supervised probe worker process and begin capturing its output. Statistics lines, findings, and raw output are classified concurrently as the worker runs. Returns the session ID immediately; use get_session to observe progress and completion.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"client": {
					Type:        "string",
					Description: "Identifier of the client that owns this session. Used for grouping sessions and findings.",
				},
				"argv": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Argument vector for the probe worker, e.g. [\"ssh\", \"--target\", \"10.0.0.5\", \"--username\", \"root\"]. Validated against the worker flag schema before any process is spawned.",
				},
			},
			Required: []string{"client", "argv"},
		},
	}, supervisorTools.StartSession)

	// Register session stop tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "stop_session",
		Description: "Send SIGTERM to a running session's worker process group. Stopping is best effort: the session remains registered and its captured output stays available. Completion is recorded when the process actually exits.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "ID of the session to stop, as returned by start_session.",
				},
			},
			Required: []string{"session_id"},
		},
	}, supervisorTools.StopSession)

	// Register session inspection tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get a point-in-time snapshot of one session: latest statistics, accumulated findings, raw output lines, and completion state if the worker has exited.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "ID of the session to inspect.",
				},
			},
			Required: []string{"session_id"},
		},
	}, supervisorTools.GetSession)

	// Register session listing tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List snapshots of all registered sessions, running and completed, keyed by session ID. Includes total and running counts.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, supervisorTools.ListSessions)

	// Register findings search tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_findings",
		Description: "Search the findings index across all sessions. Filter by session, client, plugin, target substring, data substring, and time range. Results are ordered newest first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {
					Type:        "string",
					Description: "Optional: restrict results to one session.",
				},
				"client": {
					Type:        "string",
					Description: "Optional: restrict results to one client.",
				},
				"plugin": {
					Type:        "string",
					Description: "Optional: exact plugin name, e.g. 'ssh' or 'http.basic'.",
				},
				"target": {
					Type:        "string",
					Description: "Optional: substring match on the finding target.",
				},
				"data": {
					Type:        "string",
					Description: "Optional: substring match on the finding data.",
				},
				"start_time": {
					Type:        "string",
					Description: "Optional: RFC 3339 lower bound on recording time.",
				},
				"end_time": {
					Type:        "string",
					Description: "Optional: RFC 3339 upper bound on recording time.",
				},
				"limit": {
					Type:        "integer",
					Description: "Optional: maximum results to return. Default: 100. Maximum: 1000.",
				},
			},
		},
	}, supervisorTools.SearchFindings)

	// Register resource status tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_resource_status",
		Description: "Report supervisor resource usage: goroutine count, memory, GC activity, session and running worker counts, plus goroutine leak detection.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"force_gc": {
					Type:        "boolean",
					Description: "Optional: run a garbage collection before measuring.",
				},
				"leak_threshold": {
					Type:        "integer",
					Description: "Optional: goroutine count above which a leak is reported. Default: 50.",
				},
				"include_history": {
					Type:        "boolean",
					Description: "Optional: include the retained metrics history in the response.",
				},
			},
		},
	}, supervisorTools.GetResourceStatus)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, stopping workers...")
		registry.Shutdown()
		cancel()
	}()

	appLogger.Info("Probe session supervisor is running", map[string]any{
		"max_sessions":   cfg.Worker.MaxSessions,
		"shutdown_grace": cfg.Worker.ShutdownGrace.String(),
		"store_enabled":  cfg.Store.Enable,
	})

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		appLogger.Error("Server error", err)
		// os.Exit skips deferred cleanup; stop the workers first.
		registry.Shutdown()
		appLogger.Close()
		os.Exit(1)
	}

	appLogger.Info("Probe session supervisor shutdown completed")
}
