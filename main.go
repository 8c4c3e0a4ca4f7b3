package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monarch/pkg/agent"
	"monarch/pkg/channels"
	_ "monarch/pkg/channels/autoload" // Register channel factories
	"monarch/pkg/config"
	"monarch/pkg/gateway"
	"monarch/pkg/handler"
	"monarch/pkg/llm"
	_ "monarch/pkg/llm/autoload" // Register LLM providers
	"monarch/pkg/monitor"
	"monarch/pkg/store"
	"monarch/pkg/tasks"
	"monarch/pkg/tools"
)

func main() {
	// --- 0. Configuration ---
	cfg, sysCfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	monitor.SetupSlog(sysCfg.LogLevel)
	monitor.PrintBanner()

	// --- 1. Persistence ---
	storePath := cfg.StorePath
	if storePath == "" {
		storePath = "data/monarch.db"
	}
	db, err := store.Open(storePath)
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}
	defer db.Close()

	// --- 2. Models ---
	decision, delegates, err := llm.NewFromConfig(cfg.Decision, cfg.Delegates, sysCfg)
	if err != nil {
		log.Fatalf("❌ Failed to init models: %v", err)
	}
	slog.Info("Models ready", "decision", decision.Model(), "delegates", delegates.Names())

	// --- 3. Tools ---
	workspaceDir := cfg.Workspace
	if workspaceDir == "" {
		workspaceDir = "data/workspace"
	}
	ws, err := tools.NewWorkspace(workspaceDir)
	if err != nil {
		log.Fatalf("❌ Failed to init workspace: %v", err)
	}

	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		tools.NewReadFileTool(ws),
		tools.NewWriteFileTool(ws),
		tools.NewDocumentAnalysisTool(ws),
		tools.NewInternetSearchTool(),
		tools.NewAgentStateTool(db),
	} {
		if err := registry.Register(t); err != nil {
			log.Fatalf("❌ Failed to register tool %s: %v", t.Name(), err)
		}
	}
	slog.Info("Tools registered", "tools", registry.Names())

	// --- 4. Engine and background tasks ---
	engine := agent.NewEngine(decision, delegates, registry, sysCfg, db, cfg.Persona)
	runner := tasks.NewRunner(db, time.Duration(sysCfg.TaskDurationMs)*time.Millisecond)

	// --- 5. Gateway ---
	chatHandler := handler.NewChatHandler(engine, db, sysCfg)
	deps := channels.Deps{System: sysCfg, Config: cfg, Store: db, Tasks: runner}

	gw, err := gateway.NewGatewayBuilder().
		WithSystemConfig(sysCfg).
		WithMonitor(monitor.NewCLIMonitor()).
		WithChannel(channels.BuildFromConfig(cfg.Channels, deps)...).
		WithHandler(chatHandler).
		Build()
	if err != nil {
		log.Fatalf("❌ Failed to build gateway: %v", err)
	}

	// --- 6. Persona hot reload ---
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	reload := config.WatchConfig(watchCtx, "config.json")
	go func() {
		for range reload {
			fresh, _, err := config.Load()
			if err != nil {
				slog.Warn("Config reload failed, keeping previous persona", "error", err)
				continue
			}
			engine.SetPersona(fresh.Persona)
			slog.Info("Persona reloaded")
		}
	}()

	// --- 7. Wait for shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Received shutdown signal, stopping services")
	cancelWatch()
	gw.StopAll()
	runner.Wait()
	slog.Info("Bye")
}
