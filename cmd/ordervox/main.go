// Command ordervox serves voice menu-ordering sessions over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/ordervox/internal/app"
	"github.com/MrWong99/ordervox/internal/config"
	"github.com/MrWong99/ordervox/internal/observe"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	checkOnly := flag.Bool("check", false, "validate the configuration and menu, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ordervox: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ordervox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("ordervox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Config hot reload ─────────────────────────────────────────────────────
	// The callback only fires from Run, after application is assigned.
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config, diff config.ConfigDiff) {
		application.ApplyConfig(old, new, diff)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err = app.New(ctx, cfg,
		app.WithRegistry(reg),
		app.WithLogLevel(&level),
		app.WithConfigWatcher(watcher),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *checkOnly {
		slog.Info("configuration ok", "menu_items", application.Catalog().Snapshot().Vocabulary.Len())
		_ = application.Shutdown(context.Background())
		return 0
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       ordervox · startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Menu", cfg.Menu.Path)
	printRow("History", string(cfg.History.Backend))
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model, len(cfg.Providers.STTFallbacks))
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model, len(cfg.Providers.TTSFallbacks))
	if cfg.Recognition.PhoneticCorrection {
		printRow("Correction", "phonetic")
	} else {
		printRow("Correction", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string, fallbacks int) {
	value := name
	switch {
	case value == "":
		value = "(not configured)"
	case model != "":
		value = name + " / " + model
	}
	if fallbacks > 0 {
		value = fmt.Sprintf("%s +%d", value, fallbacks)
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}
