// Command elektron is the main entry point for the Elektron clinical
// documentation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/elektron/internal/app"
	"github.com/MrWong99/elektron/internal/config"
	"github.com/MrWong99/elektron/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if application != nil {
			application.ApplyConfig(old, new)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "elektron: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "elektron: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("elektron starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)

	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, providers)

	application, err = app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.MetricsHandler()),
		app.WithLogLevel(level),
		app.WithWatcher(watcher),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	code := 0
	if runErr != nil {
		code = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Startup summary ───────────────────────────────────────────────────────────

const summaryWidth = 19

func printStartupSummary(cfg *config.Config, providers *app.Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Elektron: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	if providers.LLM.Provider == nil && providers.LLMUnavailable != nil {
		printRow("LLM", "(unavailable)")
	} else {
		printProvider("LLM", providers.LLM.Name, modelOf(cfg, providers.LLM.Name))
	}
	printRow("LLM fallbacks", fmt.Sprint(len(providers.LLMFallbacks)))
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printRow("STT fallbacks", fmt.Sprint(len(providers.STTFallbacks)))
	printRow("Usage store", string(cfg.Usage.Backend))
	if len(cfg.Events.Brokers) > 0 {
		printRow("Events", "kafka")
	} else {
		printRow("Events", "(log only)")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// modelOf returns the configured model of the LLM entry called name.
func modelOf(cfg *config.Config, name string) string {
	for _, e := range append([]config.ProviderEntry{cfg.Providers.LLM}, cfg.Providers.LLMFallbacks...) {
		if e.Name == name {
			return e.Model
		}
	}
	return ""
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	fmt.Printf("║  %-15s : %s ║\n", label, fitColumn(value, summaryWidth))
}

// fitColumn pads or truncates s to width runes.
func fitColumn(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		return string([]rune(s)[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-n)
}
