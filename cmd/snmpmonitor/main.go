// Command snmpmonitor is the main SNMP Monitor binary.
//
// It loads YAML configuration, seeds the SQLite store, and runs the poll
// scheduler, the trap receiver, and the query socket server until
// interrupted (SIGINT / SIGTERM).
//
// Usage:
//
//	snmpmonitor [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vpbank/snmp_monitor/pkg/snmpmonitor/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpmonitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Flags ────────────────────────────────────────────────────────────
	var (
		logLevel string
		logFmt   string
		cfgPath  string
		reset    string
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&cfgPath, "config", "snmp_monitor.yaml", "Path to the YAML configuration file")
	flag.StringVar(&reset, "reset", "", "Clear stored data before seeding: telemetry, traps, users, all")

	flag.Parse()

	// ── Logger ───────────────────────────────────────────────────────────
	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	// ── Build App ────────────────────────────────────────────────────────
	application := app.New(app.Config{
		ConfigPath: cfgPath,
		Reset:      reset,
	}, logger)

	// ── Start ────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		application.Stop()
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("snmpmonitor: running — press Ctrl-C to stop")

	// Block until signal.
	<-ctx.Done()
	logger.Info("snmpmonitor: received shutdown signal")

	application.Stop()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}
