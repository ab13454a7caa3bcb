package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/kr1s57/netlens/internal/app"
	"github.com/kr1s57/netlens/internal/config"
	"github.com/kr1s57/netlens/internal/entity"
)

func main() {
	argument := flag.String("argument", "", `Host argument string, e.g. "mode=panel&lang=local&ipqs_key=..."`)
	format := flag.String("format", "json", "Output format: json or yaml")
	flag.Parse()

	// Load configuration
	base, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg, err := config.ApplyArgument(*base, *argument)
	if err != nil {
		slog.Error("Invalid argument", "error", err)
		os.Exit(2)
	}

	// Setup logger
	logger := config.SetupLogger(&cfg)

	rt, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	svc, err := rt.Service(cfg)
	if err != nil {
		logger.Error("Failed to build report service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("Starting run", "mode", cfg.Run.Mode, "language", cfg.Run.Language, "timeout", cfg.Run.Timeout)
	result := svc.RunWithWatchdog(ctx)

	if err := writeResult(os.Stdout, *format, result); err != nil {
		logger.Error("Failed to write result", "error", err)
		os.Exit(1)
	}
}

func writeResult(w io.Writer, format string, result entity.RunResult) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(result)
	case "json", "":
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
