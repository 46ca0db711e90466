package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nmslite/check-jenkins-queue/internal/check"
	"github.com/nmslite/check-jenkins-queue/internal/config"
	"github.com/nmslite/check-jenkins-queue/internal/jenkins"
	"github.com/nmslite/check-jenkins-queue/internal/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one check and returns the exit code.
// stdout carries only the plugin output; logs go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		return reportConfigError(stdout, err)
	}

	logger := initLogger(cfg, stderr)
	logger.Debug("configuration loaded",
		"base_url", cfg.BaseURL,
		"timeout", cfg.GetTimeout(),
		"proxy", cfg.ProxyURL,
		"noproxy", cfg.NoProxy,
		"auth", cfg.HasCredentials(),
	)

	client, err := jenkins.NewClient(*cfg, logger)
	if err != nil {
		return emit(stdout, logger, check.Unknown(err))
	}
	defer client.Close()

	result := check.Run(ctx, client, cfg.Thresholds(), cfg.PerfdataEnabled())
	return emit(stdout, logger, result)
}

func reportConfigError(stdout io.Writer, err error) int {
	code := models.Unknown.ExitCode()

	switch {
	case errors.Is(err, config.ErrHelp):
		fmt.Fprint(stdout, config.HelpText())
	case errors.Is(err, config.ErrVersion):
		fmt.Fprint(stdout, config.VersionText())
	case errors.Is(err, config.ErrManual):
		fmt.Fprint(stdout, config.ManualText())
	default:
		check.Write(stdout, check.Unknown(err))
		fmt.Fprint(stdout, config.UsageText())
	}
	return code
}

func emit(stdout io.Writer, logger *slog.Logger, result models.CheckResult) int {
	if err := check.Write(stdout, result); err != nil {
		logger.Error("Failed to write plugin output", "error", err)
		return models.Unknown.ExitCode()
	}
	logger.Debug("check finished", "status", result.Severity.String(), "exit_code", result.ExitCode())
	return result.ExitCode()
}

func initLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	// Set log level; --debug always wins
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Set format
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
