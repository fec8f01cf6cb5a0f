package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	publisher := flag.String("publisher", "", "Render the topology instead of running it (manifest or compose)")
	outputPath := flag.String("output-path", "", "File the publisher writes to (default stdout)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("apphost %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg, os.Stderr)

	topo, err := loadTopology(cfg)
	if err != nil {
		logger.Error("invalid topology", "error", err)
		return ExitConfigError
	}

	if *publisher != "" {
		if err := publish(topo, *publisher, *outputPath, os.Stdout); err != nil {
			logger.Error("publish failed", "publisher", *publisher, "error", err)
			return ExitConfigError
		}
		if *outputPath != "" {
			logger.Info("published topology", "publisher", *publisher, "path", *outputPath)
		}
		return ExitSuccess
	}

	logger.Info("starting apphost",
		"version", Version,
		"config", *configPath,
	)

	ctx := context.Background()

	app, err := NewApp(ctx, cfg, topo, logger)
	if err != nil {
		return reportError(logger, "failed to create app", err)
	}

	if err := app.Start(ctx); err != nil {
		return reportError(logger, "apphost error", err)
	}

	return ExitSuccess
}

// reportError logs err and returns the exit code it carries.
func reportError(logger *slog.Logger, msg string, err error) int {
	var aErr *AppError
	if errors.As(err, &aErr) {
		logger.Error(msg,
			"error", aErr.Err,
			"operation", aErr.Op,
		)
		return aErr.ExitCode
	}
	logger.Error(msg, "error", err)
	return ExitConfigError
}
