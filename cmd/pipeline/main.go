// Command pipeline runs the trading-signal ingestion and fan-out service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stoxxo/signalpipe/internal/config"
	"github.com/stoxxo/signalpipe/internal/pipeline"
)

var version = "dev"

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		logPath    = flag.String("log-path", "", "override monitor.log_path")
		cachePath  = flag.String("cache-path", "", "override cache_path")
		debug      = flag.Bool("debug", false, "enable debug logging")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		return
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			logger.Error("loading config file", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnvOverrides()
	if *logPath != "" {
		cfg.Monitor.LogPath = *logPath
	}
	if *cachePath != "" {
		cfg.CachePath = *cachePath
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	pl, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Error("building pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("starting pipeline", "version", version, "log_path", cfg.Monitor.LogPath)
	if err := pl.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("pipeline exited with error", "error", err)
		os.Exit(1)
	}
}
