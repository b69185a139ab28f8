package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mediawatermark/internal/batch"
	"mediawatermark/internal/config"
	"mediawatermark/pkg/watermark"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if cfgErr != nil {
		logger.Error("failed to load configuration", "config", *configPath, "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	opts := cfg.Watermark()
	fnt, err := watermark.LoadFont(opts.FontPath, logger)
	if err != nil {
		return err
	}

	proc := watermark.NewProcessor(opts, fnt, logger)
	proc.Video = cfg.Video()

	logger.Info("watermark configured",
		"text", opts.Text,
		"position", opts.Position.String(),
		"font", fnt.Name(),
		"font_size_ratio", opts.FontSizeRatio,
		"transparency", opts.Transparency,
	)

	runner := batch.NewRunner(proc, cfg.Workers, logger)
	_, err = runner.Run(ctx, cfg.InputFolder, cfg.OutputFolder)
	return err
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
