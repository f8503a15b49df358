package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailport/mailport/cmd"
	"github.com/mailport/mailport/config"
	"github.com/mailport/mailport/migrate"
	"github.com/mailport/mailport/model"
	"github.com/mailport/mailport/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailport",
		Short: "Migrate Apple Mail messages into Thunderbird local folders",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mailport",
				"store", cfg.StoreRoot, "export", cfg.ExportRoot,
				"profile", cfg.ProfileRoot, "localFolder", cfg.LocalFolder,
				"dryRun", cfg.DryRun)

			return run(cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	cmd.AddCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	opts := migrate.Options{
		Prefix:   cfg.Prefix,
		DryRun:   cfg.DryRun,
		Progress: !cfg.NoProgress && cfg.LogLevel == "info",
		Logger:   logger,
	}

	var (
		result *model.MigrationStats
		err    error
	)
	if cfg.ExportRoot != "" {
		result, err = migrate.Export(cfg.ExportRoot, cfg.ProfileRoot, cfg.LocalFolder, cfg.StoreRoot, opts)
	} else {
		result, err = migrate.MailStore(cfg.StoreRoot, cfg.ProfileRoot, cfg.LocalFolder, opts)
	}
	if err != nil {
		return err
	}

	logger.Info("migration completed", stats.MigrationAttrs(result)...)
	return nil
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mailport-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
