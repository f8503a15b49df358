package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Config captures all command-line options required to run a migration.
type Config struct {
	StoreRoot   string
	ExportRoot  string
	ProfileRoot string
	LocalFolder string
	Prefix      string
	DryRun      bool
	LogLevel    string
	LogDir      string
	NoProgress  bool
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("store", "", "Path to the Apple Mail store root (e.g. ~/Library/Mail/V10)")
	flags.String("export", "", "Path to an exported Apple Mail .mbox bundle")
	flags.String("profile", "", "Path to the Thunderbird profile root")
	flags.String("local-folder", "", "Destination mbox path relative to the profile root")
	flags.String("prefix", "", "Only migrate mailboxes whose display path starts with this prefix")
	flags.Bool("dry-run", false, "Simulate the migration without writing to the profile")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (stdout only when empty)")
	flags.Bool("no-progress", false, "Disable the progress bar")

	if err := cmd.MarkFlagRequired("profile"); err != nil {
		return err
	}
	if err := cmd.MarkFlagRequired("local-folder"); err != nil {
		return err
	}

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	storeRoot, err := flags.GetString("store")
	if err != nil {
		return Config{}, err
	}
	exportRoot, err := flags.GetString("export")
	if err != nil {
		return Config{}, err
	}
	profileRoot, err := flags.GetString("profile")
	if err != nil {
		return Config{}, err
	}
	localFolder, err := flags.GetString("local-folder")
	if err != nil {
		return Config{}, err
	}
	prefix, err := flags.GetString("prefix")
	if err != nil {
		return Config{}, err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	noProgress, err := flags.GetBool("no-progress")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		StoreRoot:   storeRoot,
		ExportRoot:  exportRoot,
		ProfileRoot: profileRoot,
		LocalFolder: localFolder,
		Prefix:      prefix,
		DryRun:      dryRun,
		LogLevel:    logLevel,
		LogDir:      logDir,
		NoProgress:  noProgress,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.StoreRoot == "" && cfg.ExportRoot == "" {
		return fmt.Errorf("either --store or --export is required")
	}
	if cfg.ProfileRoot == "" {
		return fmt.Errorf("--profile is required")
	}
	if cfg.LocalFolder == "" {
		return fmt.Errorf("--local-folder is required")
	}
	if filepath.IsAbs(cfg.LocalFolder) {
		return fmt.Errorf("--local-folder must be relative to the profile root")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
