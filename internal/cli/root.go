// Package cli implements the heron command line.
package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/opensource-finance/heron/internal/config"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/spf13/cobra"
)

// BuildInfo is stamped into the binary via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	configPath string
	build      = BuildInfo{Version: "dev", Commit: "none", BuildDate: "unknown"}
)

var rootCmd = &cobra.Command{
	Use:   "heron",
	Short: "Insurance claim intake with fraud scoring",
	Long: `Heron takes insurance claims, checks them against the policy they are filed
under, scores them for fraud and routes them to an adjuster or an analyst.
It also services policies: underwriting queues, SLA tracking, renewal
reminders and notifications.

Configuration is layered: tier defaults, then the TOML file given with
--config, then HERON_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HERON_CONFIG"), "Path to a TOML config file")
}

// Execute runs the root command.
func Execute(info BuildInfo) error {
	if info.Version != "" {
		build = info
	}
	rootCmd.Version = build.Version
	return rootCmd.Execute()
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*domain.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Logging, os.Stdout))
	return cfg, nil
}

func newLogger(cfg domain.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	if os.Getenv("HERON_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
