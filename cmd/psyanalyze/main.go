// Package main implements psyanalyze, the command-line front end of the
// psymetrics analysis engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/psymetrics/internal/config"
	"github.com/soaringjerry/psymetrics/internal/logging"
	"github.com/soaringjerry/psymetrics/internal/services"
)

var (
	configPath string
	logLevel   string
	reverseQs  string
	scaleRange string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "psyanalyze",
	Short: "Reliability, validity and factor analysis for survey raw data",
	Long: `psyanalyze reads raw-data JSON Lines files (one submission per line) and
reports Cronbach's alpha, KMO, Bartlett's test of sphericity and, when the data
supports more than one factor, a Varimax-rotated factor structure.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (PSYMETRICS_* variables override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&reverseQs, "reverse", "", "Comma-separated reverse-keyed question numbers, e.g. 3,5")
	rootCmd.PersistentFlags().StringVar(&scaleRange, "scale", "1-5", "Answer range used to reverse-score --reverse questions")
}

// loadRuntime resolves config and builds the logger for a command.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// reverseKeys parses --reverse and --scale.
func reverseKeys() (map[int]services.ScaleRange, error) {
	keys, err := services.ParseReverseKeys(reverseQs, scaleRange)
	if err != nil {
		return nil, fmt.Errorf("--reverse/--scale: %w", err)
	}
	return keys, nil
}
