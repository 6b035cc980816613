package main

import (
	"fmt"
	"os"

	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logLevel string
	cfg      *config.Config
	log      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stockmigrate",
	Short: "Stock migration and reconciliation tool",
	Long: `Moves stock levels from legacy tables into offer and product mappings and
reconciles stock between products and their marketplace offers.

Migration artifacts are written once per run to the configured storage
(local directory or S3) and never rewritten.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// persistentPreRun loads configuration and the console logger before every command
func persistentPreRun(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	var err error
	log, err = logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stderr", TimeFormat: "2006-01-02 15:04:05"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
