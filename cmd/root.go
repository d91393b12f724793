// Package cmd defines the CLI commands for the galleryharvest executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "galleryharvest",
		Short: "Concurrent gallery image harvester",
		Long: `galleryharvest walks image gallery previews in a headless browser,
feeds discovered images through a concurrent download pipeline, and stores
them as normalized JPEG files.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newHarvestCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the run
// context so in-flight downloads wind down cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// buildLogger constructs the process logger and installs it globally.
func buildLogger(development bool) (*zap.Logger, error) {
	logger, err := logging.New(development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
