/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/config"
	"github.com/weatherkeep/apiserver/internal/observability"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "weatherkeep",
	Short: "Weather lookup and history API",
	Long: `weatherkeep serves an HTTP API for registering users, looking up
current weather for a city and keeping a per-user history of saved readings.`,
	SilenceUsage: true,
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
