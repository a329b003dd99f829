/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the weatherkeep API server",
	Long: `Starts the weatherkeep API server. Usage:

	weatherkeep server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("failed to start server", zap.Error(err))
			return err
		}
		if err := srv.Start(cmd.Context()); err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
