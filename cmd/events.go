/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/events"
	"github.com/weatherkeep/apiserver/internal/mq"
	"github.com/weatherkeep/apiserver/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect history events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log weather.saved events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return fmt.Errorf("MQ_BACKEND is not configured")
		}
		defer func() { _ = queue.Close() }()

		logger.Info("tailing events", zap.String("backend", cfg.MQ.Backend), zap.String("channel", cfg.MQ.Channel))
		err = events.Consume(cmd.Context(), queue, cfg.MQ.Channel, func(_ context.Context, e types.WeatherSavedEvent) error {
			logger.Info("weather saved",
				zap.Int("user_id", e.UserID),
				zap.String("city", e.Record.City),
				zap.Float64("temperature", e.Record.Temperature),
				zap.String("description", e.Record.Description),
				zap.Time("date", e.Record.Date),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
