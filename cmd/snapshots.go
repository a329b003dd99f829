/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weatherkeep/apiserver/internal/storage"
)

var snapshotUserID int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect archived provider payloads",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's archived snapshots, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotUserID < 1 {
			return errors.New("--user is required")
		}

		objects, logger, err := openSnapshots(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		infos, err := objects.ListSnapshots(cmd.Context(), snapshotUserID)
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, info := range infos {
			fmt.Fprintf(out, "%s\t%d\t%s\n", info.LastModified.UTC().Format("2006-01-02T15:04:05Z"), info.Size, info.Key)
		}
		return nil
	},
}

var snapshotsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Write an archived snapshot to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		objects, logger, err := openSnapshots(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		rc, err := objects.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		defer rc.Close()

		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	},
}

func openSnapshots(cmd *cobra.Command) (*storage.Storage, *zap.Logger, error) {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Backend == "" {
		return nil, nil, errors.New("STORAGE_BACKEND is not configured")
	}

	objects, err := storage.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("opened snapshot archive", zap.String("backend", cfg.Storage.Backend), zap.String("bucket", objects.Bucket()))
	return objects, logger, nil
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsGetCmd)
	snapshotsListCmd.Flags().IntVar(&snapshotUserID, "user", 0, "user ID whose snapshots to list")
}
