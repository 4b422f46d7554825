package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kpiconsole/internal/app/server"
	"kpiconsole/internal/platform/jobs"
)

var (
	snapshotDir string
	restoreFrom string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write a store snapshot, or restore one with --restore",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		storage, err := server.OpenStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer storage.Close()

		if restoreFrom != "" {
			f, err := os.Open(restoreFrom)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := storage.Store.Restore(ctx, f, storage.Compressor)
			if err != nil {
				return fmt.Errorf("restore %s: %w", restoreFrom, err)
			}
			slog.Info("snapshot restored", "file", restoreFrom, "collections", n)
			return nil
		}

		dir := snapshotDir
		if dir == "" {
			dir = cfg.SnapshotDir
		}
		if dir == "" {
			return errors.New("snapshot directory not set: use --dir or SNAPSHOT_DIR")
		}
		details, err := jobs.SnapshotTask(storage.Store, storage.Compressor, dir, cfg.SnapshotKeep)(ctx)
		if err != nil {
			return err
		}
		slog.Info("snapshot written", "details", details)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotDir, "dir", "", "Snapshot directory (defaults to SNAPSHOT_DIR)")
	snapshotCmd.Flags().StringVar(&restoreFrom, "restore", "", "Restore the store from this snapshot file")
}
