package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

var cleanupOlderThan time.Duration

// cleanupExportsCmd removes expired review summary exports once.
var cleanupExportsCmd = &cobra.Command{
	Use:   "cleanup-exports",
	Short: "Delete generated exports older than the signed URL TTL",
	RunE:  runCleanupExports,
}

func init() {
	cleanupExportsCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "age threshold (defaults to EXPORTS_SIGNED_URL_TTL)")
}

func runCleanupExports(cmd *cobra.Command, args []string) error {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return err
	}
	ttl := cleanupOlderThan
	if ttl <= 0 {
		ttl = cfg.Exports.SignedURLTTL
	}
	removed, err := files.CleanupOlderThan(ttl)
	if err != nil {
		return err
	}
	logr.Info("exports removed", zap.Int("count", len(removed)), zap.Duration("older_than", ttl))
	return nil
}
