package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/pkg/config"
	"github.com/noah-isme/dairy-portal-api/pkg/logger"
)

var (
	cfg  *config.Config
	logr *zap.Logger
)

// rootCmd is the operator CLI for the portal database and file stores.
var rootCmd = &cobra.Command{
	Use:           "portalctl",
	Short:         "Operate the dairy sustainability portal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err = logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logr != nil {
			_ = logr.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, createAdminCmd, cleanupExportsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
