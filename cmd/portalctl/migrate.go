package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/dairy-portal-api/pkg/database"
)

var printSchema bool

// migrateCmd applies the embedded schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the embedded PostgreSQL schema. Every statement is idempotent,
so the command is safe to run on each deploy.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "print the schema instead of applying it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if printSchema {
		cmd.Println(database.Schema())
		return nil
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	logr.Info("schema applied")
	return nil
}
