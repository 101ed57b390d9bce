package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/repository"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	"github.com/noah-isme/dairy-portal-api/pkg/database"
)

var adminFlags struct {
	name     string
	username string
	password string
}

// createAdminCmd seeds an ADMIN account.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE:  runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.name, "name", "Administrator", "display name")
	createAdminCmd.Flags().StringVar(&adminFlags.username, "username", "", "login name")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "password, at least 8 characters")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	activity := service.NewActivityService(repository.NewActivityRepository(db), cfg.Activity, logr)
	users := service.NewUserService(repository.NewUserRepository(db), nil, activity, logr)

	user, err := users.Create(cmd.Context(), service.CreateUserRequest{
		Name:     adminFlags.name,
		Username: adminFlags.username,
		Password: adminFlags.password,
		Role:     models.RoleAdmin,
	}, service.Actor{Role: models.RoleAdmin, IP: "portalctl"})
	if err != nil {
		return err
	}

	logr.Info("admin created", zap.String("id", user.ID), zap.String("username", user.Username))
	return nil
}
