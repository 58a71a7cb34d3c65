package main

import (
	"context"
	"errors"
	"os"

	"pilgrimsafe/auth"
	"pilgrimsafe/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var adminReg auth.Registration

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account for the console",
	Long: `Creates a user with the admin role. The password can be passed with
--password or the ADMIN_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminReg.Password == "" {
			adminReg.Password = os.Getenv("ADMIN_PASSWORD")
		}
		if adminReg.Password == "" {
			return errors.New("admin password is required")
		}
		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close(context.Background())

		svc := auth.NewService(b.Store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
		u, err := svc.Register(ctx, adminReg, models.RoleAdmin)
		if err != nil {
			return err
		}
		logger.Info("admin created", zap.String("username", u.Username), zap.String("userId", u.ID))
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminReg.Username, "username", "admin", "admin username")
	f.StringVar(&adminReg.Email, "email", "", "admin email")
	f.StringVar(&adminReg.Password, "password", "", "admin password (at least 8 characters)")
	f.StringVar(&adminReg.Name, "name", "", "display name")
	_ = createAdminCmd.MarkFlagRequired("email")
}
