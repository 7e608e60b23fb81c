package main

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/inspectconnect/internal/gateway"
	"github.com/smallbiznis/inspectconnect/internal/migration"
	"github.com/smallbiznis/inspectconnect/internal/user"
	userdomain "github.com/smallbiznis/inspectconnect/internal/user/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	adminEmail    string
	adminPassword string
	adminUserType int
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator with a gateway customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminEmail == "" {
			return errors.New("missing --email")
		}
		if adminPassword == "" {
			return errors.New("missing --password")
		}

		var users userdomain.Service
		return runOnce(cmd, fx.Options(
			infrastructure(),
			migration.Module,
			gateway.Module,
			user.Module,
		), func() error {
			created, err := users.Register(cmd.Context(), userdomain.RegisterRequest{
				Email:    adminEmail,
				Password: adminPassword,
				Role:     userdomain.RoleAdmin,
				UserType: adminUserType,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id=%s, customer=%s)\n", created.Email, created.ID, created.StripeCustomerID)
			return nil
		}, &users)
	},
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "administrator email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "administrator password (min 8 characters)")
	adminCreateCmd.Flags().IntVar(&adminUserType, "user-type", userdomain.UserTypeInspector, "user type (0 inspector, 1 client)")
	adminCmd.AddCommand(adminCreateCmd)
}
