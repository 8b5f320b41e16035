package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or promote an ADMIN account",
	Long: `Create an ADMIN user with the given credentials. An existing user with the
same email is promoted to ADMIN and keeps its password.

Examples:
  ximoveisctl seed-admin --email admin@ximoveis.com.br --password 's3cret!'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeedAdmin(cmd.Context())
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&adminName, "name", "Administrador", "display name")
	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	seedAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	_ = seedAdminCmd.MarkFlagRequired("email")
	_ = seedAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(seedAdminCmd)
}

func runSeedAdmin(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Service.BootstrapAdmin(ctx, adminName, adminEmail, adminPassword); err != nil {
		return err
	}
	fmt.Printf("admin %s ready\n", adminEmail)
	return nil
}
