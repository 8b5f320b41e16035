package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ximoveis/internal/app"
	"ximoveis/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply the migration scripts for the configured DB_DRIVER. Scripts are
re-runnable; objects that already exist are left alone.

Examples:
  ximoveisctl migrate
  ximoveisctl migrate --migrations-dir ./migrations --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	sqdb, d, err := app.OpenDB(cfg, logger, false)
	if err != nil {
		return err
	}
	defer sqdb.Close()

	applied, err := db.ApplyMigrations(sqdb, d, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if jsonOutput {
		if applied == nil {
			applied = []string{}
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{"dialect": d.Name(), "applied": applied})
	}
	if len(applied) == 0 {
		fmt.Println("no migration scripts applied")
		return nil
	}
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
	return nil
}
