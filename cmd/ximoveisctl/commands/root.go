package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ximoveis/internal/app"
	"ximoveis/internal/config"
	"ximoveis/internal/version"
)

var (
	// Global flags
	envFile       string
	migrationsDir string
	jsonOutput    bool
)

var rootCmd = &cobra.Command{
	Use:   "ximoveisctl",
	Short: "Operator tooling for the ximoveis listing backend",
	Long: `ximoveisctl runs maintenance tasks against the same database and upload
directory as the server. Configuration is read from the environment and,
when present, from the --env-file.`,
	Version:      version.Current().String(),
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "", "override MIGRATIONS_DIR")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func loadConfig() (config.Config, *logrus.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if migrationsDir != "" {
		cfg.MigrationsDir = migrationsDir
	}
	logger := app.NewLogger(cfg.LogLevel)
	logger.SetOutput(os.Stderr)
	return cfg, logger, nil
}

func openApp() (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}
