// Package app assembles the service graph shared by the server and the
// operator CLI.
package app

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"ximoveis/internal/auth"
	"ximoveis/internal/config"
	"ximoveis/internal/db"
	"ximoveis/internal/notify"
	"ximoveis/internal/service"
	"ximoveis/internal/storage"
	"ximoveis/internal/store"
)

type App struct {
	Config  config.Config
	Log     *logrus.Logger
	DB      *sql.DB
	Dialect db.Dialect
	Service *service.Service
}

func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// OpenDB connects and optionally applies pending migrations.
func OpenDB(cfg config.Config, logger *logrus.Logger, migrate bool) (*sql.DB, db.Dialect, error) {
	sqdb, d, err := db.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if migrate {
		applied, err := db.ApplyMigrations(sqdb, d, cfg.MigrationsDir)
		if err != nil {
			_ = sqdb.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		for _, name := range applied {
			logger.WithFields(logrus.Fields{"migration": name, "dialect": d.Name()}).Info("migration applied")
		}
	}
	return sqdb, d, nil
}

// New opens the database (running migrations) and wires storage, tokens,
// notifications and the service.
func New(cfg config.Config, logger *logrus.Logger) (*App, error) {
	sqdb, d, err := OpenDB(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	svc, err := build(cfg, logger, sqdb, d)
	if err != nil {
		_ = sqdb.Close()
		return nil, err
	}
	return &App{Config: cfg, Log: logger, DB: sqdb, Dialect: d, Service: svc}, nil
}

func build(cfg config.Config, logger *logrus.Logger, sqdb *sql.DB, d db.Dialect) (*service.Service, error) {
	key, err := cfg.CertKey()
	if err != nil {
		return nil, err
	}
	files, err := storage.New(cfg.UploadDir, key, cfg.CertEncryptAtRest, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return nil, err
	}
	sender := notify.NewSender(cfg, logger)
	return service.New(cfg, store.New(sqdb, d), files, tokens, sender, logger), nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
