package db

import (
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"ximoveis/internal/config"
)

// Open connects to the configured database and returns the pool with its dialect.
func Open(cfg config.Config) (*sql.DB, Dialect, error) {
	d, err := DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, nil, err
	}
	if d.Name() == "sqlite" {
		sqdb, err := OpenSQLite(cfg.DBPath, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.ConnMaxLifetime())
		return sqdb, d, err
	}
	dsn := cfg.DBDSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}
	sqdb, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, err
	}
	sqdb.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqdb.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqdb.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	if err := sqdb.Ping(); err != nil {
		_ = sqdb.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	return sqdb, d, nil
}

func buildDSN(cfg config.Config) string {
	addr := net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
	if cfg.DBDriver == "postgres" {
		return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", cfg.DBUser, cfg.DBPassword, addr, cfg.DBName)
	}
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = addr
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
