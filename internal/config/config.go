package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`

	DBDriver          string `env:"DB_DRIVER" envDefault:"mysql"`
	DBDSN             string `env:"DB_DSN"`
	DBHost            string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort            int    `env:"DB_PORT" envDefault:"3306"`
	DBUser            string `env:"DB_USER" envDefault:"root"`
	DBPassword        string `env:"DB_PASSWORD"`
	DBName            string `env:"DB_NAME" envDefault:"imoveis"`
	DBPath            string `env:"DB_PATH" envDefault:"./data/imoveis.db"`
	DBMaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME_MIN" envDefault:"30"`
	MigrationsDir     string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"2147483648"`
	MaxPhotos      int    `env:"MAX_PHOTOS" envDefault:"50"`

	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev-secret"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"8"`

	CertEncKey        string `env:"CERT_ENC_KEY"`
	CertEncryptAtRest bool   `env:"CERT_ENCRYPT_AT_REST" envDefault:"false"`

	TrustProxy         bool     `env:"TRUST_PROXY" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	HTTPReadTimeoutSec       int `env:"HTTP_READ_TIMEOUT_SEC" envDefault:"600"`
	HTTPReadHeaderTimeoutSec int `env:"HTTP_READ_HEADER_TIMEOUT_SEC" envDefault:"10"`
	HTTPWriteTimeoutSec      int `env:"HTTP_WRITE_TIMEOUT_SEC" envDefault:"720"`
	HTTPIdleTimeoutSec       int `env:"HTTP_IDLE_TIMEOUT_SEC" envDefault:"60"`

	BootstrapAdminName     string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Administrador"`
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`

	NotifySender string `env:"NOTIFY_SENDER" envDefault:"log"`
	NotifyFrom   string `env:"NOTIFY_FROM" envDefault:"nao-responda@ximoveis.local"`
	SMTPHost     string `env:"SMTP_HOST" envDefault:"127.0.0.1"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.NotifySender = strings.ToLower(strings.TrimSpace(cfg.NotifySender))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be one of: mysql, postgres, sqlite")
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("invalid DB pool config")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.JWTTTLHours <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.MaxPhotos < 0 {
		return fmt.Errorf("MAX_PHOTOS must not be negative")
	}
	if c.CertEncKey != "" {
		if _, err := c.CertKey(); err != nil {
			return err
		}
	}
	if c.CertEncryptAtRest && c.CertEncKey == "" {
		return fmt.Errorf("CERT_ENCRYPT_AT_REST=true requires CERT_ENC_KEY")
	}
	switch c.NotifySender {
	case "", "log", "smtp":
	default:
		return fmt.Errorf("NOTIFY_SENDER must be one of: log, smtp")
	}
	return nil
}

// CertKey decodes CERT_ENC_KEY. An empty key yields a nil slice and no error.
func (c Config) CertKey() ([]byte, error) {
	if c.CertEncKey == "" {
		return nil, nil
	}
	if len(c.CertEncKey) != 64 {
		return nil, fmt.Errorf("CERT_ENC_KEY must be 64 hex characters")
	}
	key, err := hex.DecodeString(c.CertEncKey)
	if err != nil {
		return nil, fmt.Errorf("CERT_ENC_KEY is not valid hex: %w", err)
	}
	return key, nil
}

func (c Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetime) * time.Minute
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}
