package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDBConnection      = "DB_CONNECTION"
	EnvSessionSecret     = "SESSION_SECRET"
	EnvEncryptionKey     = "ENCRYPTION_KEY"
	EnvGoogleClientID    = "GOOGLE_CLIENT_ID"
	EnvGoogleSecret      = "GOOGLE_CLIENT_SECRET"
	EnvGoogleRedirectURL = "GOOGLE_REDIRECT_URL"
	EnvMagicSecretKey    = "MAGIC_SECRET_KEY"
)

// encryptionKeyLen is the required AES-256 key length in bytes.
const encryptionKeyLen = 32

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingSessionSecret indicates no session secret was configured.
var ErrMissingSessionSecret = errors.New("missing session secret (set `session.secret` or SESSION_SECRET)")

// ErrMissingEncryptionKey indicates no instruction encryption key was configured.
var ErrMissingEncryptionKey = errors.New("missing encryption key (set `encryption-key` or ENCRYPTION_KEY)")

// GoogleConfig holds Google OAuth client settings.
type GoogleConfig struct {
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
	RedirectURL  string `yaml:"redirect-url"`
}

// MagicConfig holds magic-link provider settings.
type MagicConfig struct {
	SecretKey string `yaml:"secret-key"`
	BaseURL   string `yaml:"base-url"`
}

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	Secret string `yaml:"secret"`
	Secure bool   `yaml:"secure"`
}

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string

	DatabaseDSN   string
	SessionSecret string
	SessionSecure bool
	EncryptionKey []byte
	Google        GoogleConfig
	Magic         MagicConfig
}

// fileConfig maps the YAML fields of the config file.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Session       SessionConfig `yaml:"session"`
	EncryptionKey string        `yaml:"encryption-key"`
	Google        GoogleConfig  `yaml:"google"`
	Magic         MagicConfig   `yaml:"magic"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file and applies environment overrides.
// Secrets required at startup are validated here; a missing database DSN,
// session secret, or encryption key refuses to boot.
func Load(configPath string) (AppConfig, error) {
	var file fileConfig
	if data, errRead := os.ReadFile(configPath); errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &file); errUnmarshal != nil {
			return AppConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	cfg := AppConfig{
		ConfigPath:    configPath,
		SessionSecret: strings.TrimSpace(file.Session.Secret),
		SessionSecure: file.Session.Secure,
		Google:        file.Google,
		Magic:         file.Magic,
	}

	cfg.DatabaseDSN = strings.TrimSpace(file.DatabaseDSN)
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = strings.TrimSpace(file.Database.DSN)
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if cfg.DatabaseDSN == "" {
		return AppConfig{}, ErrMissingDatabaseDSN
	}

	if secret := strings.TrimSpace(os.Getenv(EnvSessionSecret)); secret != "" {
		cfg.SessionSecret = secret
	}
	if cfg.SessionSecret == "" {
		return AppConfig{}, ErrMissingSessionSecret
	}

	keyHex := strings.TrimSpace(file.EncryptionKey)
	if envKey := strings.TrimSpace(os.Getenv(EnvEncryptionKey)); envKey != "" {
		keyHex = envKey
	}
	if keyHex == "" {
		return AppConfig{}, ErrMissingEncryptionKey
	}
	key, errDecode := hex.DecodeString(keyHex)
	if errDecode != nil {
		return AppConfig{}, fmt.Errorf("decode encryption key: %w", errDecode)
	}
	if len(key) != encryptionKeyLen {
		return AppConfig{}, fmt.Errorf("encryption key must be %d bytes, got %d", encryptionKeyLen, len(key))
	}
	cfg.EncryptionKey = key

	if v := strings.TrimSpace(os.Getenv(EnvGoogleClientID)); v != "" {
		cfg.Google.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGoogleSecret)); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGoogleRedirectURL)); v != "" {
		cfg.Google.RedirectURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMagicSecretKey)); v != "" {
		cfg.Magic.SecretKey = v
	}

	return cfg, nil
}
