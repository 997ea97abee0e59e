// Package config loads the folio configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmcleod/folio/guard"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "folio.yaml"

// TokenEnv overrides both the server and the client API token.
const TokenEnv = "FOLIO_API_TOKEN"

// Store backends for server records.
const (
	StoreBbolt  = "bbolt"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config represents the folio configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Guard   GuardConfig   `yaml:"guard"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures `folio server`.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	DataDir        string   `yaml:"data_dir"`
	Store          string   `yaml:"store"` // bbolt, sqlite, memory
	StaticDir      string   `yaml:"static_dir"`
	APIToken       string   `yaml:"api_token"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
	TLSCert        string   `yaml:"tls_cert"`
	TLSKey         string   `yaml:"tls_key"`
	TLSSelfSigned  bool     `yaml:"tls_self_signed"`
}

// ClientConfig configures the commands that act as the client device.
type ClientConfig struct {
	RemoteURL  string        `yaml:"remote_url"`
	APIToken   string        `yaml:"api_token"`
	LocalStore string        `yaml:"local_store"`
	Timeout    time.Duration `yaml:"timeout"`
}

// GuardConfig configures the admin gate on the client device.
type GuardConfig struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	LockoutDuration    time.Duration `yaml:"lockout_duration"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	InactivityTimeout  time.Duration `yaml:"inactivity_timeout"`
	MaxSessionDuration time.Duration `yaml:"max_session_duration"`
	// SecretHash is the argon2id string printed by `folio hash-secret`.
	SecretHash  string `yaml:"secret_hash"`
	DisplayName string `yaml:"display_name"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	g := guard.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			DataDir:        "./data",
			Store:          StoreBbolt,
			MaxUploadBytes: 32 << 20,
		},
		Client: ClientConfig{
			RemoteURL:  "http://localhost:8080",
			LocalStore: "./folio-local.db",
			Timeout:    10 * time.Second,
		},
		Guard: GuardConfig{
			MaxAttempts:        g.MaxAttempts,
			LockoutDuration:    g.LockoutDuration,
			HeartbeatInterval:  g.HeartbeatInterval,
			InactivityTimeout:  g.InactivityTimeout,
			MaxSessionDuration: g.MaxSessionDuration,
			DisplayName:        "Admin",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration at path on top of the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// Read is Load without the environment overrides, for callers that write
// the file back.
func Read(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if tok := getenv(TokenEnv); tok != "" {
		c.Server.APIToken = tok
		c.Client.APIToken = tok
	}
}

// Thresholds returns the guard settings as a guard.Config.
func (g GuardConfig) Thresholds() guard.Config {
	return guard.Config{
		MaxAttempts:        g.MaxAttempts,
		LockoutDuration:    g.LockoutDuration,
		HeartbeatInterval:  g.HeartbeatInterval,
		InactivityTimeout:  g.InactivityTimeout,
		MaxSessionDuration: g.MaxSessionDuration,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Server.Store {
	case StoreBbolt, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("server.store: unknown store %q", c.Server.Store)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("server.tls_cert and server.tls_key must be set together")
	}
	if c.Client.Timeout <= 0 {
		return errors.New("client.timeout must be positive")
	}
	if err := c.Guard.Thresholds().Validate(); err != nil {
		return fmt.Errorf("guard: %w", err)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("logging.level: unknown level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger described by l, writing to w.
func NewLogger(l LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", l.Format)
	}
}
