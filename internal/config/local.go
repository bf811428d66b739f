// Package config loads ~/.exdoc/config.yaml, the secrets file beside it and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/widget"
)

// LocalConfig is the full daemon and CLI configuration.
type LocalConfig struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	LLM     LLMConfig     `yaml:"llm"`
	Runner  RunnerConfig  `yaml:"runner"`
	Storage StorageConfig `yaml:"storage"`
	Queue   QueueConfig   `yaml:"queue"`
	Cache   CacheConfig   `yaml:"cache"`
	Auth    AuthConfig    `yaml:"auth"`
	Client  ClientConfig  `yaml:"client"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port           int      `yaml:"port"`
	Bind           string   `yaml:"bind"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig holds LLM provider settings
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"`
	APIKey  string `yaml:"-"` // secrets.yaml
}

// RunnerConfig selects how submitted Python runs.
type RunnerConfig struct {
	Executor       string             `yaml:"executor"` // local | docker
	Python         string             `yaml:"python"`
	Timeout        time.Duration      `yaml:"timeout"`
	MaxOutputBytes int                `yaml:"max_output_bytes"`
	Docker         DockerRunnerConfig `yaml:"docker"`
}

// DockerRunnerConfig holds Docker executor settings
type DockerRunnerConfig struct {
	Image      string  `yaml:"image"`
	MemoryMB   int     `yaml:"memory_mb"`
	CPULimit   float64 `yaml:"cpu_limit"`
	NetworkOff bool    `yaml:"network_off"`
}

// StorageConfig picks the submission and document store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`      // sqlite | postgres | memory
	SQLitePath  string `yaml:"sqlite_path"` // default: <dir>/exdoc.db
	PostgresURL string `yaml:"postgres_url,omitempty"`
}

// QueueConfig enables RabbitMQ submission events when URL is set.
type QueueConfig struct {
	URL     string `yaml:"url,omitempty"`
	Workers int    `yaml:"workers"`
}

// CacheConfig enables Redis answer tallies when Addr is set.
type CacheConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	TTL      time.Duration `yaml:"ttl"`
	Password string        `yaml:"-"` // secrets.yaml
}

// AuthConfig controls how the submitting user is named.
type AuthConfig struct {
	DefaultUsername string `yaml:"default_username"`
	JWTSecret       string `yaml:"-"` // secrets.yaml
}

// ClientConfig is used by the CLI and the MCP server to reach the daemon.
type ClientConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	HintDelay     time.Duration `yaml:"hint_delay"`
	Backfill      string        `yaml:"backfill"` // none | first-choice
	Retry         bool          `yaml:"retry"`
	RetryAttempts int           `yaml:"retry_attempts"`
	Token         string        `yaml:"-"` // secrets.yaml
}

// Secrets is the layout of secrets.yaml.
type Secrets struct {
	Providers map[string]ProviderSecret `yaml:"providers,omitempty"`
	JWTSecret string                    `yaml:"jwt_secret,omitempty"`
	RedisPass string                    `yaml:"redis_password,omitempty"`
	Token     string                    `yaml:"client_token,omitempty"`
}

// ProviderSecret holds one provider API key.
type ProviderSecret struct {
	APIKey string `yaml:"api_key"`
}

// Dir returns the config directory: $EXDOC_HOME, else ~/.exdoc.
func Dir() (string, error) {
	if dir := os.Getenv("EXDOC_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".exdoc"), nil
}

// EnsureDir creates the config directory and its subdirectories.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	for _, sub := range []string{"", "logs", "documents"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return dir, nil
}

// DefaultLocalConfig returns the built-in defaults.
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:           4000,
			Bind:           "127.0.0.1",
			LogLevel:       "info",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"claude": {Enabled: true, Model: "claude-sonnet-4-20250514"},
				"openai": {Enabled: false, Model: "gpt-4o-mini"},
				"ollama": {Enabled: true, URL: "http://localhost:11434", Model: "qwen2.5-coder"},
			},
		},
		Runner: RunnerConfig{
			Executor:       "local",
			Python:         "python3",
			Timeout:        10 * time.Second,
			MaxOutputBytes: 64 << 10,
			Docker: DockerRunnerConfig{
				Image:      "python:3.12-alpine",
				MemoryMB:   128,
				CPULimit:   0.5,
				NetworkOff: true,
			},
		},
		Storage: StorageConfig{Driver: "sqlite"},
		Queue:   QueueConfig{Workers: 2},
		Cache:   CacheConfig{TTL: 30 * 24 * time.Hour},
		Auth:    AuthConfig{DefaultUsername: remote.DefaultUsername},
		Client: ClientConfig{
			BaseURL:       remote.DefaultBaseURL,
			Timeout:       60 * time.Second,
			HintDelay:     300 * time.Millisecond,
			Backfill:      string(widget.BackfillNone),
			Retry:         true,
			RetryAttempts: 3,
		},
	}
}

// LoadLocalConfig reads config.yaml and secrets.yaml from Dir and applies
// environment overrides. Missing files leave the defaults in place.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom is LoadLocalConfig for an explicit directory.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(dir, "exdoc.db")
	}

	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets Secrets
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}
	cfg.Auth.JWTSecret = secrets.JWTSecret
	cfg.Cache.Password = secrets.RedisPass
	cfg.Client.Token = secrets.Token
	return nil
}

// Validate rejects settings the daemon cannot start with.
func (c *LocalConfig) Validate() error {
	var errs []error
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		errs = append(errs, fmt.Errorf("daemon.port %d out of range", c.Daemon.Port))
	}
	switch c.Runner.Executor {
	case "local", "docker":
	default:
		errs = append(errs, fmt.Errorf("runner.executor %q: want local or docker", c.Runner.Executor))
	}
	switch c.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want sqlite, postgres or memory", c.Storage.Driver))
	}
	if b := strings.ToLower(strings.TrimSpace(c.Client.Backfill)); b != "" && b != string(widget.BackfillNone) && b != string(widget.BackfillFirstChoice) {
		errs = append(errs, fmt.Errorf("client.backfill %q: want none or first-choice", c.Client.Backfill))
	}
	return errors.Join(errs...)
}

// LogLevel maps daemon.log_level to a slog level, defaulting to info.
func (c *LocalConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Daemon.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr is the daemon listen address.
func (c *LocalConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Bind, c.Daemon.Port)
}

// Remote builds the service client settings.
func (c *LocalConfig) Remote() remote.Config {
	rc := remote.DefaultConfig()
	rc.BaseURL = c.Client.BaseURL
	if c.Client.Timeout > 0 {
		rc.Timeout = c.Client.Timeout
	}
	rc.Token = c.Client.Token
	rc.Retry = c.Client.Retry
	if c.Client.RetryAttempts > 0 {
		rc.RetryAttempts = c.Client.RetryAttempts
	}
	return rc
}

// Backfill returns the parsed backfill policy.
func (c *LocalConfig) Backfill() widget.BackfillPolicy {
	return widget.ParseBackfillPolicy(c.Client.Backfill)
}

// SaveLocalConfig writes cfg to config.yaml in Dir.
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo writes cfg to config.yaml in dir.
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets writes secrets.yaml in dir, readable by the owner only.
func SaveSecrets(dir string, secrets Secrets) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	path := filepath.Join(dir, "secrets.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod secrets: %w", err)
	}
	return nil
}
