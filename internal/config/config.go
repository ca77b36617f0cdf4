package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Bot contains Bot API credentials and update intake settings.
type Bot struct {
	Token                 string  `toml:"token" env:"SEASONBOT_BOT_TOKEN"`
	APIURL                string  `toml:"api_url" env:"SEASONBOT_BOT_API_URL"`
	Username              string  `toml:"username" env:"SEASONBOT_BOT_USERNAME"`
	Admins                []int64 `toml:"admins" env:"SEASONBOT_ADMINS" envSeparator:","`
	Mode                  string  `toml:"mode" env:"SEASONBOT_BOT_MODE"`
	PollTimeoutSeconds    int     `toml:"poll_timeout_seconds"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	MaxConcurrentUpdates  int     `toml:"max_concurrent_updates"`
}

// Storage selects and configures the season catalog backend.
type Storage struct {
	Backend      string `toml:"backend" env:"SEASONBOT_STORAGE_BACKEND"`
	SQLitePath   string `toml:"sqlite_path" env:"SEASONBOT_SQLITE_PATH"`
	JSONPath     string `toml:"json_path" env:"SEASONBOT_JSON_PATH"`
	DSN          string `toml:"dsn" env:"SEASONBOT_STORAGE_DSN"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// Sessions configures where admin ingestion sessions live and when they expire.
type Sessions struct {
	Backend            string `toml:"backend" env:"SEASONBOT_SESSIONS_BACKEND"`
	IdleTimeoutMinutes int    `toml:"idle_timeout_minutes"`
	RedisAddr          string `toml:"redis_addr" env:"SEASONBOT_REDIS_ADDR"`
	RedisPassword      string `toml:"redis_password" env:"SEASONBOT_REDIS_PASSWORD"`
	RedisDB            int    `toml:"redis_db"`
	KeyPrefix          string `toml:"key_prefix"`
}

// Subscription configures forced-subscription membership checks.
type Subscription struct {
	LookupTimeoutSeconds int `toml:"lookup_timeout_seconds"`
}

// Delivery configures outbound season delivery pacing.
type Delivery struct {
	IntervalMS int    `toml:"interval_ms"`
	PartLabel  string `toml:"part_label"`
}

// Webhook configures push-based update intake.
type Webhook struct {
	PublicURL   string `toml:"public_url" env:"SEASONBOT_WEBHOOK_URL"`
	Path        string `toml:"path"`
	SecretToken string `toml:"secret_token" env:"SEASONBOT_WEBHOOK_SECRET"`
}

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir" env:"SEASONBOT_DATA_DIR"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind" env:"SEASONBOT_API_BIND"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"SEASONBOT_LOG_FORMAT"`
	Level  string `toml:"level" env:"SEASONBOT_LOG_LEVEL"`
}

// Config encapsulates all configuration values for seasonbot.
//
// Configuration sections by subsystem:
//   - Bot: token, admins and update intake mode
//   - Storage: catalog backend (sqlite, postgres, mysql, json)
//   - Sessions: ingestion session backend and idle expiry
//   - Subscription: membership lookup timeout
//   - Delivery: pacing between delivered files and caption label
//   - Webhook: public URL and secret for webhook mode
//   - Paths: data/log directories and the HTTP bind address
//   - Logging: log format and level
type Config struct {
	Bot          Bot          `toml:"bot"`
	Storage      Storage      `toml:"storage"`
	Sessions     Sessions     `toml:"sessions"`
	Subscription Subscription `toml:"subscription"`
	Delivery     Delivery     `toml:"delivery"`
	Webhook      Webhook      `toml:"webhook"`
	Paths        Paths        `toml:"paths"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/seasonbot/config.toml")
}

// Load locates, parses, and validates a configuration file. Values from a
// .env file and the process environment override the file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv populates unset environment variables from SEASONBOT_ENV_FILE,
// or ./.env when that is unset. A missing file is not an error.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("SEASONBOT_ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("seasonbot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file guarding the bot process.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "seasonbot.lock")
}

// LogPath is the file the daemon appends logs to.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "seasonbot.log")
}

// IdleTimeout is how long an untouched ingestion session survives. Zero disables expiry.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Sessions.IdleTimeoutMinutes) * time.Minute
}

// LookupTimeout bounds a single channel membership lookup.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.Subscription.LookupTimeoutSeconds) * time.Second
}

// DeliveryInterval is the pause between consecutive delivered files.
func (c *Config) DeliveryInterval() time.Duration {
	return time.Duration(c.Delivery.IntervalMS) * time.Millisecond
}

// PollTimeout is the long-poll window passed to getUpdates.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Bot.PollTimeoutSeconds) * time.Second
}

// RequestTimeout bounds ordinary Bot API calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Bot.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Bot.Admins = append([]int64(nil), c.Bot.Admins...)
	out.Bot.Token = mask(c.Bot.Token)
	out.Storage.DSN = mask(c.Storage.DSN)
	out.Sessions.RedisPassword = mask(c.Sessions.RedisPassword)
	out.Webhook.SecretToken = mask(c.Webhook.SecretToken)
	return out
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}
