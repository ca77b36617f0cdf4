package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Bot API secret tokens allow 1-256 characters from this set.
var secretTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Validate ensures the configuration is usable. It does not require a bot
// token so offline catalog commands work without one; see ValidateRuntime.
func (c *Config) Validate() error {
	if err := c.validateBot(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateSubscription(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateRuntime adds the checks that only matter when the bot connects to
// the Bot API.
func (c *Config) ValidateRuntime() error {
	if c.Bot.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/seasonbot/config.toml"
		}
		return fmt.Errorf("bot.token is required. Set SEASONBOT_BOT_TOKEN or edit %s (create with 'seasonbot config init')", defaultPath)
	}
	if len(c.Bot.Admins) == 0 {
		return errors.New("bot.admins must list at least one user id")
	}
	if c.Bot.Mode == ModeWebhook && c.Webhook.PublicURL == "" {
		return errors.New("webhook.public_url is required when bot.mode is webhook")
	}
	return nil
}

func (c *Config) validateBot() error {
	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Paths.APIBind == "" {
			return errors.New("paths.api_bind is required when bot.mode is webhook")
		}
	default:
		return fmt.Errorf("bot.mode: unsupported value %q", c.Bot.Mode)
	}
	if c.Bot.PollTimeoutSeconds <= 0 {
		return errors.New("bot.poll_timeout_seconds must be positive")
	}
	if c.Bot.RequestTimeoutSeconds <= 0 {
		return errors.New("bot.request_timeout_seconds must be positive")
	}
	if c.Bot.MaxConcurrentUpdates <= 0 {
		return errors.New("bot.max_concurrent_updates must be positive")
	}
	for _, id := range c.Bot.Admins {
		if id <= 0 {
			return fmt.Errorf("bot.admins: invalid user id %d", id)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendJSON:
	case BackendPostgres, BackendMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateSessions() error {
	switch c.Sessions.Backend {
	case SessionsMemory:
	case SessionsRedis:
		if c.Sessions.RedisAddr == "" {
			return errors.New("sessions.redis_addr is required for the redis backend")
		}
		if c.Sessions.RedisDB < 0 {
			return errors.New("sessions.redis_db must be >= 0")
		}
	default:
		return fmt.Errorf("sessions.backend: unsupported value %q", c.Sessions.Backend)
	}
	if c.Sessions.IdleTimeoutMinutes < 0 {
		return errors.New("sessions.idle_timeout_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateSubscription() error {
	if c.Subscription.LookupTimeoutSeconds <= 0 {
		return errors.New("subscription.lookup_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if c.Delivery.IntervalMS <= 0 {
		return errors.New("delivery.interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if c.Webhook.SecretToken != "" && !secretTokenPattern.MatchString(c.Webhook.SecretToken) {
		return errors.New("webhook.secret_token may only contain A-Z, a-z, 0-9, _ and - (max 256)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
