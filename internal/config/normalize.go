package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBot()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeSessions()
	c.normalizeDelivery()
	c.normalizeWebhook()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeBot() {
	c.Bot.Token = strings.TrimSpace(c.Bot.Token)
	c.Bot.APIURL = strings.TrimRight(strings.TrimSpace(c.Bot.APIURL), "/")
	if c.Bot.APIURL == "" {
		c.Bot.APIURL = defaultBotAPIURL
	}
	c.Bot.Username = strings.TrimPrefix(strings.TrimSpace(c.Bot.Username), "@")
	c.Bot.Mode = strings.ToLower(strings.TrimSpace(c.Bot.Mode))
	if c.Bot.Mode == "" {
		c.Bot.Mode = defaultBotMode
	}
	if len(c.Bot.Admins) > 0 {
		seen := make(map[int64]struct{}, len(c.Bot.Admins))
		admins := make([]int64, 0, len(c.Bot.Admins))
		for _, id := range c.Bot.Admins {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			admins = append(admins, id)
		}
		c.Bot.Admins = admins
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	var err error
	if strings.TrimSpace(c.Storage.SQLitePath) == "" {
		c.Storage.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteFile)
	}
	if c.Storage.SQLitePath, err = expandPath(strings.TrimSpace(c.Storage.SQLitePath)); err != nil {
		return fmt.Errorf("storage.sqlite_path: %w", err)
	}
	if strings.TrimSpace(c.Storage.JSONPath) == "" {
		c.Storage.JSONPath = filepath.Join(c.Paths.DataDir, defaultJSONFile)
	}
	if c.Storage.JSONPath, err = expandPath(strings.TrimSpace(c.Storage.JSONPath)); err != nil {
		return fmt.Errorf("storage.json_path: %w", err)
	}
	if c.Storage.MaxOpenConns <= 0 {
		c.Storage.MaxOpenConns = defaultMaxOpenConns
	}
	return nil
}

func (c *Config) normalizeSessions() {
	c.Sessions.Backend = strings.ToLower(strings.TrimSpace(c.Sessions.Backend))
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = defaultSessionBackend
	}
	c.Sessions.RedisAddr = strings.TrimSpace(c.Sessions.RedisAddr)
	if c.Sessions.KeyPrefix == "" {
		c.Sessions.KeyPrefix = defaultSessionKeyPrefix
	}
}

func (c *Config) normalizeDelivery() {
	c.Delivery.PartLabel = strings.TrimSpace(c.Delivery.PartLabel)
	if c.Delivery.PartLabel == "" {
		c.Delivery.PartLabel = defaultPartLabel
	}
}

func (c *Config) normalizeWebhook() {
	c.Webhook.PublicURL = strings.TrimRight(strings.TrimSpace(c.Webhook.PublicURL), "/")
	c.Webhook.Path = strings.TrimSpace(c.Webhook.Path)
	if c.Webhook.Path == "" {
		c.Webhook.Path = defaultWebhookPath
	}
	if !strings.HasPrefix(c.Webhook.Path, "/") {
		c.Webhook.Path = "/" + c.Webhook.Path
	}
	c.Webhook.SecretToken = strings.TrimSpace(c.Webhook.SecretToken)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
