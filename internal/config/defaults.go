package config

const (
	defaultDataDir              = "~/.local/share/seasonbot"
	defaultLogDir               = "~/.local/share/seasonbot/logs"
	defaultAPIBind              = "127.0.0.1:8787"
	defaultBotAPIURL            = "https://api.telegram.org"
	defaultBotMode              = ModePolling
	defaultPollTimeoutSeconds   = 30
	defaultRequestTimeout       = 15
	defaultMaxConcurrentUpdates = 16
	defaultStorageBackend       = BackendSQLite
	defaultSQLiteFile           = "seasonbot.db"
	defaultJSONFile             = "seasons.json"
	defaultMaxOpenConns         = 10
	defaultSessionBackend       = SessionsMemory
	defaultIdleTimeoutMinutes   = 30
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultSessionKeyPrefix     = "seasonbot:session:"
	defaultLookupTimeoutSeconds = 10
	defaultDeliveryIntervalMS   = 1000
	defaultPartLabel            = "part"
	defaultWebhookPath          = "/telegram/webhook"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Update intake modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Catalog storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendJSON     = "json"
)

// Session storage backends.
const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Bot: Bot{
			APIURL:                defaultBotAPIURL,
			Mode:                  defaultBotMode,
			PollTimeoutSeconds:    defaultPollTimeoutSeconds,
			RequestTimeoutSeconds: defaultRequestTimeout,
			MaxConcurrentUpdates:  defaultMaxConcurrentUpdates,
		},
		Storage: Storage{
			Backend:      defaultStorageBackend,
			MaxOpenConns: defaultMaxOpenConns,
		},
		Sessions: Sessions{
			Backend:            defaultSessionBackend,
			IdleTimeoutMinutes: defaultIdleTimeoutMinutes,
			RedisAddr:          defaultRedisAddr,
			KeyPrefix:          defaultSessionKeyPrefix,
		},
		Subscription: Subscription{
			LookupTimeoutSeconds: defaultLookupTimeoutSeconds,
		},
		Delivery: Delivery{
			IntervalMS: defaultDeliveryIntervalMS,
			PartLabel:  defaultPartLabel,
		},
		Webhook: Webhook{
			Path: defaultWebhookPath,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
