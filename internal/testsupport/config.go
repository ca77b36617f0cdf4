package testsupport

import (
	"path/filepath"
	"testing"

	"seasonbot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Bot.Token = "123456:test-token"
	cfgVal.Bot.Username = "season_test_bot"
	cfgVal.Bot.Admins = []int64{1000}
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.SQLitePath = filepath.Join(base, "data", "seasonbot.db")
	cfgVal.Storage.JSONPath = filepath.Join(base, "data", "seasons.json")
	cfgVal.Delivery.IntervalMS = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAdmins replaces the admin allow-list.
func WithAdmins(ids ...int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bot.Admins = append([]int64(nil), ids...)
	}
}

// WithStorageBackend selects the catalog backend.
func WithStorageBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = backend
	}
}

// WithBotAPIURL points the Bot API client at a test server.
func WithBotAPIURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bot.APIURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
