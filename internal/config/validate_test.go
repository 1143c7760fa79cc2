package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"api url", func(c *Config) { c.Account.APIURL = "ftp://x" }, "account.api_url"},
		{"auth url", func(c *Config) { c.Account.AuthURL = "" }, "account.auth_url"},
		{"poll interval format", func(c *Config) { c.Sync.PollInterval = "soon" }, "sync.poll_interval: invalid duration"},
		{"poll interval too short", func(c *Config) { c.Sync.PollInterval = "1ms" }, "sync.poll_interval: must be >="},
		{"sync every too short", func(c *Config) { c.Sync.SyncEvery = "1s" }, "sync.sync_every"},
		{"negative debounce", func(c *Config) { c.Sync.AutosaveDebounce = "-1s" }, "sync.autosave_debounce"},
		{"clear delay format", func(c *Config) { c.Sync.StatusClearDelay = "x" }, "sync.status_clear_delay"},
		{"workers low", func(c *Config) { c.Sync.FetchWorkers = 0 }, "sync.fetch_workers"},
		{"workers high", func(c *Config) { c.Sync.FetchWorkers = 17 }, "sync.fetch_workers"},
		{"policy", func(c *Config) { c.Sync.OnConflict = "merge" }, "sync.on_conflict"},
		{"bad regex", func(c *Config) {
			c.Workspace.TitleExtensionMap = []ExtensionRule{{TitleRegex: "(", Extension: "md"}}
		}, "title_extension_map[0].title_regex"},
		{"empty extension", func(c *Config) {
			c.Workspace.TitleExtensionMap = []ExtensionRule{{TitleRegex: ".", Extension: ""}}
		}, "title_extension_map[0].extension"},
		{"backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"log level", func(c *Config) { c.Logging.LogLevel = "verbose" }, "logging.log_level"},
		{"retention", func(c *Config) { c.Logging.LogRetentionDays = 0 }, "logging.log_retention_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_SyncEveryZeroDisables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.SyncEvery = "0"

	assert.NoError(t, Validate(cfg))
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.FetchWorkers = 0
	cfg.Cache.Backend = "redis"
	cfg.Logging.LogLevel = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.fetch_workers")
	assert.Contains(t, err.Error(), "cache.backend")
	assert.Contains(t, err.Error(), "logging.log_level")
}

func TestValidateResolved(t *testing.T) {
	assert.NoError(t, ValidateResolved(&Resolved{WorkspaceDir: "/abs", CachePath: "/abs/cache.db"}))

	err := ValidateResolved(&Resolved{WorkspaceDir: "rel", CachePath: "rel.db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace.dir")
	assert.Contains(t, err.Error(), "cache.path")
}
