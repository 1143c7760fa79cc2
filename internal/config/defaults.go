package config

// Default values for configuration options. These are "layer 0" of the
// four-layer override chain.
const (
	defaultAPIURL           = "https://app.simplenote.com/api2"
	defaultAuthURL          = "https://app.simplenote.com/api/login"
	defaultPollInterval     = "1s"
	defaultSyncEvery        = "30s"
	defaultFetchWorkers     = 3
	defaultOnConflict       = "ask"
	defaultAutosaveDebounce = "0"
	defaultStatusClearDelay = "1s"
	defaultCacheBackend     = "sqlite"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
// Paths are left empty and resolved against the platform directories by
// Resolve.
func DefaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			APIURL:  defaultAPIURL,
			AuthURL: defaultAuthURL,
		},
		Sync: SyncConfig{
			PollInterval:     defaultPollInterval,
			SyncEvery:        defaultSyncEvery,
			FetchWorkers:     defaultFetchWorkers,
			OnConflict:       defaultOnConflict,
			AutosaveDebounce: defaultAutosaveDebounce,
			StatusClearDelay: defaultStatusClearDelay,
		},
		Cache: CacheConfig{
			Backend: defaultCacheBackend,
		},
		Logging: LoggingConfig{
			LogLevel:         defaultLogLevel,
			LogRetentionDays: defaultLogRetentionDays,
		},
	}
}
