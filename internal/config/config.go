// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for notesync. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Account   AccountConfig   `toml:"account"`
	Sync      SyncConfig      `toml:"sync"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Cache     CacheConfig     `toml:"cache"`
	Logging   LoggingConfig   `toml:"logging"`
	Status    StatusConfig    `toml:"status"`
}

// AccountConfig identifies the Simplenote account and endpoints.
type AccountConfig struct {
	Username string `toml:"username"`
	APIURL   string `toml:"api_url"`
	AuthURL  string `toml:"auth_url"`
}

// SyncConfig controls queue timing, fetch concurrency and conflict handling.
// Durations are Go duration strings; "0" disables sync_every and
// autosave_debounce.
type SyncConfig struct {
	PollInterval     string `toml:"poll_interval"`
	SyncEvery        string `toml:"sync_every"`
	FetchWorkers     int    `toml:"fetch_workers"`
	OnConflict       string `toml:"on_conflict"`
	AutosaveDebounce string `toml:"autosave_debounce"`
	StatusClearDelay string `toml:"status_clear_delay"`
}

// WorkspaceConfig controls where open notes live and how they are named.
type WorkspaceConfig struct {
	Dir               string          `toml:"dir"`
	TitleExtensionMap []ExtensionRule `toml:"title_extension_map"`
}

// ExtensionRule gives notes whose title matches TitleRegex a file extension.
type ExtensionRule struct {
	TitleRegex string `toml:"title_regex"`
	Extension  string `toml:"extension"`
}

// CacheConfig selects the persisted snapshot store.
type CacheConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// LoggingConfig controls log output behavior: level, destination, rotation.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// StatusConfig controls the websocket status hub. An empty listen_addr
// disables it.
type StatusConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	Workspace  *string // --workspace flag
	OnConflict *string // --on-conflict flag
}
