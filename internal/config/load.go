package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tonimelisma/notesync/internal/note"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolved is the effective configuration after all override layers, with
// durations parsed and paths made absolute.
type Resolved struct {
	ConfigPath string

	Username string
	Password string `json:"-"`
	APIURL   string
	AuthURL  string

	TokenPath    string
	PIDPath      string
	WorkspaceDir string
	CacheBackend string
	CachePath    string

	PollInterval     time.Duration
	SyncEvery        time.Duration
	AutosaveDebounce time.Duration
	StatusClearDelay time.Duration
	FetchWorkers     int
	OnConflict       string

	ExtensionRules []note.ExtensionRule

	Logging          LoggingConfig
	StatusListenAddr string
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.Username != "" {
		cfg.Account.Username = env.Username
	}

	if env.Workspace != "" {
		cfg.Workspace.Dir = env.Workspace
	}

	if cli.Workspace != nil {
		cfg.Workspace.Dir = *cli.Workspace
	}

	if cli.OnConflict != nil {
		cfg.Sync.OnConflict = *cli.OnConflict
	}

	// Flag values bypass the file validation in Load.
	if err := validateOnConflict(cfg.Sync.OnConflict); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	rc := build(cfg)
	rc.ConfigPath = cfgPath
	rc.Password = env.Password

	if err := ValidateResolved(rc); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return rc, nil
}

// build converts a validated Config into a Resolved. Duration strings have
// already been checked by Validate.
func build(cfg *Config) *Resolved {
	rc := &Resolved{
		Username:         cfg.Account.Username,
		APIURL:           cfg.Account.APIURL,
		AuthURL:          cfg.Account.AuthURL,
		TokenPath:        DefaultTokenPath(),
		PIDPath:          DefaultPIDPath(),
		WorkspaceDir:     expandTilde(cfg.Workspace.Dir),
		CacheBackend:     cfg.Cache.Backend,
		CachePath:        expandTilde(cfg.Cache.Path),
		PollInterval:     durationOrZero(cfg.Sync.PollInterval),
		SyncEvery:        durationOrZero(cfg.Sync.SyncEvery),
		AutosaveDebounce: durationOrZero(cfg.Sync.AutosaveDebounce),
		StatusClearDelay: durationOrZero(cfg.Sync.StatusClearDelay),
		FetchWorkers:     cfg.Sync.FetchWorkers,
		OnConflict:       cfg.Sync.OnConflict,
		Logging:          cfg.Logging,
		StatusListenAddr: cfg.Status.ListenAddr,
	}

	rc.Logging.LogFile = expandTilde(rc.Logging.LogFile)

	if rc.WorkspaceDir == "" {
		rc.WorkspaceDir = DefaultWorkspaceDir()
	}

	if rc.CachePath == "" {
		rc.CachePath = DefaultCachePath(rc.CacheBackend)
	}

	for _, r := range cfg.Workspace.TitleExtensionMap {
		rc.ExtensionRules = append(rc.ExtensionRules, note.ExtensionRule{
			TitleRegex: r.TitleRegex,
			Extension:  r.Extension,
		})
	}

	return rc
}

func durationOrZero(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}
