package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"time"
)

// Validation range constants.
const (
	minFetchWorkers  = 1
	maxFetchWorkers  = 16
	minLogRetention  = 1
	minPollInterval  = 10 * time.Millisecond
	minSyncEvery     = 5 * time.Second
	maxExtensionSize = 16
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAccount(&cfg.Account)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateWorkspace(&cfg.Workspace)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on the final merged result.
func ValidateResolved(rc *Resolved) error {
	var errs []error

	// Relative paths would resolve differently depending on cwd.
	if rc.WorkspaceDir != "" && !filepath.IsAbs(rc.WorkspaceDir) {
		errs = append(errs, fmt.Errorf("workspace.dir: must be absolute after expansion, got %q", rc.WorkspaceDir))
	}

	if rc.CachePath != "" && !filepath.IsAbs(rc.CachePath) {
		errs = append(errs, fmt.Errorf("cache.path: must be absolute after expansion, got %q", rc.CachePath))
	}

	return errors.Join(errs...)
}

func validateAccount(a *AccountConfig) []error {
	var errs []error

	for _, f := range []struct{ field, value string }{
		{"account.api_url", a.APIURL},
		{"account.auth_url", a.AuthURL},
	} {
		u, err := url.Parse(f.value)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: must be an http(s) URL, got %q", f.field, f.value))
		}
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("sync.poll_interval", s.PollInterval, minPollInterval)...)
	errs = append(errs, validateDurationZeroOrMin("sync.sync_every", s.SyncEvery, minSyncEvery)...)
	errs = append(errs, validateDurationNonNeg("sync.autosave_debounce", s.AutosaveDebounce)...)
	errs = append(errs, validateDurationNonNeg("sync.status_clear_delay", s.StatusClearDelay)...)

	if s.FetchWorkers < minFetchWorkers || s.FetchWorkers > maxFetchWorkers {
		errs = append(errs, fmt.Errorf("sync.fetch_workers: must be between %d and %d, got %d",
			minFetchWorkers, maxFetchWorkers, s.FetchWorkers))
	}

	if err := validateOnConflict(s.OnConflict); err != nil {
		errs = append(errs, err)
	}

	return errs
}

var validOnConflict = map[string]bool{
	"ask":        true,
	"use_server": true,
	"keep_local": true,
}

func validateOnConflict(s string) error {
	if !validOnConflict[s] {
		return fmt.Errorf("sync.on_conflict: must be one of ask, use_server, keep_local; got %q", s)
	}

	return nil
}

func validateWorkspace(w *WorkspaceConfig) []error {
	var errs []error

	for i, r := range w.TitleExtensionMap {
		if _, err := regexp.Compile(r.TitleRegex); err != nil {
			errs = append(errs, fmt.Errorf("workspace.title_extension_map[%d].title_regex: %w", i, err))
		}

		if r.Extension == "" || len(r.Extension) > maxExtensionSize {
			errs = append(errs, fmt.Errorf("workspace.title_extension_map[%d].extension: must be 1-%d characters, got %q",
				i, maxExtensionSize, r.Extension))
		}
	}

	return errs
}

func validateCache(c *CacheConfig) []error {
	if c.Backend != "sqlite" && c.Backend != "json" {
		return []error{fmt.Errorf("cache.backend: must be sqlite or json; got %q", c.Backend)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)

	if l.LogRetentionDays < minLogRetention {
		errs = append(errs, fmt.Errorf("logging.log_retention_days: must be >= %d, got %d",
			minLogRetention, l.LogRetentionDays))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

// validateDurationZeroOrMin accepts "0" (disabled) or at least minimum.
func validateDurationZeroOrMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d != 0 && d < minimum {
		return []error{fmt.Errorf("%s: must be 0 (disabled) or >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}
