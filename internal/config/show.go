package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers "config show". The password is never
// printed.
func RenderEffective(rc *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", rc.ConfigPath)

	ew.printf("[account]\n")
	ew.printf("  username      = %q\n", rc.Username)
	ew.printf("  api_url       = %q\n", rc.APIURL)
	ew.printf("  auth_url      = %q\n", rc.AuthURL)
	ew.printf("  password      = %s\n", setOrUnset(rc.Password))
	ew.printf("  token_path    = %q\n\n", rc.TokenPath)

	ew.printf("[sync]\n")
	ew.printf("  poll_interval      = %q\n", rc.PollInterval.String())
	ew.printf("  sync_every         = %q\n", rc.SyncEvery.String())
	ew.printf("  fetch_workers      = %d\n", rc.FetchWorkers)
	ew.printf("  on_conflict        = %q\n", rc.OnConflict)
	ew.printf("  autosave_debounce  = %q\n", rc.AutosaveDebounce.String())
	ew.printf("  status_clear_delay = %q\n\n", rc.StatusClearDelay.String())

	ew.printf("[workspace]\n")
	ew.printf("  dir = %q\n", rc.WorkspaceDir)

	for _, r := range rc.ExtensionRules {
		ew.printf("  title_extension_map: %q -> %q\n", r.TitleRegex, r.Extension)
	}

	ew.printf("\n[cache]\n")
	ew.printf("  backend = %q\n", rc.CacheBackend)
	ew.printf("  path    = %q\n\n", rc.CachePath)

	ew.printf("[logging]\n")
	ew.printf("  log_level          = %q\n", rc.Logging.LogLevel)
	ew.printf("  log_file           = %q\n", rc.Logging.LogFile)
	ew.printf("  log_retention_days = %d\n\n", rc.Logging.LogRetentionDays)

	ew.printf("[status]\n")
	ew.printf("  listen_addr = %q\n", rc.StatusListenAddr)

	return ew.err
}

func setOrUnset(s string) string {
	if s == "" {
		return "(unset)"
	}

	return "(set)"
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
