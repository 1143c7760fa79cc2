package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// configFilePermissions is the standard permission mode for config files.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the config file written on first login. Every setting
// is present as a commented-out default so users can discover the options
// without reading docs. User edits are preserved by later line-level edits.
const configTemplate = `# notesync configuration

[account]
# username = ""

[sync]
# poll_interval = "1s"
# sync_every = "30s"
# fetch_workers = 3
# on_conflict = "ask"         # ask, use_server, keep_local
# autosave_debounce = "0"
# status_clear_delay = "1s"

[workspace]
# dir = "~/.local/share/notesync/notes"
# [[workspace.title_extension_map]]
# title_regex = "^#"
# extension = "md"

[cache]
# backend = "sqlite"          # sqlite, json
# path = ""

[logging]
# log_level = "info"
# log_file = ""
# log_retention_days = 30

[status]
# listen_addr = ""
`

// SetUsername records the account username in the config file, creating
// the file from the template when it does not exist. An existing username
// line in [account] is replaced; otherwise one is inserted after the
// section header.
func SetUsername(path, username string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = []byte(configTemplate)
	} else if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	line := fmt.Sprintf("username = %q", username)

	header := findSectionHeader(lines, "account")
	if header < 0 {
		lines = append(lines, "", "[account]", line)
	} else {
		lines = setKeyInSection(lines, header, "username", line)
	}

	return writeConfigFile(path, []byte(strings.Join(lines, "\n")))
}

// findSectionHeader returns the line index of [name], or -1.
func findSectionHeader(lines []string, name string) int {
	header := "[" + name + "]"

	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return i
		}
	}

	return -1
}

// findSectionEnd returns the index of the next section header after
// headerLine, or len(lines).
func findSectionEnd(lines []string, headerLine int) int {
	for i := headerLine + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "[") {
			return i
		}
	}

	return len(lines)
}

// setKeyInSection either replaces an existing key line (commented out or
// not) or inserts a new one after the section header.
func setKeyInSection(lines []string, headerLine int, key, newLine string) []string {
	end := findSectionEnd(lines, headerLine)

	for i := headerLine + 1; i < end; i++ {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[i]), "#"))
		if strings.HasPrefix(trimmed, key+" ") || strings.HasPrefix(trimmed, key+"=") {
			lines[i] = newLine

			return lines
		}
	}

	inserted := make([]string, 0, len(lines)+1)
	inserted = append(inserted, lines[:headerLine+1]...)
	inserted = append(inserted, newLine)
	inserted = append(inserted, lines[headerLine+1:]...)

	return inserted
}

// writeConfigFile replaces path atomically, creating parent directories.
func writeConfigFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := os.Chmod(path, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	return nil
}
