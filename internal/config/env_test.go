package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvUsername, "alice@example.com")
	t.Setenv(EnvPassword, "secret")
	t.Setenv(EnvWorkspace, "/tmp/notes")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "alice@example.com", overrides.Username)
	assert.Equal(t, "secret", overrides.Password)
	assert.Equal(t, "/tmp/notes", overrides.Workspace)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	for _, name := range []string{EnvConfig, EnvUsername, EnvPassword, EnvWorkspace} {
		t.Setenv(name, "")
	}

	assert.Equal(t, EnvOverrides{}, ReadEnvOverrides())
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "NOTESYNC_CONFIG", EnvConfig)
	assert.Equal(t, "NOTESYNC_USERNAME", EnvUsername)
	assert.Equal(t, "NOTESYNC_PASSWORD", EnvPassword)
	assert.Equal(t, "NOTESYNC_WORKSPACE", EnvWorkspace)
}
