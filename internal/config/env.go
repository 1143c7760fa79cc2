package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "NOTESYNC_CONFIG"
	EnvUsername  = "NOTESYNC_USERNAME"
	EnvPassword  = "NOTESYNC_PASSWORD"
	EnvWorkspace = "NOTESYNC_WORKSPACE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // NOTESYNC_CONFIG: override config file path
	Username   string // NOTESYNC_USERNAME: account email
	Password   string // NOTESYNC_PASSWORD: enables silent re-login
	Workspace  string // NOTESYNC_WORKSPACE: workspace directory override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Username:   os.Getenv(EnvUsername),
		Password:   os.Getenv(EnvPassword),
		Workspace:  os.Getenv(EnvWorkspace),
	}
}
