package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// User holds the optional per-user defaults file.
type User struct {
	Defaults Defaults `toml:"defaults"`
}

// Defaults fill build settings a project file leaves unset.
type Defaults struct {
	Compress      *bool    `toml:"compress"`
	Encrypt       *bool    `toml:"encrypt"`
	Verify        *bool    `toml:"verify"`
	CacheLocation *string  `toml:"cache_location"`
	Targets       []string `toml:"targets"`
}

// Path returns the resolved path to the user defaults file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "sepack", "config.toml")
}

// Load reads the user defaults file. Returns a zero User (no error) if the
// file does not exist.
func Load() (User, error) {
	path := Path()
	if path == "" {
		return User{}, nil
	}

	var u User
	if _, err := toml.DecodeFile(path, &u); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return User{}, nil
		}
		return User{}, err
	}
	return u, nil
}
