package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/sepack/internal/config"
)

func writeUserConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	configDir := filepath.Join(dir, "sepack")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	u, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, u.Defaults.Compress)
	assert.Nil(t, u.Defaults.Encrypt)
	assert.Nil(t, u.Defaults.CacheLocation)
}

func TestLoad_FullConfig(t *testing.T) {
	writeUserConfig(t, `
[defaults]
compress = false
encrypt = true
verify = true
cache_location = "$HOME/.sepack"
targets = ["linux-x64", "win32-x64"]
`)

	u, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, u.Defaults.Compress)
	assert.False(t, *u.Defaults.Compress)
	require.NotNil(t, u.Defaults.Encrypt)
	assert.True(t, *u.Defaults.Encrypt)
	require.NotNil(t, u.Defaults.Verify)
	assert.True(t, *u.Defaults.Verify)
	require.NotNil(t, u.Defaults.CacheLocation)
	assert.Equal(t, "$HOME/.sepack", *u.Defaults.CacheLocation)
	assert.Equal(t, []string{"linux-x64", "win32-x64"}, u.Defaults.Targets)
}

func TestLoad_PartialConfig(t *testing.T) {
	writeUserConfig(t, `
[defaults]
encrypt = true
`)

	u, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, u.Defaults.Compress)
	require.NotNil(t, u.Defaults.Encrypt)
	assert.True(t, *u.Defaults.Encrypt)
}

func TestLoad_InvalidTOML(t *testing.T) {
	writeUserConfig(t, "invalid [[[")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, filepath.Join("/custom/config", "sepack", "config.toml"), config.Path())
}
