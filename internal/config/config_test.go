package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	settings := new(Config)
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultLogLevel, settings.LogLevel)
	require.NotEmpty(t, settings.BinDir)
	require.NotEmpty(t, settings.StateDir)

	settings = &Config{Sources: []string{"https://bad host/x"}}
	require.Error(t, Validate(settings))

	settings = &Config{Sources: []string{"  "}}
	require.Error(t, Validate(settings))

	settings = &Config{LogLevel: "loud"}
	require.Error(t, Validate(settings))

	settings = &Config{Retries: -1}
	require.Error(t, Validate(settings))

	settings = &Config{Locations: map[string]string{"my dir": "/tmp"}}
	require.ErrorIs(t, Validate(settings), ErrInvalidLocationName)

	settings = &Config{Sources: []string{"https://example.com/proto.rb", "./formulas"}}
	require.NoError(t, Validate(settings))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	settings := &Config{
		Sources:   []string{"https://example.com/formulas/proto.rb"},
		Locations: map[string]string{"tools": "/opt/tools"},
		BinDir:    "/usr/local/bin",
		Timeout:   30 * time.Second,
		Retries:   5,
		LogLevel:  "debug",
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.Sources, loaded.Sources)
	require.Equal(t, settings.Locations, loaded.Locations)
	require.Equal(t, settings.BinDir, loaded.BinDir)
	require.Equal(t, settings.Timeout, loaded.Timeout)
	require.Equal(t, 5, loaded.Retries)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())

	require.NoError(t, Reset(path))
	require.NoError(t, Reset(path))

	loaded, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), loaded)
}

// TestLoad_Malformed rejects files that are not YAML mappings.
func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unterminated"), DefaultFilePermissions))

	_, err := Load(path)
	require.Error(t, err)
}

// TestSourcesAndLocations covers the add/remove helpers used by the config command.
func TestSourcesAndLocations(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.NoError(t, cfg.AddSource("https://example.com/a.rb"))
	require.ErrorIs(t, cfg.AddSource("https://example.com/a.rb"), ErrDuplicate)
	require.NoError(t, cfg.RemoveSource("https://example.com/a.rb"))
	require.ErrorIs(t, cfg.RemoveSource("https://example.com/a.rb"), ErrEntryNotFound)

	require.ErrorIs(t, cfg.AddLocation("a/b", "/tmp"), ErrInvalidLocationName)
	require.NoError(t, cfg.AddLocation("tools", "/opt/tools"))
	require.ErrorIs(t, cfg.AddLocation("tools", "/opt/other"), ErrDuplicate)
	require.NoError(t, cfg.AddLocation("apps", "/opt/apps"))
	require.Equal(t, []string{"apps", "tools"}, cfg.LocationNames())

	resolved, err := cfg.ResolveLocation("tools")
	require.NoError(t, err)
	require.Equal(t, "/opt/tools", resolved)

	resolved, err = cfg.ResolveLocation("/srv/bin")
	require.NoError(t, err)
	require.Equal(t, "/srv/bin", resolved)

	require.NoError(t, cfg.RemoveLocation("tools"))
	require.ErrorIs(t, cfg.RemoveLocation("tools"), ErrEntryNotFound)
}

// TestHomeExpansion checks "~" handling in both directions.
func TestHomeExpansion(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	require.Equal(t, filepath.Join(home, "bin"), ExpandHome("~/bin"))
	require.Equal(t, "/opt/bin", ExpandHome("/opt/bin"))
	require.Equal(t, "~/bin", CompressHome(filepath.Join(home, "bin")))
	require.Equal(t, "/opt/bin", CompressHome("/opt/bin"))
}
