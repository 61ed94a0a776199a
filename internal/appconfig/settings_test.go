package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lixenwraith/pset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		s, err := LoadSettings("", nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)

		policy, err := s.ShadowPolicy()
		require.NoError(t, err)
		assert.Equal(t, pset.ShadowAllow, policy)
	})

	t.Run("Layers", func(t *testing.T) {
		file := writeFile(t, "psetcfg.toml", `
shadow = "warn"

[log]
level = "debug"
max_size = 50

[output]
format = "yaml"
`)
		t.Setenv("PSETCFG_LOG_LEVEL", "info")

		s, err := LoadSettings(file, []string{"output.format=json"})
		require.NoError(t, err)
		assert.Equal(t, "warn", s.Shadow)
		assert.Equal(t, "info", s.Log.Level)
		assert.Equal(t, 50, s.Log.MaxSize)
		assert.Equal(t, 3, s.Log.MaxBackups)
		assert.Equal(t, "json", s.Output.Format)
	})

	t.Run("MissingFileKeepsOtherLayers", func(t *testing.T) {
		s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"), []string{"shadow=forbid"})
		require.ErrorIs(t, err, ErrConfigNotFound)
		assert.Equal(t, "forbid", s.Shadow)
		assert.Equal(t, "warn", s.Log.Level)
	})

	t.Run("InvalidShadow", func(t *testing.T) {
		_, err := LoadSettings("", []string{"shadow=loud"})
		assert.Error(t, err)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		_, err := LoadSettings("", []string{"output.format=xml"})
		assert.ErrorIs(t, err, pset.ErrUnknownFormat)
	})

	t.Run("UnknownSetting", func(t *testing.T) {
		_, err := LoadSettings("", []string{"colour=red"})
		assert.ErrorIs(t, err, ErrPathNotRegistered)
	})
}

func TestDiscover(t *testing.T) {
	isolate := func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
		t.Setenv("PSETCFG_CONFIG", "")
	}

	t.Run("EnvVarWins", func(t *testing.T) {
		isolate(t)
		t.Setenv("PSETCFG_CONFIG", "/explicit/path.toml")
		assert.Equal(t, "/explicit/path.toml", Discover(DefaultDiscoveryOptions("psetcfg")))
	})

	t.Run("SearchPathsInOrder", func(t *testing.T) {
		isolate(t)
		first, second := t.TempDir(), t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(second, "psetcfg.toml"), nil, 0644))
		require.NoError(t, os.WriteFile(filepath.Join(first, "psetcfg.yaml"), nil, 0644))

		opts := DefaultDiscoveryOptions("psetcfg")
		opts.Paths = []string{first, second}
		opts.UseCurrentDir = false
		assert.Equal(t, filepath.Join(first, "psetcfg.yaml"), Discover(opts))
	})

	t.Run("XDG", func(t *testing.T) {
		isolate(t)
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", home)
		dir := filepath.Join(home, "psetcfg")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "psetcfg.json"), nil, 0644))

		opts := DefaultDiscoveryOptions("psetcfg")
		opts.UseCurrentDir = false
		assert.Equal(t, filepath.Join(dir, "psetcfg.json"), Discover(opts))
	})

	t.Run("NotFound", func(t *testing.T) {
		isolate(t)
		opts := DefaultDiscoveryOptions("psetcfg")
		opts.UseCurrentDir = false
		assert.Empty(t, Discover(opts))
	})
}
