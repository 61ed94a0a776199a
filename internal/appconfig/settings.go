package appconfig

import (
	"errors"
	"fmt"

	"github.com/lixenwraith/pset"
	"github.com/lixenwraith/pset/internal/logging"
)

// EnvPrefix prefixes every environment variable read by the tool.
const EnvPrefix = "PSETCFG_"

// OutputSettings controls how commands print parameter sets.
type OutputSettings struct {
	// Format is "cfg" for the configuration-language rendering, or a
	// document format: "toml", "json" or "yaml".
	Format string `toml:"format"`
}

// Settings is the full tool configuration.
type Settings struct {
	Log    logging.Config `toml:"log"`
	Output OutputSettings `toml:"output"`
	// Shadow is the policy for declarations overriding included fields:
	// "allow", "warn" or "forbid".
	Shadow string `toml:"shadow"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Log:    logging.DefaultConfig(),
		Output: OutputSettings{Format: "cfg"},
		Shadow: pset.ShadowAllow.String(),
	}
}

// ShadowPolicy parses Shadow.
func (s Settings) ShadowPolicy() (pset.ShadowPolicy, error) {
	return pset.ParseShadowPolicy(s.Shadow)
}

// LoadSettings layers file, PSETCFG_* variables and overrides (as
// "path=value") over the defaults. An empty file skips file loading. A
// missing file returns the remaining layers together with ErrConfigNotFound.
func LoadSettings(file string, overrides []string) (Settings, error) {
	args := make([]string, 0, len(overrides))
	for _, o := range overrides {
		args = append(args, "--"+o)
	}

	defaults := DefaultSettings()
	var settings Settings
	err := NewBuilder().
		WithDefaults(&defaults).
		WithEnvPrefix(EnvPrefix).
		WithFile(file).
		WithArgs(args).
		WithValidator(validateSettings).
		BuildAndScan(&settings)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return settings, err
		}
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func validateSettings(c *Config) error {
	var s Settings
	if err := c.Scan("", &s); err != nil {
		return err
	}
	if _, err := s.ShadowPolicy(); err != nil {
		return err
	}
	if s.Output.Format != "cfg" {
		if _, err := pset.ParseFormat(s.Output.Format); err != nil {
			return fmt.Errorf("output.format: %w", err)
		}
	}
	return nil
}
