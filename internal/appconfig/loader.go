package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Source identifies where a configuration value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceCLI     Source = "cli"
)

// EnvTransformFunc converts a configuration path to an environment variable name.
type EnvTransformFunc func(path string) string

// LoadOptions configures how sources are layered.
type LoadOptions struct {
	// Sources in precedence order, highest first.
	Sources []Source

	// EnvPrefix is prepended to variable names: with "PSETCFG_",
	// "log.level" is read from PSETCFG_LOG_LEVEL.
	EnvPrefix string

	// EnvTransform overrides the default path to variable mapping.
	EnvTransform EnvTransformFunc
}

// DefaultLoadOptions returns cli > env > file > default.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Sources: []Source{SourceCLI, SourceEnv, SourceFile, SourceDefault},
	}
}

// LoadWithOptions loads every source in opts. A missing file is the only
// non-fatal error and is reported as ErrConfigNotFound after all sources load.
func (c *Config) LoadWithOptions(filePath string, args []string, opts LoadOptions) error {
	c.mutex.Lock()
	c.options = opts
	c.mutex.Unlock()

	var loadErrors []error

	// lowest precedence first
	for i := len(opts.Sources) - 1; i >= 0; i-- {
		switch opts.Sources[i] {
		case SourceDefault:
			continue

		case SourceFile:
			if filePath == "" {
				continue
			}
			if err := c.loadFile(filePath); err != nil {
				if !errors.Is(err, ErrConfigNotFound) {
					return err
				}
				loadErrors = append(loadErrors, err)
			}

		case SourceEnv:
			c.loadEnv(opts)

		case SourceCLI:
			if err := c.loadCLI(args); err != nil {
				return err
			}
		}
	}

	return errors.Join(loadErrors...)
}

// loadFile reads a toml, json or yaml file chosen by extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	fileConfig := make(map[string]any)
	switch format := detectFileFormat(path); format {
	case "toml":
		if err := toml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse TOML config file '%s': %w", path, err)
		}
	case "json":
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse JSON config file '%s': %w", path, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse YAML config file '%s': %w", path, err)
		}
	default:
		return fmt.Errorf("unable to determine config format for file '%s'", path)
	}

	flat := flattenMap(fileConfig, "")

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.file = path
	for p, v := range flat {
		c.setSourceValue(p, SourceFile, v)
	}
	return nil
}

// loadEnv reads one variable per registered path. Values stay strings until Scan.
func (c *Config) loadEnv(opts LoadOptions) {
	transform := opts.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(opts.EnvPrefix)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for path := range c.items {
		if value, exists := os.LookupEnv(transform(path)); exists {
			c.setSourceValue(path, SourceEnv, value)
		}
	}
}

// loadCLI applies --path=value, --path value and --flag arguments.
func (c *Config) loadCLI(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCLIParse, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for path, value := range parsed {
		if _, exists := c.items[path]; !exists {
			return fmt.Errorf("%w: %w: %s", ErrCLIParse, ErrPathNotRegistered, path)
		}
		c.setSourceValue(path, SourceCLI, value)
	}
	return nil
}

// defaultEnvTransform maps "log.max_size" to PREFIX + "LOG_MAX_SIZE".
func defaultEnvTransform(prefix string) EnvTransformFunc {
	return func(path string) string {
		return prefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
	}
}

// parseArgs turns arguments into a flat path to value map. Arguments not
// starting with "--" are skipped.
func parseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		content := strings.TrimPrefix(arg, "--")
		if content == "" {
			continue
		}

		var keyPath, valueStr string
		if k, v, found := strings.Cut(content, "="); found {
			keyPath, valueStr = k, v
		} else if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
			keyPath, valueStr = content, "true"
		} else {
			keyPath, valueStr = content, args[i+1]
			i++
		}

		if keyPath == "" {
			continue
		}
		for _, segment := range strings.Split(keyPath, ".") {
			if !isValidKeySegment(segment) {
				return nil, fmt.Errorf("invalid command-line key segment %q in path %q", segment, keyPath)
			}
		}
		result[keyPath] = parseValue(valueStr)
	}
	return result, nil
}

// parseValue recognizes booleans and strips quotes; everything else stays a
// string for Scan to convert.
func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}
