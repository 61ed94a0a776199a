// Package appconfig manages the settings of the psetcfg tool: registered
// defaults layered under a configuration file, PSETCFG_* environment
// variables and --path=value overrides, in that order of increasing precedence.
package appconfig

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	// It is not fatal: defaults, environment and arguments still apply.
	ErrConfigNotFound = errors.New("configuration file not found")
	// ErrCLIParse wraps malformed --path=value arguments.
	ErrCLIParse = errors.New("failed to parse command-line arguments")
	// ErrPathNotRegistered is returned for reads and writes of unknown paths.
	ErrPathNotRegistered = errors.New("path not registered")
)

// item holds the default and per-source values of one configuration path.
type item struct {
	defaultValue any
	values       map[Source]any
	currentValue any
}

// Config holds registered paths and the values each source supplied for them.
type Config struct {
	items   map[string]item
	options LoadOptions
	file    string
	mutex   sync.RWMutex
}

// New creates an empty Config with default load options.
func New() *Config {
	return &Config{
		items:   make(map[string]item),
		options: DefaultLoadOptions(),
	}
}

// Register makes a dot-separated path known with its default value.
func (c *Config) Register(path string, defaultValue any) error {
	if path == "" {
		return fmt.Errorf("registration path cannot be empty")
	}
	for _, segment := range strings.Split(path, ".") {
		if !isValidKeySegment(segment) {
			return fmt.Errorf("invalid path segment %q in path %q", segment, path)
		}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[path] = item{
		defaultValue: defaultValue,
		currentValue: defaultValue,
	}
	return nil
}

// RegisterStruct registers every exported field of a defaults struct, using
// `toml` tags as path segments and descending into nested structs.
func (c *Config) RegisterStruct(prefix string, defaults any) error {
	v := reflect.ValueOf(defaults)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("RegisterStruct requires a non-nil struct pointer or value")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("RegisterStruct requires a struct or struct pointer, got %T", defaults)
	}

	var errs []string
	c.registerFields(v, prefix, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("failed to register %d field(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) registerFields(v reflect.Value, prefix string, errs *[]string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("toml")
		if tag == "-" {
			continue
		}
		key := field.Name
		if name := strings.Split(tag, ",")[0]; name != "" {
			key = name
		}

		path := key
		if prefix != "" {
			path = strings.TrimSuffix(prefix, ".") + "." + key
		}

		fieldValue := v.Field(i)
		if fieldValue.Kind() == reflect.Struct {
			c.registerFields(fieldValue, path, errs)
			continue
		}

		if err := c.Register(path, fieldValue.Interface()); err != nil {
			*errs = append(*errs, fmt.Sprintf("field %s (path %s): %v", field.Name, path, err))
		}
	}
}

// Get returns the current value of path.
func (c *Config) Get(path string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	it, exists := c.items[path]
	if !exists {
		return nil, false
	}
	return it.currentValue, true
}

// Source reports which source supplied the current value of path.
func (c *Config) Source(path string) (Source, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	it, exists := c.items[path]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrPathNotRegistered, path)
	}
	for _, source := range c.options.Sources {
		if _, ok := it.values[source]; ok {
			return source, nil
		}
	}
	return SourceDefault, nil
}

// Paths returns all registered paths, sorted.
func (c *Config) Paths() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	paths := make([]string, 0, len(c.items))
	for p := range c.items {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// File returns the path of the configuration file that was loaded, if any.
func (c *Config) File() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.file
}

// computeValue applies source precedence; must be called with the lock held.
func (c *Config) computeValue(it item) any {
	for _, source := range c.options.Sources {
		if source == SourceDefault {
			return it.defaultValue
		}
		if v, ok := it.values[source]; ok {
			return v
		}
	}
	return it.defaultValue
}

// setSourceValue stores v for path from source; must be called with the lock held.
func (c *Config) setSourceValue(path string, source Source, v any) {
	it, exists := c.items[path]
	if !exists {
		return
	}
	if it.values == nil {
		it.values = make(map[Source]any)
	}
	it.values[source] = v
	it.currentValue = c.computeValue(it)
	c.items[path] = it
}

// Scan decodes the section under basePath into target using `toml` tags.
// Values from environment and arguments arrive as strings and are converted
// to the target field types.
func (c *Config) Scan(basePath string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("target of Scan must be a non-nil pointer, got %T", target)
	}

	c.mutex.RLock()
	nested := make(map[string]any)
	for path, it := range c.items {
		setNestedValue(nested, path, it.currentValue)
	}
	c.mutex.RUnlock()

	var section any = nested
	if basePath = strings.TrimSuffix(basePath, "."); basePath != "" {
		for _, segment := range strings.Split(basePath, ".") {
			m, ok := section.(map[string]any)
			if !ok {
				section = map[string]any{}
				break
			}
			if section, ok = m[segment]; !ok {
				section = map[string]any{}
				break
			}
		}
	}

	sectionMap, ok := section.(map[string]any)
	if !ok {
		return fmt.Errorf("configuration path %q does not refer to a scannable section (map), but to type %T", basePath, section)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "toml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(sectionMap); err != nil {
		return fmt.Errorf("failed to scan section %q into %T: %w", basePath, target, err)
	}
	return nil
}
