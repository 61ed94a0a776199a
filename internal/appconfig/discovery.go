package appconfig

import (
	"os"
	"path/filepath"
	"strings"
)

// DiscoveryOptions configures the search for a settings file.
type DiscoveryOptions struct {
	// Name is the base file name without extension.
	Name string
	// Extensions are tried in order.
	Extensions []string
	// Paths are searched before the current and XDG directories.
	Paths []string
	// EnvVar names a variable holding an explicit file path.
	EnvVar string
	// UseXDG searches $XDG_CONFIG_HOME/<name> and the XDG system directories.
	UseXDG bool
	// UseCurrentDir searches the working directory.
	UseCurrentDir bool
}

// DefaultDiscoveryOptions searches for <appName>.{toml,yaml,yml,json}.
func DefaultDiscoveryOptions(appName string) DiscoveryOptions {
	return DiscoveryOptions{
		Name:          appName,
		Extensions:    []string{".toml", ".yaml", ".yml", ".json"},
		EnvVar:        strings.ToUpper(appName) + "_CONFIG",
		UseXDG:        true,
		UseCurrentDir: true,
	}
}

// Discover returns the first settings file found, or "" if there is none.
// An explicit path in opts.EnvVar is returned without checking it exists.
func Discover(opts DiscoveryOptions) string {
	if opts.EnvVar != "" {
		if path := os.Getenv(opts.EnvVar); path != "" {
			return path
		}
	}

	searchPaths := append([]string{}, opts.Paths...)
	if opts.UseCurrentDir {
		if cwd, err := os.Getwd(); err == nil {
			searchPaths = append(searchPaths, cwd)
		}
	}
	if opts.UseXDG {
		searchPaths = append(searchPaths, xdgConfigPaths(opts.Name)...)
	}

	for _, dir := range searchPaths {
		for _, ext := range opts.Extensions {
			path := filepath.Join(dir, opts.Name+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// xdgConfigPaths returns XDG-compliant config search paths
func xdgConfigPaths(appName string) []string {
	var paths []string

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		paths = append(paths, filepath.Join(xdgHome, appName))
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", appName))
	}

	if xdgDirs := os.Getenv("XDG_CONFIG_DIRS"); xdgDirs != "" {
		for _, dir := range filepath.SplitList(xdgDirs) {
			paths = append(paths, filepath.Join(dir, appName))
		}
	} else {
		paths = append(paths, filepath.Join("/etc/xdg", appName))
	}

	return paths
}
