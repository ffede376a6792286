// ABOUTME: XDG Base Directory support for locating config and data files
// ABOUTME: Expands $XDG_* prefixes and ~ in configured paths with HOME fallback

package xdg

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the subdirectory used under each XDG base directory.
const AppName = "local-dev-insights"

// ConfigHome returns ~/.config/local-dev-insights or respects XDG_CONFIG_HOME.
func ConfigHome() string {
	return filepath.Join(baseDir("XDG_CONFIG_HOME", ".config"), AppName)
}

// DataHome returns ~/.local/share/local-dev-insights or respects XDG_DATA_HOME.
func DataHome() string {
	return filepath.Join(baseDir("XDG_DATA_HOME", filepath.Join(".local", "share")), AppName)
}

// DefaultConfigFile is where the server looks for config.yaml when no path is given.
func DefaultConfigFile() string {
	return filepath.Join(ConfigHome(), "config.yaml")
}

var expansions = []struct {
	variable string
	fallback string
}{
	{"$XDG_DATA_HOME", filepath.Join(".local", "share")},
	{"$XDG_CONFIG_HOME", ".config"},
	{"$XDG_CACHE_HOME", ".cache"},
}

// ExpandPath expands $XDG_* variables and ~ in config paths.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(getHome(), path[2:])
	}

	// strings.HasPrefix, not filepath.HasPrefix: the variable is not a path element yet.
	for _, e := range expansions {
		if strings.HasPrefix(path, e.variable) {
			dir := baseDir(strings.TrimPrefix(e.variable, "$"), e.fallback)
			return strings.Replace(path, e.variable, dir, 1)
		}
	}

	return path
}

func baseDir(envVar, homeRelative string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return dir
	}
	return filepath.Join(getHome(), homeRelative)
}

// getHome returns HOME, falling back to the working directory.
func getHome() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}
