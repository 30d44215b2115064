package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// appDir is the per-application directory under each XDG base directory
const appDir = "voicebus"

// XDGDirs provides XDG Base Directory compliant paths for voicebus
type XDGDirs struct{}

// NewXDGDirs creates a new XDG directory manager
func NewXDGDirs() *XDGDirs {
	return &XDGDirs{}
}

// GetSoundpackPaths returns prioritized paths where soundpacks can be found:
// user data dir first, then system data dirs
func (x *XDGDirs) GetSoundpackPaths(soundpackID string) []string {
	baseDir := filepath.Join(appDir, "soundpacks")
	if soundpackID != "" {
		baseDir = filepath.Join(baseDir, soundpackID)
	}

	paths := []string{filepath.Join(xdg.DataHome, baseDir)}
	for _, dataDir := range xdg.DataDirs {
		paths = append(paths, filepath.Join(dataDir, baseDir))
	}

	slog.Debug("generated soundpack paths",
		"soundpack_id", soundpackID,
		"total_paths", len(paths))

	return paths
}

// GetCachePath returns the cache directory path for a specific purpose
func (x *XDGDirs) GetCachePath(purpose string) string {
	baseDir := appDir
	if purpose != "" {
		baseDir = filepath.Join(baseDir, purpose)
	}
	return filepath.Join(xdg.CacheHome, baseDir)
}

// GetConfigPaths returns prioritized paths where config files can be found:
// user config dir first, then system config dirs
func (x *XDGDirs) GetConfigPaths(filename string) []string {
	var paths []string

	dirs := append([]string{xdg.ConfigHome}, xdg.ConfigDirs...)
	for _, dir := range dirs {
		p := filepath.Join(dir, appDir)
		if filename != "" {
			p = filepath.Join(p, filename)
		}
		paths = append(paths, p)
	}

	slog.Debug("generated config paths",
		"filename", filename,
		"total_paths", len(paths))

	return paths
}

// CreateCacheDir creates the cache directory for a specific purpose
func (x *XDGDirs) CreateCacheDir(purpose string) error {
	cachePath := x.GetCachePath(purpose)

	if err := os.MkdirAll(cachePath, 0755); err != nil {
		slog.Error("failed to create cache directory", "path", cachePath, "error", err)
		return err
	}

	slog.Debug("cache directory ready", "path", cachePath)
	return nil
}
