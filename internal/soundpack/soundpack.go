// Package soundpack maps logical sound names to candidate files, either
// by directory lookup or through a manifest of aliases.
package soundpack

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"voicebus.click/internal/audio"
)

var (
	// ErrUnsafeName is returned for names that would escape the sound directory
	ErrUnsafeName = errors.New("unsafe sound name")
	// ErrSoundpackNotFound is returned when no soundpack directory or manifest matches
	ErrSoundpackNotFound = errors.New("soundpack not found")
)

// PathMapper maps a logical sound name to base paths without extension
type PathMapper interface {
	MapPath(name string) ([]string, error)
	GetName() string
	GetType() string
}

// Resolver composes pipeline candidates from a chain of mappers. Base paths
// from earlier mappers come first; each base path is tried with every
// extension before moving on.
type Resolver struct {
	mappers []PathMapper
}

var _ audio.Resolver = (*Resolver)(nil)

// NewResolver creates a resolver over mappers in priority order
func NewResolver(mappers ...PathMapper) *Resolver {
	for _, m := range mappers {
		slog.Debug("soundpack mapper registered", "mapper_name", m.GetName(), "mapper_type", m.GetType())
	}
	return &Resolver{mappers: mappers}
}

// Name returns the name of the highest priority mapper
func (r *Resolver) Name() string {
	if len(r.mappers) == 0 {
		return ""
	}
	return r.mappers[0].GetName()
}

// Candidates implements audio.Resolver
func (r *Resolver) Candidates(name string, extensions []string) []string {
	if name == "" {
		return nil
	}

	var candidates []string
	seen := make(map[string]bool)
	for _, m := range r.mappers {
		bases, err := m.MapPath(name)
		if err != nil {
			slog.Warn("rejecting sound name", "name", name, "mapper_type", m.GetType(), "error", err)
			return nil
		}
		for _, base := range bases {
			for _, ext := range extensions {
				candidate := base + audio.NormalizeExtension(ext)
				if !seen[candidate] {
					seen[candidate] = true
					candidates = append(candidates, candidate)
				}
			}
		}
	}

	slog.Debug("soundpack candidates",
		"name", name,
		"soundpack", r.Name(),
		"candidates", candidates)

	return candidates
}

// SanitizeName cleans a logical name and rejects anything that would
// resolve outside the directory it is joined to.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\\", "/")

	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsafeName)
	}

	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafeName, name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the sound directory", ErrUnsafeName, name)
	}
	return clean, nil
}

// Open builds the resolver for a soundpack setting. An empty soundpack
// searches audioDir only. A path to a manifest file maps its aliases and
// falls back to audioDir. Anything else is a soundpack ID looked up in
// searchPaths: an existing directory is searched directly, and a manifest
// inside it adds aliases.
func Open(fs afero.Fs, soundpack, audioDir string, searchPaths []string) (*Resolver, error) {
	fallback := NewDirectoryMapper("audio_dir", []string{audioDir})

	if soundpack == "" {
		return NewResolver(fallback), nil
	}

	if isManifestFile(fs, soundpack) {
		m, err := LoadManifest(fs, soundpack)
		if err != nil {
			return nil, err
		}
		return NewResolver(NewManifestMapper(m, filepath.Dir(soundpack)), fallback), nil
	}

	var (
		mappers []PathMapper
		dirs    []string
	)
	for _, dir := range searchPaths {
		if ok, _ := afero.DirExists(fs, dir); !ok {
			continue
		}
		dirs = append(dirs, dir)
		if manifest := findManifest(fs, dir); manifest != "" {
			m, err := LoadManifest(fs, manifest)
			if err != nil {
				return nil, err
			}
			mappers = append(mappers, NewManifestMapper(m, dir))
		}
	}

	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: %s (searched in: %s)", ErrSoundpackNotFound, soundpack, strings.Join(searchPaths, ", "))
	}

	mappers = append(mappers, NewDirectoryMapper(soundpack, dirs), fallback)
	slog.Info("soundpack opened", "soundpack", soundpack, "directories", dirs, "mappers", len(mappers))
	return NewResolver(mappers...), nil
}

func isManifestFile(fs afero.Fs, name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
	default:
		return false
	}
	info, err := fs.Stat(name)
	return err == nil && !info.IsDir()
}

func findManifest(fs afero.Fs, dir string) string {
	for _, name := range ManifestFileNames {
		p := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fs, p); ok {
			return p
		}
	}
	return ""
}
