package soundpack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestFileNames are looked up, in order, inside a soundpack directory
var ManifestFileNames = []string{"soundpack.yaml", "soundpack.yml", "soundpack.json"}

// Manifest describes a soundpack: aliases mapped to base paths without extension
type Manifest struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version,omitempty" yaml:"version,omitempty"`
	Sounds      map[string]string `json:"sounds" yaml:"sounds"`
}

// ParseManifest decodes manifest bytes. The format follows the file extension:
// .yaml and .yml are YAML, everything else is JSON.
func ParseManifest(filename string, data []byte) (*Manifest, error) {
	var m Manifest

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse JSON manifest: %w", err)
		}
	}

	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: name cannot be empty", filename)
	}
	if len(m.Sounds) == 0 {
		return nil, fmt.Errorf("manifest %s: sounds cannot be empty", filename)
	}
	for alias, target := range m.Sounds {
		if _, err := SanitizeName(target); err != nil && !filepath.IsAbs(target) {
			return nil, fmt.Errorf("manifest %s: sound %q: %w", filename, alias, err)
		}
	}

	return &m, nil
}

// LoadManifest reads and parses a manifest file
func LoadManifest(fs afero.Fs, filename string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(filename, data)
	if err != nil {
		return nil, err
	}

	slog.Debug("loaded soundpack manifest",
		"file", filename,
		"name", m.Name,
		"sounds", len(m.Sounds))

	return m, nil
}

// ManifestMapper maps aliases to base paths defined in a manifest.
// Relative targets are resolved against root.
type ManifestMapper struct {
	name    string
	root    string
	mapping map[string]string
}

// NewManifestMapper creates a manifest-based path mapper
func NewManifestMapper(m *Manifest, root string) PathMapper {
	return &ManifestMapper{
		name:    m.Name,
		root:    root,
		mapping: m.Sounds,
	}
}

// MapPath returns the aliased base path, or nothing when the alias is unknown
func (mm *ManifestMapper) MapPath(name string) ([]string, error) {
	target, ok := mm.mapping[name]
	if !ok {
		return nil, nil
	}
	if filepath.IsAbs(target) {
		return []string{target}, nil
	}
	return []string{filepath.Join(mm.root, target)}, nil
}

// GetName returns the soundpack name
func (mm *ManifestMapper) GetName() string {
	return mm.name
}

// GetType returns the type identifier for manifest mappers
func (mm *ManifestMapper) GetType() string {
	return "manifest"
}
