package soundpack

import (
	"log/slog"
	"path/filepath"
)

// DirectoryMapper maps logical names to base paths under each search directory
type DirectoryMapper struct {
	name      string
	basePaths []string
}

// NewDirectoryMapper creates a new directory-based path mapper
func NewDirectoryMapper(name string, basePaths []string) PathMapper {
	slog.Debug("creating directory mapper",
		"name", name,
		"base_paths", basePaths)

	return &DirectoryMapper{
		name:      name,
		basePaths: basePaths,
	}
}

// MapPath joins the sanitised name to each search directory, in order
func (d *DirectoryMapper) MapPath(name string) ([]string, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(d.basePaths))
	for _, basePath := range d.basePaths {
		candidates = append(candidates, filepath.Join(basePath, clean))
	}
	return candidates, nil
}

// GetName returns the name of this directory mapper
func (d *DirectoryMapper) GetName() string {
	return d.name
}

// GetType returns the type identifier for directory mappers
func (d *DirectoryMapper) GetType() string {
	return "directory"
}
