package audio

import (
	"log/slog"
	"path"
	"strings"
)

// Resolver maps a logical sound name to the ordered list of file paths
// the pipeline should try.
type Resolver interface {
	Candidates(name string, extensions []string) []string
}

// ResolverFunc adapts a plain function to Resolver
type ResolverFunc func(name string, extensions []string) []string

// Candidates implements Resolver
func (f ResolverFunc) Candidates(name string, extensions []string) []string {
	return f(name, extensions)
}

// FileResolver composes candidates by appending each extension to the
// name inside a fixed audio directory.
type FileResolver struct {
	baseDir string
}

// NewFileResolver creates a FileResolver rooted at baseDir
func NewFileResolver(baseDir string) *FileResolver {
	return &FileResolver{baseDir: baseDir}
}

// BaseDir returns the directory candidates are composed in
func (f *FileResolver) BaseDir() string {
	return f.baseDir
}

// Candidates returns baseDir/name+ext for each extension, in order
func (f *FileResolver) Candidates(name string, extensions []string) []string {
	if name == "" {
		return nil
	}

	basePath := path.Join(f.baseDir, name)
	candidates := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		candidates = append(candidates, basePath+NormalizeExtension(ext))
	}

	slog.Debug("composed file candidates",
		"name", name,
		"base_dir", f.baseDir,
		"candidates", candidates)

	return candidates
}

// NormalizeExtension ensures an extension starts with a dot
func NormalizeExtension(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
