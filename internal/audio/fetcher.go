package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
)

// Fetcher retrieves the raw bytes of one candidate file
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FetcherFunc adapts a plain function to Fetcher
type FetcherFunc func(ctx context.Context, path string) ([]byte, error)

// Fetch implements Fetcher
func (f FetcherFunc) Fetch(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// FsFetcher reads candidates from an afero filesystem
type FsFetcher struct {
	fs afero.Fs
}

// NewFsFetcher creates a fetcher backed by fs
func NewFsFetcher(fs afero.Fs) *FsFetcher {
	return &FsFetcher{fs: fs}
}

// Fetch reads the whole file at path
func (f *FsFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched candidate", "path", path, "size_bytes", len(data))
	return data, nil
}
