package audio

import (
	"errors"
	"io"
)

// Common errors for Backend implementations
var (
	ErrBackendNotAvailable = errors.New("audio backend not available")
	ErrBackendClosed       = errors.New("audio backend is closed")
)

// Backend drives an audio device (or a stand-in) by pulling signed
// 16-bit little-endian stereo PCM from a source, normally an Output.
type Backend interface {
	// Start begins pulling from src at the given sample rate
	Start(src io.Reader, sampleRate int) error

	// Close stops the device and releases it
	Close() error

	// Name identifies the backend type
	Name() string
}
