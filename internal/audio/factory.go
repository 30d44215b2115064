package audio

import (
	"errors"
	"fmt"
	"log/slog"
)

// BackendFactory creates Backend instances based on configuration
type BackendFactory interface {
	CreateBackend(backendType string) (Backend, error)
	GetSupportedBackends() []string
	IsValidBackendType(backendType string) bool
}

// DefaultBackendFactory implements BackendFactory
type DefaultBackendFactory struct {
	deviceAvailable func() bool
}

// Factory errors
var (
	ErrInvalidBackendType    = errors.New("invalid backend type")
	ErrBackendCreationFailed = errors.New("backend creation failed")
)

// NewBackendFactory creates a factory that detects device support from
// the build
func NewBackendFactory() *DefaultBackendFactory {
	return &DefaultBackendFactory{
		deviceAvailable: func() bool { return cgoEnabled },
	}
}

// NewBackendFactoryWithDependencies creates a factory with injected
// detection for testing
func NewBackendFactoryWithDependencies(deviceAvailable func() bool) *DefaultBackendFactory {
	return &DefaultBackendFactory{deviceAvailable: deviceAvailable}
}

// CreateBackend creates a Backend based on the specified type
func (f *DefaultBackendFactory) CreateBackend(backendType string) (Backend, error) {
	if backendType == "" {
		backendType = "auto"
	}

	slog.Debug("creating audio backend", "type", backendType)

	switch backendType {
	case "auto":
		return f.createAutoBackend(), nil
	case "malgo":
		return NewMalgoBackend(), nil
	case "oto":
		return NewOtoBackend(), nil
	case "null":
		return NewNullBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackendType, backendType)
	}
}

// GetSupportedBackends returns a list of all supported backend types
func (f *DefaultBackendFactory) GetSupportedBackends() []string {
	return []string{"auto", "malgo", "oto", "null"}
}

// IsValidBackendType checks if a backend type is supported
func (f *DefaultBackendFactory) IsValidBackendType(backendType string) bool {
	// Empty string defaults to auto
	if backendType == "" {
		return true
	}
	for _, supportedType := range f.GetSupportedBackends() {
		if backendType == supportedType {
			return true
		}
	}
	return false
}

// createAutoBackend prefers a real device and falls back to null
func (f *DefaultBackendFactory) createAutoBackend() Backend {
	if f.deviceAvailable() {
		slog.Debug("auto-detection selected malgo backend")
		return NewMalgoBackend()
	}
	slog.Warn("no audio device support in this build, using null backend")
	return NewNullBackend()
}
