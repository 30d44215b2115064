//go:build cgo

package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoBackend plays the output through a miniaudio playback device
type MalgoBackend struct {
	mu      sync.Mutex
	context *Context
	device  *malgo.Device
	closed  bool
}

// NewMalgoBackend creates an unstarted malgo backend
func NewMalgoBackend() *MalgoBackend {
	return &MalgoBackend{}
}

// Name identifies the backend type
func (mb *MalgoBackend) Name() string {
	return "malgo"
}

// Start opens the default playback device and pulls PCM from src in the
// device callback
func (mb *MalgoBackend) Start(src io.Reader, sampleRate int) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return ErrBackendClosed
	}
	if mb.device != nil {
		return nil
	}

	audioCtx, err := NewContext()
	if err != nil {
		return fmt.Errorf("%w: failed to initialize audio context: %v", ErrBackendNotAvailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		n, err := io.ReadFull(src, pOutputSample)
		if err != nil {
			for i := n; i < len(pOutputSample); i++ {
				pOutputSample[i] = 0
			}
		}
	}

	device, err := malgo.InitDevice(audioCtx.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		audioCtx.Close()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		audioCtx.Close()
		return fmt.Errorf("failed to start playback: %w", err)
	}

	mb.context = audioCtx
	mb.device = device

	slog.Info("malgo playback device started", "sample_rate", sampleRate)
	return nil
}

// Close stops the device and frees the context
func (mb *MalgoBackend) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return nil
	}
	mb.closed = true

	if mb.device != nil {
		if err := mb.device.Stop(); err != nil {
			slog.Warn("failed to stop playback device", "error", err)
		}
		mb.device.Uninit()
		mb.device = nil
	}
	if mb.context != nil {
		if err := mb.context.Close(); err != nil {
			return fmt.Errorf("error closing audio context: %w", err)
		}
		mb.context = nil
	}

	slog.Debug("malgo backend closed")
	return nil
}
