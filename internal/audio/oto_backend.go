//go:build cgo

package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBufferSize is the device buffer requested from oto
const otoBufferSize = 50 * time.Millisecond

// OtoBackend plays the output through an oto player. oto allows a single
// context per process.
type OtoBackend struct {
	mu     sync.Mutex
	player *oto.Player
	closed bool
}

// NewOtoBackend creates an unstarted oto backend
func NewOtoBackend() *OtoBackend {
	return &OtoBackend{}
}

// Name identifies the backend type
func (ob *OtoBackend) Name() string {
	return "oto"
}

// Start creates the oto context and a player reading from src
func (ob *OtoBackend) Start(src io.Reader, sampleRate int) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.closed {
		return ErrBackendClosed
	}
	if ob.player != nil {
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   otoBufferSize,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create oto context: %v", ErrBackendNotAvailable, err)
	}
	<-ready

	player := ctx.NewPlayer(src)
	player.Play()
	ob.player = player

	slog.Info("oto playback started", "sample_rate", sampleRate)
	return nil
}

// Close stops the player
func (ob *OtoBackend) Close() error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.closed {
		return nil
	}
	ob.closed = true

	if ob.player != nil {
		ob.player.Pause()
		if err := ob.player.Close(); err != nil {
			return fmt.Errorf("error closing oto player: %w", err)
		}
		ob.player = nil
	}

	slog.Debug("oto backend closed")
	return nil
}
