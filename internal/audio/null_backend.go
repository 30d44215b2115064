package audio

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// nullTick is how often the null backend drains the output
const nullTick = 10 * time.Millisecond

// NullBackend consumes output in real time and discards it. Voices
// progress and complete exactly as they would on a device.
type NullBackend struct {
	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewNullBackend creates a silent backend
func NewNullBackend() *NullBackend {
	return &NullBackend{done: make(chan struct{})}
}

// Name identifies the backend type
func (b *NullBackend) Name() string {
	return "null"
}

// Start begins draining src on a ticker
func (b *NullBackend) Start(src io.Reader, sampleRate int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	if b.started {
		return nil
	}
	b.started = true

	frames := sampleRate * int(nullTick) / int(time.Second)
	buf := make([]byte, frames*4)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(nullTick)
		defer ticker.Stop()
		for {
			select {
			case <-b.done:
				return
			case <-ticker.C:
				if _, err := src.Read(buf); err != nil {
					slog.Warn("null backend read failed", "error", err)
				}
			}
		}
	}()

	slog.Debug("null backend started", "sample_rate", sampleRate, "frames_per_tick", frames)
	return nil
}

// Close stops draining
func (b *NullBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	slog.Debug("null backend closed")
	return nil
}
