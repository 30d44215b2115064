package engine

import (
	"log/slog"
	"time"

	"voicebus.click/internal/audio"
)

// DefaultCapacity is the number of concurrent bus voices
const DefaultCapacity = 4

// VoiceBus is a bounded pool of concurrently playing sound effects.
// When a resolved voice would exceed capacity the oldest is stopped.
// All methods must run on the loop.
type VoiceBus struct {
	core     *core
	group    *audio.Group
	capacity int

	active  []*audio.Voice // oldest first
	pending int
	closed  bool
}

func newVoiceBus(c *core, group *audio.Group, capacity int) *VoiceBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &VoiceBus{
		core:     c,
		group:    group,
		capacity: capacity,
	}
}

// Capacity returns the configured pool size
func (b *VoiceBus) Capacity() int {
	return b.capacity
}

// Len returns the number of active voices
func (b *VoiceBus) Len() int {
	return len(b.active)
}

// Pending returns the number of loads still in flight
func (b *VoiceBus) Pending() int {
	return b.pending
}

// Active returns the active voices, oldest first
func (b *VoiceBus) Active() []*audio.Voice {
	out := make([]*audio.Voice, len(b.active))
	copy(out, b.active)
	return out
}

// Play starts loading name. The voice joins the pool when the load
// resolves; a failed load leaves no trace in the bus.
func (b *VoiceBus) Play(name string, volume, pitch float64) *audio.Request {
	return b.play(name, volume, pitch, 0)
}

func (b *VoiceBus) play(name string, volume, pitch, pan float64) *audio.Request {
	req := audio.NewRequest(name, b.core.extensions, volume, pitch, pan)
	if b.closed {
		slog.Debug("bus closed, ignoring play", "name", name)
		return req
	}

	b.pending++
	slog.Debug("bus play requested",
		"name", name,
		"volume", volume,
		"pitch", pitch,
		"active", len(b.active),
		"pending", b.pending)

	b.core.load(req, func(clip *audio.Clip, loadTime time.Duration, err error) {
		b.pending--
		if b.closed {
			return
		}
		if err != nil {
			b.core.emit(failedEvent(SlotBus, req, loadTime, err))
			return
		}
		b.install(req, clip, loadTime)
	})
	return req
}

// install appends at the tail and evicts the head when over capacity.
// Capacity is exceeded by at most one, so at most one voice is evicted.
func (b *VoiceBus) install(req *audio.Request, clip *audio.Clip, loadTime time.Duration) {
	v := b.core.newVoice(req, clip, b.core.completion(b.completed))
	b.active = append(b.active, v)
	b.group.Add(v)

	started := voiceEvent(EventStarted, SlotBus, v)
	started.LoadTime = loadTime
	b.core.emit(started)

	slog.Debug("bus voice started",
		"voice_id", v.ID(),
		"name", v.Name(),
		"path", v.Path(),
		"gain", v.Gain(),
		"rate", v.PlaybackRate(),
		"active", len(b.active))

	if len(b.active) > b.capacity {
		oldest := b.active[0]
		b.active[0] = nil
		b.active = b.active[1:]
		oldest.Stop()
		b.core.emit(voiceEvent(EventEvicted, SlotBus, oldest))

		slog.Debug("bus voice evicted",
			"voice_id", oldest.ID(),
			"name", oldest.Name(),
			"capacity", b.capacity)
	}
}

// completed removes a naturally finished voice by id. A voice that was
// already evicted or stopped is ignored.
func (b *VoiceBus) completed(v *audio.Voice) {
	for i, active := range b.active {
		if active.ID() != v.ID() {
			continue
		}
		b.active = append(b.active[:i], b.active[i+1:]...)
		b.core.emit(voiceEvent(EventCompleted, SlotBus, v))
		slog.Debug("bus voice completed", "voice_id", v.ID(), "name", v.Name(), "active", len(b.active))
		return
	}
	slog.Debug("completion for voice no longer on bus", "voice_id", v.ID())
}

// StopAll stops and removes every active voice
func (b *VoiceBus) StopAll() {
	if len(b.active) == 0 {
		return
	}
	stopped := b.active
	b.active = nil
	for _, v := range stopped {
		b.core.retire(SlotBus, v)
	}
	slog.Debug("bus stopped all voices", "count", len(stopped))
}

// close stops everything and discards loads that resolve later
func (b *VoiceBus) close() {
	b.StopAll()
	b.closed = true
}
