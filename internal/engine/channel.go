package engine

import (
	"log/slog"
	"time"

	"voicebus.click/internal/audio"
)

// DefaultFramesPerSecond is the tick rate fade frames are counted in
const DefaultFramesPerSecond = 60

// SingleVoiceChannel plays at most one voice line. A new play hard-cuts
// the current line; a skip or stop fades it out. Loads that resolve after
// a newer play are stopped on arrival and never become current.
// All methods must run on the loop.
type SingleVoiceChannel struct {
	core  *core
	group *audio.Group
	fade  time.Duration

	current    *audio.Voice
	fading     []*audio.Voice
	generation uint64
	pending    int
	closed     bool

	// onSkip plays the advance sound; skipArmed allows it once per Play
	onSkip    func()
	skipArmed bool
}

// FadeDuration converts a frame count at a tick rate to wall time
func FadeDuration(fadeFrames int, framesPerSecond float64) time.Duration {
	if fadeFrames <= 0 {
		return 0
	}
	if framesPerSecond <= 0 {
		framesPerSecond = DefaultFramesPerSecond
	}
	return time.Duration(float64(fadeFrames) / framesPerSecond * float64(time.Second))
}

func newSingleVoiceChannel(c *core, group *audio.Group, fade time.Duration) *SingleVoiceChannel {
	return &SingleVoiceChannel{
		core:  c,
		group: group,
		fade:  fade,
	}
}

// Current returns the live voice, or nil
func (ch *SingleVoiceChannel) Current() *audio.Voice {
	return ch.current
}

// Pending returns the number of loads still in flight
func (ch *SingleVoiceChannel) Pending() int {
	return ch.pending
}

// Fade returns the fade-out duration used by NotifySkip and Stop
func (ch *SingleVoiceChannel) Fade() time.Duration {
	return ch.fade
}

// Play hard-stops the current line before the new one is even resolved,
// then loads name. Only the most recent play may install its voice.
func (ch *SingleVoiceChannel) Play(name string, volume, pitch, pan float64) *audio.Request {
	req := audio.NewRequest(name, ch.core.extensions, volume, pitch, pan)
	if ch.closed {
		slog.Debug("channel closed, ignoring play", "name", name)
		return req
	}

	ch.skipArmed = true
	if ch.current != nil {
		prev := ch.current
		ch.current = nil
		ch.core.retire(SlotChannel, prev)
	}

	ch.generation++
	gen := ch.generation
	ch.pending++

	slog.Debug("channel play requested",
		"name", name,
		"volume", volume,
		"pitch", pitch,
		"pan", pan,
		"generation", gen)

	ch.core.load(req, func(clip *audio.Clip, loadTime time.Duration, err error) {
		ch.pending--
		if err != nil {
			ch.core.emit(failedEvent(SlotChannel, req, loadTime, err))
			return
		}
		ch.resolve(gen, req, clip, loadTime)
	})
	return req
}

func (ch *SingleVoiceChannel) resolve(gen uint64, req *audio.Request, clip *audio.Clip, loadTime time.Duration) {
	v := ch.core.newVoice(req, clip, ch.core.completion(ch.completed))

	if ch.closed || gen != ch.generation {
		v.Stop()
		superseded := voiceEvent(EventSuperseded, SlotChannel, v)
		superseded.LoadTime = loadTime
		ch.core.emit(superseded)

		slog.Debug("discarding superseded voice line",
			"voice_id", v.ID(),
			"name", v.Name(),
			"generation", gen,
			"current_generation", ch.generation)
		return
	}

	ch.current = v
	ch.group.Add(v)

	started := voiceEvent(EventStarted, SlotChannel, v)
	started.LoadTime = loadTime
	ch.core.emit(started)

	slog.Debug("channel voice started",
		"voice_id", v.ID(),
		"name", v.Name(),
		"path", v.Path(),
		"gain", v.Gain(),
		"rate", v.PlaybackRate(),
		"pan", v.Pan())
}

// NotifySkip plays the advance sound once per line, then fades the
// current line out and clears it. The fade is a no-op when idle.
func (ch *SingleVoiceChannel) NotifySkip() {
	ch.playSkipSE()
	if ch.current == nil {
		return
	}
	v := ch.current
	ch.current = nil

	v.FadeOut(ch.fade)
	if v.State() == audio.VoicePlaying {
		ch.fading = append(ch.fading, v)
	}
	ch.core.emit(voiceEvent(EventFaded, SlotChannel, v))

	slog.Debug("channel voice fading out",
		"voice_id", v.ID(),
		"name", v.Name(),
		"fade_ms", ch.fade.Milliseconds())
}

func (ch *SingleVoiceChannel) playSkipSE() {
	if !ch.skipArmed || ch.onSkip == nil || ch.closed {
		return
	}
	ch.skipArmed = false
	ch.onSkip()
}

// Stop behaves like NotifySkip and also invalidates any load still in
// flight, so nothing outlives the owning context.
func (ch *SingleVoiceChannel) Stop() {
	ch.generation++
	ch.NotifySkip()
}

// completed clears current when its voice ends naturally
func (ch *SingleVoiceChannel) completed(v *audio.Voice) {
	if ch.current != nil && ch.current.ID() == v.ID() {
		ch.current = nil
		ch.core.emit(voiceEvent(EventCompleted, SlotChannel, v))
		slog.Debug("channel voice completed", "voice_id", v.ID(), "name", v.Name())
	}
	ch.pruneFading()
}

// audible reports whether a fading voice is still ramping down
func (ch *SingleVoiceChannel) audible() bool {
	ch.pruneFading()
	return len(ch.fading) > 0
}

func (ch *SingleVoiceChannel) pruneFading() {
	kept := ch.fading[:0]
	for _, v := range ch.fading {
		if v.State() == audio.VoicePlaying {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(ch.fading); i++ {
		ch.fading[i] = nil
	}
	ch.fading = kept
}

func (ch *SingleVoiceChannel) close() {
	ch.generation++
	if ch.current != nil {
		ch.core.retire(SlotChannel, ch.current)
		ch.current = nil
	}
	for _, v := range ch.fading {
		v.Stop()
	}
	ch.fading = nil
	ch.closed = true
}
