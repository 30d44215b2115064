package engine

import (
	"context"
	"time"

	"github.com/gopxl/beep"

	"voicebus.click/internal/audio"
)

// Loader resolves a request to a decoded clip. audio.Pipeline is the
// production implementation.
type Loader interface {
	Load(ctx context.Context, req *audio.Request) (*audio.Clip, error)
}

// core is the state shared by the bus and the channel. Every field except
// loader, format and ctx is owned by the loop.
type core struct {
	loop       *Loop
	loader     Loader
	format     beep.Format
	extensions []string
	ctx        context.Context

	nextID    uint64
	observers []Observer
}

// load runs req on its own goroutine and resumes done on the loop
func (c *core) load(req *audio.Request, done func(clip *audio.Clip, loadTime time.Duration, err error)) {
	start := time.Now()
	go func() {
		clip, err := c.loader.Load(c.ctx, req)
		elapsed := time.Since(start)
		c.loop.Post(func() {
			done(clip, elapsed, err)
		})
	}()
}

// newVoice assigns the next id, which is also the start sequence
func (c *core) newVoice(req *audio.Request, clip *audio.Clip, onComplete func(*audio.Voice)) *audio.Voice {
	c.nextID++
	return audio.NewVoice(clip, c.format, audio.VoiceConfig{
		ID:         c.nextID,
		StartedAt:  c.nextID,
		Name:       req.Name,
		Gain:       req.Gain(),
		Rate:       req.Rate(),
		Pan:        req.Pan / 100,
		OnComplete: onComplete,
	})
}

// completion returns an audio-thread callback that hands the voice back
// to the loop
func (c *core) completion(fn func(*audio.Voice)) func(*audio.Voice) {
	return func(v *audio.Voice) {
		c.loop.Post(func() {
			fn(v)
		})
	}
}

// retire stops a voice being removed from its slot and reports how it
// ended. A voice that finished on the audio thread before the loop saw its
// completion is reported as completed; its posted completion then finds
// nothing to remove.
func (c *core) retire(slot Slot, v *audio.Voice) {
	if v.Stop() {
		c.emit(voiceEvent(EventStopped, slot, v))
		return
	}
	if v.State() == audio.VoiceCompleted {
		c.emit(voiceEvent(EventCompleted, slot, v))
	}
}

func (c *core) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, obs := range c.observers {
		obs(e)
	}
}

func voiceEvent(kind EventKind, slot Slot, v *audio.Voice) Event {
	return Event{
		Kind:    kind,
		Slot:    slot,
		VoiceID: v.ID(),
		Name:    v.Name(),
		Path:    v.Path(),
		Gain:    v.Gain(),
		Rate:    v.PlaybackRate(),
	}
}

func failedEvent(slot Slot, req *audio.Request, loadTime time.Duration, err error) Event {
	return Event{
		Kind:     EventFailed,
		Slot:     slot,
		Name:     req.Name,
		Gain:     req.Gain(),
		Rate:     req.Rate(),
		LoadTime: loadTime,
		Err:      err,
	}
}
