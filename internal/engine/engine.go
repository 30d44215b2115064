// Package engine owns the voice bus and the voice-line channel and the
// loop that serialises every change to them.
package engine

import (
	"context"
	"log/slog"
	"time"

	"voicebus.click/internal/audio"
)

// DefaultVolume is full volume in percent
const DefaultVolume = 100

// Options configures an Engine. Start from DefaultOptions; volumes are
// used as given, so zero mutes.
type Options struct {
	// Capacity is the bus pool size, DefaultCapacity when zero
	Capacity int
	// BusVolume is the shared bus gain in percent
	BusVolume float64
	// SEVolume is the default volume for plays that give none
	SEVolume float64
	// FadeFrames and FramesPerSecond set the channel fade-out; zero frames
	// stops immediately
	FadeFrames      int
	FramesPerSecond float64
	// SkipSE is played on the bus the first time each voice line is
	// skipped or stopped. An empty Name disables it.
	SkipSE SkipSE
	// Extensions overrides the loader's default candidate extensions
	Extensions []string
	Observers  []Observer
}

// SkipSE describes the dialogue-advance sound effect. A nil Volume follows
// SEVolume and a zero Pitch means 100.
type SkipSE struct {
	Name   string
	Volume *float64
	Pitch  float64
	Pan    float64
}

// DefaultOptions returns a four-voice bus at full volume with a twenty
// frame fade at 60 frames per second
func DefaultOptions() Options {
	return Options{
		Capacity:        DefaultCapacity,
		BusVolume:       DefaultVolume,
		SEVolume:        DefaultVolume,
		FadeFrames:      20,
		FramesPerSecond: DefaultFramesPerSecond,
	}
}

// Engine is the caller boundary. It resolves absent parameters to their
// defaults and posts every operation to the loop, so its methods are safe
// from any goroutine. Nothing is returned to callers; outcomes are
// reported to observers.
type Engine struct {
	loop     *Loop
	output   *audio.Output
	bus      *VoiceBus
	channel  *SingleVoiceChannel
	seVolume float64
	cancel   context.CancelFunc
}

// New wires a bus and a channel to out. The bus feeds a shared gain
// group; the channel feeds the output directly.
func New(loader Loader, out *audio.Output, opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	seVolume := opts.SEVolume
	busVolume := opts.BusVolume

	c := &core{
		loop:       NewLoop(),
		loader:     loader,
		format:     out.Format(),
		extensions: opts.Extensions,
		ctx:        ctx,
		observers:  append([]Observer(nil), opts.Observers...),
	}

	e := &Engine{
		loop:     c.loop,
		output:   out,
		bus:      newVoiceBus(c, out.NewGroup("bus", busVolume/100), opts.Capacity),
		channel:  newSingleVoiceChannel(c, out.NewGroup("channel", 1), FadeDuration(opts.FadeFrames, opts.FramesPerSecond)),
		seVolume: seVolume,
		cancel:   cancel,
	}

	if se := opts.SkipSE; se.Name != "" {
		volume, pitch := seVolume, se.Pitch
		if se.Volume != nil {
			volume = *se.Volume
		}
		if pitch == 0 {
			pitch = 100
		}
		e.channel.onSkip = func() {
			e.bus.play(se.Name, volume, pitch, se.Pan)
		}
	}

	slog.Info("voice engine created",
		"capacity", e.bus.Capacity(),
		"bus_volume", busVolume,
		"se_volume", seVolume,
		"fade_ms", e.channel.Fade().Milliseconds(),
		"skip_se", opts.SkipSE.Name,
		"sample_rate", int(out.Format().SampleRate))

	return e
}

// Loop returns the owner loop
func (e *Engine) Loop() *Loop {
	return e.loop
}

// Output returns the shared mixing destination
func (e *Engine) Output() *audio.Output {
	return e.output
}

// Bus returns the voice bus. Only use it on the loop.
func (e *Engine) Bus() *VoiceBus {
	return e.bus
}

// Channel returns the voice-line channel. Only use it on the loop.
func (e *Engine) Channel() *SingleVoiceChannel {
	return e.channel
}

// Run drives the loop until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	return e.loop.Run(ctx)
}

// Drain runs all queued work on the calling goroutine
func (e *Engine) Drain() int {
	return e.loop.Drain()
}

// AddObserver registers obs for future events
func (e *Engine) AddObserver(obs Observer) {
	e.loop.Post(func() {
		e.bus.core.observers = append(e.bus.core.observers, obs)
	})
}

// PlayOption overrides one play parameter
type PlayOption func(*playParams)

type playParams struct {
	volume *float64
	pitch  *float64
	pan    *float64
}

// WithVolume sets the volume in 0-100
func WithVolume(v float64) PlayOption {
	return func(p *playParams) { p.volume = &v }
}

// WithPitch sets the pitch in percent
func WithPitch(v float64) PlayOption {
	return func(p *playParams) { p.pitch = &v }
}

// WithPan sets the pan in -100..100; only the channel uses it
func WithPan(v float64) PlayOption {
	return func(p *playParams) { p.pan = &v }
}

// resolve fills absent parameters: configured SE volume, pitch 100, pan 0
func (e *Engine) resolve(opts []PlayOption) (volume, pitch, pan float64) {
	var p playParams
	for _, opt := range opts {
		opt(&p)
	}
	volume, pitch, pan = e.seVolume, 100, 0
	if p.volume != nil {
		volume = *p.volume
	}
	if p.pitch != nil {
		pitch = *p.pitch
	}
	if p.pan != nil {
		pan = *p.pan
	}
	return volume, pitch, pan
}

// PlaySE plays a sound effect on the bus
func (e *Engine) PlaySE(name string, opts ...PlayOption) {
	volume, pitch, _ := e.resolve(opts)
	e.loop.Post(func() {
		e.bus.Play(name, volume, pitch)
	})
}

// PlayVoice plays a voice line on the channel, cutting the current one
func (e *Engine) PlayVoice(name string, opts ...PlayOption) {
	volume, pitch, pan := e.resolve(opts)
	e.loop.Post(func() {
		e.channel.Play(name, volume, pitch, pan)
	})
}

// StopAll stops every bus voice
func (e *Engine) StopAll() {
	e.loop.Post(e.bus.StopAll)
}

// SkipVoice fades out the current voice line
func (e *Engine) SkipVoice() {
	e.loop.Post(e.channel.NotifySkip)
}

// StopVoice fades out the current voice line and drops pending loads
func (e *Engine) StopVoice() {
	e.loop.Post(e.channel.Stop)
}

// Snapshot is a point-in-time view of engine state
type Snapshot struct {
	BusActive      []uint64
	BusPending     int
	ChannelCurrent uint64
	ChannelPending int
	Fading         int
}

// Idle reports whether nothing is loading or audible
func (s Snapshot) Idle() bool {
	return len(s.BusActive) == 0 && s.BusPending == 0 &&
		s.ChannelCurrent == 0 && s.ChannelPending == 0 && s.Fading == 0
}

func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		BusPending:     e.bus.Pending(),
		ChannelPending: e.channel.Pending(),
	}
	for _, v := range e.bus.active {
		s.BusActive = append(s.BusActive, v.ID())
	}
	if cur := e.channel.Current(); cur != nil {
		s.ChannelCurrent = cur.ID()
	}
	if e.channel.audible() {
		s.Fading = len(e.channel.fading)
	}
	return s
}

// Snapshot reads engine state on the loop. The loop must be running.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := e.loop.Call(ctx, func() {
		s = e.snapshot()
	})
	return s, err
}

// WaitIdle polls until nothing is loading or audible. The loop must be
// running.
func (e *Engine) WaitIdle(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := e.Snapshot(ctx)
		if err != nil {
			return err
		}
		if s.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops every voice, discards loads that resolve later and cancels
// the load context. The loop must be running.
func (e *Engine) Close(ctx context.Context) error {
	err := e.loop.Call(ctx, e.shutdown)
	e.cancel()
	return err
}

func (e *Engine) shutdown() {
	e.bus.close()
	e.channel.close()
	slog.Info("voice engine closed")
}
