package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// VoiceState is the lifecycle of a playing voice
type VoiceState int

const (
	VoicePlaying VoiceState = iota
	VoiceStopped
	VoiceCompleted
)

func (s VoiceState) String() string {
	switch s {
	case VoicePlaying:
		return "playing"
	case VoiceStopped:
		return "stopped"
	case VoiceCompleted:
		return "completed"
	default:
		return fmt.Sprintf("VoiceState(%d)", int(s))
	}
}

// resampleQuality is the beep resampler quality for pitch and rate conversion
const resampleQuality = 4

// VoiceConfig carries the identity and parameters of a new voice
type VoiceConfig struct {
	ID        uint64
	StartedAt uint64
	Name      string
	Gain      float64 // volume/100
	Rate      float64 // pitch/100
	Pan       float64 // -1..1

	// OnComplete runs once, on the audio thread, when playback reaches the
	// end of the clip. It must not block.
	OnComplete func(*Voice)
}

// Voice is one active playback instance. It is a beep.Streamer and is
// mixed by an Output group until it stops or completes.
type Voice struct {
	id        uint64
	startedAt uint64
	name      string
	path      string
	gain      float64
	rate      float64
	pan       float64
	rateOut   beep.SampleRate

	mu         sync.Mutex
	state      VoiceState
	chain      beep.Streamer
	ramp       *fadeRamp
	onComplete func(*Voice)
}

// NewVoice builds the streamer chain for clip: resample for pitch and
// output rate, then pan. Gain and fades are applied by the voice itself.
// A non-positive or non-finite rate plays silence until stopped.
func NewVoice(clip *Clip, out beep.Format, cfg VoiceConfig) *Voice {
	v := &Voice{
		id:         cfg.ID,
		startedAt:  cfg.StartedAt,
		name:       cfg.Name,
		path:       clip.Path,
		gain:       cfg.Gain,
		rate:       cfg.Rate,
		pan:        cfg.Pan,
		rateOut:    out.SampleRate,
		onComplete: cfg.OnComplete,
	}

	var s beep.Streamer
	if cfg.Rate <= 0 || math.IsNaN(cfg.Rate) || math.IsInf(cfg.Rate, 0) {
		s = beep.Silence(-1)
	} else {
		s = clip.Streamer()
		ratio := cfg.Rate * float64(clip.SampleRate()) / float64(out.SampleRate)
		if ratio != 1 {
			s = beep.ResampleRatio(resampleQuality, ratio, s)
		}
	}
	if cfg.Pan != 0 {
		s = &effects.Pan{Streamer: s, Pan: cfg.Pan}
	}
	v.chain = s

	return v
}

// ID returns the unique voice id
func (v *Voice) ID() uint64 { return v.id }

// StartedAt returns the start sequence used for eviction order
func (v *Voice) StartedAt() uint64 { return v.startedAt }

// Name returns the logical sound name
func (v *Voice) Name() string { return v.name }

// Path returns the file the voice was decoded from
func (v *Voice) Path() string { return v.path }

// Gain returns volume/100
func (v *Voice) Gain() float64 { return v.gain }

// PlaybackRate returns pitch/100
func (v *Voice) PlaybackRate() float64 { return v.rate }

// Pan returns the stereo position in -1..1
func (v *Voice) Pan() float64 { return v.pan }

// State returns the lifecycle state
func (v *Voice) State() VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Fading reports whether a fade-out ramp is in progress
func (v *Voice) Fading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ramp != nil
}

// Stop ends playback immediately and releases the clip. It reports
// whether the call changed the state; stopping a finished voice is a no-op.
func (v *Voice) Stop() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.finishLocked(VoiceStopped)
}

// FadeOut ramps the gain linearly from its present level to zero over d,
// then stops. A new fade replaces any ramp already scheduled on this
// voice. d <= 0 stops immediately.
func (v *Voice) FadeOut(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != VoicePlaying {
		return
	}
	total := 0
	if d > 0 {
		total = v.rateOut.N(d)
	}
	if total <= 0 {
		v.finishLocked(VoiceStopped)
		return
	}
	v.ramp = &fadeRamp{from: v.levelLocked(), total: total}
}

// Stream implements beep.Streamer
func (v *Voice) Stream(samples [][2]float64) (int, bool) {
	v.mu.Lock()
	if v.state != VoicePlaying {
		v.mu.Unlock()
		return 0, false
	}

	n, ok := v.chain.Stream(samples)
	for i := 0; i < n; i++ {
		g := v.gain
		if v.ramp != nil {
			if v.ramp.done() {
				n = i
				v.finishLocked(VoiceStopped)
				break
			}
			g = v.ramp.next()
		}
		samples[i][0] *= g
		samples[i][1] *= g
	}
	if v.state == VoicePlaying && v.ramp != nil && v.ramp.done() {
		v.finishLocked(VoiceStopped)
	}

	var completed func(*Voice)
	if v.state == VoicePlaying && !ok {
		v.finishLocked(VoiceCompleted)
		completed = v.onComplete
	}
	v.mu.Unlock()

	if completed != nil {
		completed(v)
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}

// Err implements beep.Streamer
func (v *Voice) Err() error {
	return nil
}

func (v *Voice) levelLocked() float64 {
	if v.ramp != nil {
		return v.ramp.level()
	}
	return v.gain
}

func (v *Voice) finishLocked(state VoiceState) bool {
	if v.state != VoicePlaying {
		return false
	}
	v.state = state
	v.chain = nil
	v.ramp = nil
	return true
}

// fadeRamp is a linear ramp from a starting gain to zero
type fadeRamp struct {
	from  float64
	total int
	pos   int
}

func (r *fadeRamp) level() float64 {
	return r.from * (1 - float64(r.pos)/float64(r.total))
}

func (r *fadeRamp) next() float64 {
	r.pos++
	return r.level()
}

func (r *fadeRamp) done() bool {
	return r.pos >= r.total
}
