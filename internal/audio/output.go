package audio

import (
	"log/slog"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// DefaultSampleRate is the output mixing rate
const DefaultSampleRate = 44100

// Output is the single shared mixing destination. Every voice is added to
// one of its groups; sinks pull mixed PCM from it. All mixer access is
// serialised by one mutex.
type Output struct {
	mu      sync.Mutex
	format  beep.Format
	groups  []*Group
	scratch [][2]float64
}

// NewOutput creates a stereo 16-bit output at sampleRate
func NewOutput(sampleRate int) *Output {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Output{
		format: beep.Format{
			SampleRate:  beep.SampleRate(sampleRate),
			NumChannels: 2,
			Precision:   2,
		},
	}
}

// Format returns the output format
func (o *Output) Format() beep.Format {
	return o.format
}

// Group is a mixer with its own gain stage feeding the output
type Group struct {
	out   *Output
	name  string
	mixer *beep.Mixer
	gain  *effects.Gain
}

// NewGroup adds a gain group to the output. gain is linear, 1 = unity.
func (o *Output) NewGroup(name string, gain float64) *Group {
	mixer := &beep.Mixer{}
	g := &Group{
		out:   o,
		name:  name,
		mixer: mixer,
		gain:  &effects.Gain{Streamer: mixer, Gain: gain - 1},
	}

	o.mu.Lock()
	o.groups = append(o.groups, g)
	o.mu.Unlock()

	slog.Debug("output group created", "group", name, "gain", gain)
	return g
}

// Name returns the group name
func (g *Group) Name() string {
	return g.name
}

// Add starts mixing s into this group
func (g *Group) Add(s beep.Streamer) {
	g.out.mu.Lock()
	g.mixer.Add(s)
	g.out.mu.Unlock()
}

// Len returns the number of streamers still mixed by the group
func (g *Group) Len() int {
	g.out.mu.Lock()
	defer g.out.mu.Unlock()
	return g.mixer.Len()
}

// Gain returns the linear group gain
func (g *Group) Gain() float64 {
	g.out.mu.Lock()
	defer g.out.mu.Unlock()
	return g.gain.Gain + 1
}

// SetGain changes the linear group gain
func (g *Group) SetGain(gain float64) {
	g.out.mu.Lock()
	g.gain.Gain = gain - 1
	g.out.mu.Unlock()
}

// Stream mixes every group into samples. It always fills the slice,
// with silence when nothing is playing.
func (o *Output) Stream(samples [][2]float64) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range samples {
		samples[i] = [2]float64{}
	}
	if cap(o.scratch) < len(samples) {
		o.scratch = make([][2]float64, len(samples))
	}
	tmp := o.scratch[:len(samples)]

	for _, g := range o.groups {
		n, _ := g.gain.Stream(tmp)
		for i := 0; i < n; i++ {
			samples[i][0] += tmp[i][0]
			samples[i][1] += tmp[i][1]
		}
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (o *Output) Err() error {
	return nil
}

// Read fills p with signed 16-bit little-endian stereo frames
func (o *Output) Read(p []byte) (int, error) {
	width := o.format.Width()
	frames := len(p) / width
	if frames == 0 {
		return 0, nil
	}

	samples := make([][2]float64, frames)
	o.Stream(samples)
	for i, s := range samples {
		o.format.EncodeSigned(p[i*width:], clampSample(s))
	}
	return frames * width, nil
}

func clampSample(s [2]float64) [2]float64 {
	for c := range s {
		if s[c] > 1 {
			s[c] = 1
		} else if s[c] < -1 {
			s[c] = -1
		}
	}
	return s
}
