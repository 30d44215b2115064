package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
)

// Clip is a decoded, ready-to-play buffer. Ownership moves into exactly
// one Voice.
type Clip struct {
	Path   string
	Bytes  int // size of the fetched file
	buffer *beep.Buffer
}

// NewClip converts decoded PCM into a stereo beep buffer
func NewClip(path string, data *AudioData) (*Clip, error) {
	if data == nil || data.Channels == 0 || data.SampleRate == 0 {
		return nil, ErrInvalidData
	}
	if data.Precision < 1 || data.Precision > 4 {
		return nil, fmt.Errorf("%w: precision %d", ErrUnsupportedFormat, data.Precision)
	}
	if data.Frames() == 0 {
		return nil, ErrInvalidData
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(data.SampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	buffer := beep.NewBuffer(format)
	buffer.Append(&pcmStreamer{data: data})

	return &Clip{Path: path, buffer: buffer}, nil
}

// Format returns the buffer format
func (c *Clip) Format() beep.Format {
	return c.buffer.Format()
}

// SampleRate returns the native sample rate of the clip
func (c *Clip) SampleRate() beep.SampleRate {
	return c.buffer.Format().SampleRate
}

// Len returns the clip length in frames
func (c *Clip) Len() int {
	return c.buffer.Len()
}

// Duration returns the clip length at its native rate
func (c *Clip) Duration() time.Duration {
	return c.SampleRate().D(c.buffer.Len())
}

// Streamer returns a fresh streamer over the whole clip
func (c *Clip) Streamer() beep.StreamSeeker {
	return c.buffer.Streamer(0, c.buffer.Len())
}

// pcmStreamer reads interleaved signed little-endian PCM as beep samples.
// Mono is duplicated to both channels; channels beyond two are dropped.
type pcmStreamer struct {
	data *AudioData
	pos  int // byte offset
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	width := s.data.FrameWidth()
	prec := s.data.Precision
	for n < len(samples) && s.pos+width <= len(s.data.Samples) {
		frame := s.data.Samples[s.pos : s.pos+width]
		left := decodeSigned(frame[:prec])
		right := left
		if s.data.Channels > 1 {
			right = decodeSigned(frame[prec : 2*prec])
		}
		samples[n] = [2]float64{left, right}
		s.pos += width
		n++
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}

func (s *pcmStreamer) Err() error {
	return nil
}

// decodeSigned converts a little-endian two's complement sample to [-1, 1)
func decodeSigned(p []byte) float64 {
	var v int64
	for i := len(p) - 1; i >= 0; i-- {
		v = v<<8 | int64(p[i])
	}
	bits := uint(8 * len(p))
	if v&(1<<(bits-1)) != 0 {
		v -= 1 << bits
	}
	return float64(v) / float64(int64(1)<<(bits-1))
}
