package audio

import (
	"errors"
	"io"
	"time"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid audio data")
	ErrReadFailure       = errors.New("failed to read audio data")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// AudioData represents decoded interleaved little-endian signed PCM
type AudioData struct {
	Samples    []byte // Raw PCM data
	Channels   uint32 // Number of audio channels
	SampleRate uint32 // Sample rate in Hz
	Precision  int    // Bytes per sample (2, 3 or 4)
}

// FrameWidth returns the number of bytes in one interleaved frame
func (d *AudioData) FrameWidth() int {
	return int(d.Channels) * d.Precision
}

// Frames returns the number of complete frames in Samples
func (d *AudioData) Frames() int {
	width := d.FrameWidth()
	if width <= 0 {
		return 0
	}
	return len(d.Samples) / width
}

// Duration returns the playback length at the native sample rate
func (d *AudioData) Duration() time.Duration {
	if d.SampleRate == 0 {
		return 0
	}
	return time.Duration(d.Frames()) * time.Second / time.Duration(d.SampleRate)
}

// Decoder interface for audio format decoding
type Decoder interface {
	// Decode reads audio data from reader and returns decoded PCM data
	Decode(reader io.Reader) (*AudioData, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}

// FileDecoder turns fetched bytes for a named file into PCM.
// DecoderRegistry is the production implementation.
type FileDecoder interface {
	DecodeFile(filename string, reader io.Reader) (*AudioData, error)
}

// precisionForBits maps a bit depth to bytes per sample
func precisionForBits(bits int) (int, error) {
	switch bits {
	case 16:
		return 2, nil
	case 24:
		return 3, nil
	case 32:
		return 4, nil
	default:
		return 0, ErrUnsupportedFormat
	}
}
