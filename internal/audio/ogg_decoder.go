package audio

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder handles Ogg Vorbis decoding, the primary format for sound effects
type OggDecoder struct{}

// NewOggDecoder creates a new Ogg Vorbis decoder instance
func NewOggDecoder() *OggDecoder {
	return &OggDecoder{}
}

// Decode reads an Ogg Vorbis stream and returns 16-bit PCM
func (d *OggDecoder) Decode(reader io.Reader) (*AudioData, error) {
	samples, format, err := oggvorbis.ReadAll(reader)
	if err != nil {
		slog.Debug("failed to decode Ogg Vorbis stream", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, ErrInvalidData
	}
	if len(samples) == 0 {
		return nil, ErrInvalidData
	}

	raw := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		v := int16(math.Round(float64(clampUnit(s)) * math.MaxInt16))
		raw = append(raw, byte(v), byte(v>>8))
	}

	audioData := &AudioData{
		Samples:    raw,
		Channels:   uint32(format.Channels),
		SampleRate: uint32(format.SampleRate),
		Precision:  2,
	}

	slog.Debug("Ogg Vorbis decode completed",
		"channels", audioData.Channels,
		"sample_rate", audioData.SampleRate,
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *OggDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".oga")
}

// FormatName returns the name of the format this decoder handles
func (d *OggDecoder) FormatName() string {
	return "OGG"
}

func clampUnit(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
