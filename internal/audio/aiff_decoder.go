package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

// AiffDecoder handles AIFF audio format decoding
type AiffDecoder struct{}

// NewAiffDecoder creates a new AIFF decoder instance
func NewAiffDecoder() *AiffDecoder {
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// CanDecode checks if this decoder can handle the given filename
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")
}

// Decode reads AIFF audio data from reader and returns decoded PCM data
func (d *AiffDecoder) Decode(reader io.Reader) (*AudioData, error) {
	// go-audio/aiff needs a ReadSeeker
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	decoder := aiff.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		slog.Debug("invalid AIFF file format")
		return nil, ErrInvalidData
	}

	sampleRate := uint32(decoder.SampleRate)
	channels := uint32(decoder.NumChans)
	bitDepth := int(decoder.SampleBitDepth())

	if channels == 0 || sampleRate == 0 {
		slog.Debug("invalid AIFF format parameters",
			"channels", channels,
			"sample_rate", sampleRate,
			"bit_depth", bitDepth)
		return nil, ErrInvalidData
	}

	precision, err := precisionForBits(bitDepth)
	if err != nil {
		slog.Debug("unsupported AIFF bit depth", "bits", bitDepth)
		return nil, err
	}

	pcmBuffer, err := decoder.FullPCMBuffer()
	if err != nil {
		slog.Debug("failed to read AIFF samples", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if pcmBuffer == nil || len(pcmBuffer.Data) == 0 {
		return nil, ErrInvalidData
	}

	audioData := &AudioData{
		Samples:    intBufferToBytes(pcmBuffer, precision),
		Channels:   channels,
		SampleRate: sampleRate,
		Precision:  precision,
	}

	slog.Debug("AIFF decode completed",
		"samples", len(pcmBuffer.Data),
		"channels", audioData.Channels,
		"sample_rate", audioData.SampleRate,
		"bit_depth", bitDepth,
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// intBufferToBytes packs go-audio integer samples as little-endian PCM
func intBufferToBytes(buf *audio.IntBuffer, precision int) []byte {
	out := make([]byte, 0, len(buf.Data)*precision)
	for _, sample := range buf.Data {
		for b := 0; b < precision; b++ {
			out = append(out, byte(sample>>(8*b)))
		}
	}
	return out
}
