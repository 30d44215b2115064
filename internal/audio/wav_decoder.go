package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/youpy/go-wav"
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	return &WavDecoder{}
}

// Decode reads WAV audio data from reader and returns decoded PCM data
func (d *WavDecoder) Decode(reader io.Reader) (*AudioData, error) {
	// youpy/go-wav needs a ReadSeeker
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	wavReader := wav.NewReader(bytes.NewReader(data))

	format, err := wavReader.Format()
	if err != nil {
		slog.Debug("failed to read WAV format", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Debug("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, ErrInvalidData
	}

	precision, err := precisionForBits(int(format.BitsPerSample))
	if err != nil {
		slog.Debug("unsupported WAV bit depth", "bits", format.BitsPerSample)
		return nil, err
	}

	channels := int(format.NumChannels)
	var rawBytes []byte
	frames := 0

	for {
		samples, err := wavReader.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Debug("failed to read WAV samples", "error", err, "frames_read", frames)
			return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
		}
		if len(samples) == 0 {
			break
		}

		for _, sample := range samples {
			for ch := 0; ch < channels; ch++ {
				val := 0
				if ch < len(sample.Values) {
					val = sample.Values[ch]
				}
				for b := 0; b < precision; b++ {
					rawBytes = append(rawBytes, byte(val>>(8*b)))
				}
			}
		}
		frames += len(samples)
	}

	if frames == 0 {
		return nil, ErrInvalidData
	}

	audioData := &AudioData{
		Samples:    rawBytes,
		Channels:   uint32(format.NumChannels),
		SampleRate: format.SampleRate,
		Precision:  precision,
	}

	slog.Debug("WAV decode completed",
		"frames", frames,
		"channels", audioData.Channels,
		"sample_rate", audioData.SampleRate,
		"bits_per_sample", format.BitsPerSample,
		"duration_ms", audioData.Duration().Milliseconds())

	return audioData, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}
