package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// generateTestWAV builds a 16-bit PCM WAV with a constant sample value
func generateTestWAV(channels, sampleRate, frames int, value int16) []byte {
	dataSize := frames * channels * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < frames*channels; i++ {
		binary.Write(&buf, binary.LittleEndian, value)
	}
	return buf.Bytes()
}

// MockDecoder for testing
type MockDecoder struct {
	formatName string
	extensions []string
	shouldFail bool
	returnData *AudioData
}

func (m *MockDecoder) Decode(reader io.Reader) (*AudioData, error) {
	if m.shouldFail {
		return nil, ErrUnsupportedFormat
	}
	if m.returnData != nil {
		return m.returnData, nil
	}
	return &AudioData{
		Samples:    []byte{0x00, 0x01, 0x02, 0x03},
		Channels:   2,
		SampleRate: 44100,
		Precision:  2,
	}, nil
}

func (m *MockDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range m.extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (m *MockDecoder) FormatName() string {
	return m.formatName
}

// mapFetcher serves candidates from memory and records the order of calls
type mapFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	calls []string
}

func (f *mapFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	data, ok := f.files[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}

// countingHandler counts records at or above a level
type countingHandler struct {
	mu      sync.Mutex
	level   slog.Level
	records []slog.Record
}

func (h *countingHandler) Enabled(_ context.Context, l slog.Level) bool {
	return true
}

func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Level >= h.level {
		h.records = append(h.records, r)
	}
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// captureErrors routes the default logger to a counter for the test
func captureErrors(t *testing.T) *countingHandler {
	t.Helper()
	h := &countingHandler{level: slog.LevelError}
	prev := slog.Default()
	slog.SetDefault(slog.New(h))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return h
}
