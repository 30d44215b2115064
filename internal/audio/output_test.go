package audio

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputMixesGroups(t *testing.T) {
	out := NewOutput(1000)
	bus := out.NewGroup("bus", 0.5)
	direct := out.NewGroup("direct", 1)

	bus.Add(NewVoice(constantClip(t, 100, 1000, 16384), out.Format(), VoiceConfig{Gain: 1, Rate: 1}))
	direct.Add(NewVoice(constantClip(t, 100, 1000, 8192), out.Format(), VoiceConfig{Gain: 1, Rate: 1}))

	buf := make([][2]float64, 10)
	n, ok := out.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 10, n)

	// 0.5 * 0.5 + 0.25
	assert.InDelta(t, 0.5, buf[0][0], 0.002)
	assert.Equal(t, 0.5, bus.Gain())
}

func TestOutputDropsFinishedVoices(t *testing.T) {
	out := NewOutput(1000)
	group := out.NewGroup("bus", 1)

	v := NewVoice(constantClip(t, 100, 1000, 100), out.Format(), VoiceConfig{Gain: 1, Rate: 1})
	group.Add(v)
	assert.Equal(t, 1, group.Len())

	v.Stop()
	out.Stream(make([][2]float64, 10))
	assert.Equal(t, 0, group.Len())
}

func TestOutputSilentWhenEmpty(t *testing.T) {
	out := NewOutput(0)
	assert.Equal(t, DefaultSampleRate, int(out.Format().SampleRate))

	buf := [][2]float64{{1, 1}, {1, 1}}
	n, ok := out.Stream(buf)
	assert.Equal(t, 2, n)
	assert.True(t, ok)
	assert.Equal(t, [2]float64{}, buf[0])
}

func TestOutputReadEncodesS16(t *testing.T) {
	out := NewOutput(1000)
	group := out.NewGroup("direct", 1)
	group.Add(NewVoice(constantClip(t, 100, 1000, 16384), out.Format(), VoiceConfig{Gain: 1, Rate: 1}))

	p := make([]byte, 4*8+3)
	n, err := out.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 32, n, "only whole frames are written")

	left := int16(binary.LittleEndian.Uint16(p[0:2]))
	right := int16(binary.LittleEndian.Uint16(p[2:4]))
	assert.InDelta(t, 16384, int(left), 4)
	assert.InDelta(t, 16384, int(right), 4)
}

func TestOutputReadClamps(t *testing.T) {
	out := NewOutput(1000)
	group := out.NewGroup("direct", 1)
	for i := 0; i < 4; i++ {
		group.Add(NewVoice(constantClip(t, 100, 1000, 16384), out.Format(), VoiceConfig{Gain: 1, Rate: 1}))
	}

	p := make([]byte, 4)
	_, err := out.Read(p)
	require.NoError(t, err)
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(p[0:2])))
}

func TestBackendFactory(t *testing.T) {
	tests := []struct {
		name        string
		backendType string
		device      bool
		want        string
		wantErr     bool
	}{
		{"auto with device", "auto", true, "malgo", false},
		{"auto without device", "auto", false, "null", false},
		{"empty means auto", "", false, "null", false},
		{"explicit malgo", "malgo", false, "malgo", false},
		{"explicit oto", "oto", true, "oto", false},
		{"explicit null", "null", true, "null", false},
		{"unknown", "pulse", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewBackendFactoryWithDependencies(func() bool { return tt.device })
			backend, err := factory.CreateBackend(tt.backendType)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBackendType) {
					t.Fatalf("expected ErrInvalidBackendType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if backend.Name() != tt.want {
				t.Errorf("expected %s backend, got %s", tt.want, backend.Name())
			}
		})
	}
}

func TestBackendFactoryValidation(t *testing.T) {
	factory := NewBackendFactory()
	for _, valid := range []string{"", "auto", "malgo", "oto", "null"} {
		if !factory.IsValidBackendType(valid) {
			t.Errorf("expected %q to be valid", valid)
		}
	}
	if factory.IsValidBackendType("system_command") {
		t.Error("expected system_command to be rejected")
	}
}

func TestNullBackendLifecycle(t *testing.T) {
	out := NewOutput(1000)
	backend := NewNullBackend()

	require.NoError(t, backend.Start(out, 1000))
	require.NoError(t, backend.Start(out, 1000), "second start is a no-op")
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())
	assert.ErrorIs(t, backend.Start(out, 1000), ErrBackendClosed)
}
