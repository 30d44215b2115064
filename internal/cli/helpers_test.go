package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"voicebus.click/internal/audio"
	"voicebus.click/internal/config"
)

const (
	testSampleRate = 8000
	testConfigPath = "/etc/voicebus/config.json"
	soundpackBase  = "/data/voicebus/soundpacks"
)

// memFactory serves one shared in-memory filesystem
type memFactory struct {
	fs afero.Fs
}

func (m memFactory) Production() afero.Fs { return m.fs }
func (m memFactory) Sounds() afero.Fs     { return afero.NewReadOnlyFs(m.fs) }
func (m memFactory) Memory() afero.Fs     { return afero.NewMemMapFs() }

// fakeXDG keeps config and soundpacks in memory and the cache on disk,
// where SQLite can reach it
type fakeXDG struct {
	cacheDir string
}

func (x *fakeXDG) GetConfigPaths(filename string) []string { return nil }

func (x *fakeXDG) GetSoundpackPaths(soundpackID string) []string {
	return []string{filepath.Join(soundpackBase, soundpackID)}
}

func (x *fakeXDG) GetCachePath(purpose string) string {
	return filepath.Join(x.cacheDir, purpose)
}

func (x *fakeXDG) CreateCacheDir(purpose string) error { return nil }

// testEnv is a filesystem, XDG layout and config shared by several CLI runs
type testEnv struct {
	t      *testing.T
	fs     afero.Fs
	xdg    *fakeXDG
	dbPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cacheDir := t.TempDir()
	env := &testEnv{
		t:      t,
		fs:     afero.NewMemMapFs(),
		xdg:    &fakeXDG{cacheDir: cacheDir},
		dbPath: filepath.Join(cacheDir, "events.db"),
	}
	env.writeConfig(nil)
	return env
}

// writeConfig writes the base test config with overrides applied
func (e *testEnv) writeConfig(overrides map[string]any) {
	e.t.Helper()
	cfg := map[string]any{
		"enabled":       true,
		"log_level":     "info",
		"audio_backend": "null",
		"sample_rate":   testSampleRate,
		"audio_dir":     "/sounds",
		"extensions":    []string{".wav"},
		"voice":         map[string]any{"fade_frames": 2, "frames_per_second": 60},
		"tracking":      map[string]any{"enabled": true, "database_path": e.dbPath},
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(e.t, err)
	require.NoError(e.t, afero.WriteFile(e.fs, testConfigPath, data, 0644))
}

// writeSound stores a WAV of frames at the test sample rate
func (e *testEnv) writeSound(path string, frames int) []byte {
	e.t.Helper()
	data := generateTestWAV(2, testSampleRate, frames, 1000)
	require.NoError(e.t, afero.WriteFile(e.fs, path, data, 0644))
	return data
}

func (e *testEnv) newCLI() *CLI {
	cm := config.NewConfigManagerWithDependencies(e.fs, e.xdg)
	factory := audio.NewBackendFactoryWithDependencies(func() bool { return false })
	return NewCLIWithDependencies(cm, memFactory{fs: e.fs}, factory)
}

type runResult struct {
	code   int
	stdout string
	stderr string
}

// run executes one command line against a fresh CLI. --config is added
// unless the args already carry one.
func (e *testEnv) run(stdin io.Reader, args ...string) runResult {
	e.t.Helper()

	prev := slog.Default()
	e.t.Cleanup(func() { slog.SetDefault(prev) })

	full := append([]string{"voicebus"}, args...)
	if !containsArg(args, "--config") {
		full = append(full, "--config", testConfigPath)
	}
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	var stdout, stderr bytes.Buffer
	code := e.newCLI().Run(full, stdin, &stdout, &stderr)
	slog.SetDefault(prev)
	return runResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func containsArg(args []string, name string) bool {
	for _, a := range args {
		if a == name || strings.HasPrefix(a, name+"=") {
			return true
		}
	}
	return false
}

// generateTestWAV builds a 16-bit PCM WAV with a constant sample value
func generateTestWAV(channels, sampleRate, frames int, value int16) []byte {
	dataSize := frames * channels * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
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

func writeFile(env *testEnv, path string, data []byte) error {
	return afero.WriteFile(env.fs, path, data, 0644)
}
