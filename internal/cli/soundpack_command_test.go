package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebus.click/internal/soundpack"
)

func TestSoundpackInitTemplate(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(nil, "soundpack", "init", "retro", "--dir", "/packs")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Created soundpack manifest: /packs/retro/soundpack.yaml (1 sounds)")

	m, err := soundpack.LoadManifest(env.fs, "/packs/retro/soundpack.yaml")
	require.NoError(t, err)
	assert.Equal(t, "retro", m.Name)
	assert.Equal(t, map[string]string{"example": "example"}, m.Sounds)
}

func TestSoundpackInitRefusesExisting(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, 0, env.run(nil, "soundpack", "init", "retro", "--dir", "/packs").code)

	res := env.run(nil, "soundpack", "init", "retro", "--dir", "/packs")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "file already exists")
}

func TestSoundpackInitRejectsBadName(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(nil, "soundpack", "init", "../escape", "--dir", "/packs")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid soundpack name")
}

func TestSoundpackScanListAndPlay(t *testing.T) {
	env := newTestEnv(t)
	env.writeSound("/sounds/Cursor1.wav", 100)
	env.writeSound("/sounds/ui/ok.wav", 100)
	require.NoError(t, writeFile(env, "/sounds/readme.txt", []byte("notes")))

	res := env.run(nil, "soundpack", "init", "scanned", "--dir", soundpackBase, "--scan")
	require.Equal(t, 0, res.code, res.stderr)

	m, err := soundpack.LoadManifest(env.fs, filepath.Join(soundpackBase, "scanned", "soundpack.yaml"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Cursor1": "/sounds/Cursor1",
		"ui/ok":   "/sounds/ui/ok",
	}, m.Sounds)

	env.writeSound(filepath.Join(soundpackBase, "plain", "beep.wav"), 10)

	res = env.run(nil, "soundpack", "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Regexp(t, `plain\s+directory\s+1\s+/data/voicebus/soundpacks/plain`, res.stdout)
	assert.Regexp(t, `scanned\s+manifest\s+2\s+/data/voicebus/soundpacks/scanned/soundpack.yaml`, res.stdout)

	env.writeConfig(map[string]any{"soundpack": "scanned"})
	res = env.run(nil, "probe", "ui/ok")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "/sounds/ui/ok.wav")
}

func TestSoundpackListEmpty(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.fs.MkdirAll(soundpackBase, 0755))

	res := env.run(nil, "soundpack", "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No soundpacks installed.")
}

func TestSoundpackUnknownIDFails(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(map[string]any{"soundpack": "missing-pack"})

	res := env.run(nil, "probe", "Cursor1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "soundpack not found")
}
