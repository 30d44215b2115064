package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"voicebus.click/internal/audio"
	"voicebus.click/internal/config"
	"voicebus.click/internal/soundpack"
)

// newSoundpackCommand creates the soundpack command with subcommands
func newSoundpackCommand() *cobra.Command {
	soundpackCmd := &cobra.Command{
		Use:   "soundpack",
		Short: "Manage soundpacks",
		Long:  "Commands for creating and listing soundpacks",
	}
	soundpackCmd.AddCommand(newSoundpackInitCommand())
	soundpackCmd.AddCommand(newSoundpackListCommand())
	return soundpackCmd
}

func newSoundpackInitCommand() *cobra.Command {
	var dir string
	var scan bool

	initCmd := &cobra.Command{
		Use:   "init NAME",
		Short: "Create a new soundpack manifest",
		Long: `Create DIR/NAME/soundpack.yaml. With --scan, every playable file under
the configured audio_dir becomes an alias named after its path without the
extension.

Examples:
  voicebus soundpack init my-pack
  voicebus soundpack init my-pack --dir ~/.local/share/voicebus/soundpacks
  voicebus soundpack init my-pack --scan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoundpackInit(cmd, args[0], dir, scan)
		},
	}

	initCmd.Flags().StringVar(&dir, "dir", ".", "Directory the soundpack is created in")
	initCmd.Flags().BoolVar(&scan, "scan", false, "Fill aliases from the configured audio directory")

	return initCmd
}

func runSoundpackInit(cmd *cobra.Command, name, dir string, scan bool) error {
	cli, cfg, closeLog, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if _, err := soundpack.SanitizeName(name); err != nil || strings.Contains(name, "/") {
		return fmt.Errorf("invalid soundpack name '%s'", name)
	}

	packDir := filepath.Join(dir, name)
	manifestPath := filepath.Join(packDir, soundpack.ManifestFileNames[0])
	if _, err := cli.files.Stat(manifestPath); err == nil {
		return fmt.Errorf("file already exists: %s", manifestPath)
	}

	sounds := map[string]string{"example": "example"}
	if scan {
		scanned, err := scanAudioDir(cli.soundsFs, cfg)
		if err != nil {
			return err
		}
		if len(scanned) == 0 {
			return fmt.Errorf("no playable files found in %s", cfg.AudioDir)
		}
		sounds = scanned
	}

	manifest := soundpack.Manifest{
		Name:        name,
		Description: "Custom soundpack",
		Version:     "1.0.0",
		Sounds:      sounds,
	}
	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := cli.files.MkdirAll(packDir, 0755); err != nil {
		return fmt.Errorf("failed to create soundpack directory: %w", err)
	}
	if err := afero.WriteFile(cli.files, manifestPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	slog.Info("soundpack manifest created", "path", manifestPath, "sounds", len(sounds))
	cmd.Printf("Created soundpack manifest: %s (%d sounds)\n", manifestPath, len(sounds))
	return nil
}

// isPlayable reports whether a file has a configured extension or one a
// decoder understands
func isPlayable(registry *audio.DecoderRegistry, cfg *config.Config, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if slices.Contains(cfg.Extensions, ext) {
		return true
	}
	return registry.DetectFormat(path) != nil
}

// scanAudioDir maps each playable file under the audio directory to an
// alias. Targets are absolute so the manifest works from any directory.
func scanAudioDir(fsys afero.Fs, cfg *config.Config) (map[string]string, error) {
	root, err := filepath.Abs(cfg.AudioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audio directory: %w", err)
	}

	registry := audio.NewDefaultRegistry()
	sounds := make(map[string]string)

	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !isPlayable(registry, cfg, path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		base := strings.TrimSuffix(rel, filepath.Ext(rel))
		alias := filepath.ToSlash(base)
		if _, seen := sounds[alias]; !seen {
			sounds[alias] = filepath.Join(root, base)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return sounds, nil
}

// soundpackInfo holds metadata about a discovered soundpack
type soundpackInfo struct {
	Name       string
	Type       string // "manifest" or "directory"
	SoundCount int
	Path       string
}

func newSoundpackListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed soundpacks",
		Long: `List soundpacks found in the XDG data directories
(voicebus/soundpacks/<id>) with their type, sound count and path.`,
		Args: cobra.NoArgs,
		RunE: runSoundpackList,
	}
}

func runSoundpackList(cmd *cobra.Command, args []string) error {
	cli, cfg, closeLog, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	packs := discoverSoundpacks(cli.soundsFs, cfg, cli.configManager.XDG().GetSoundpackPaths(""))
	slog.Debug("discovered soundpacks", "count", len(packs))

	if len(packs) == 0 {
		cmd.Println("No soundpacks installed.")
		return nil
	}

	nameWidth, typeWidth := len("NAME"), len("TYPE")
	for _, p := range packs {
		nameWidth = max(nameWidth, len(p.Name))
		typeWidth = max(typeWidth, len(p.Type))
	}
	format := fmt.Sprintf("%%-%ds  %%-%ds  %%6s  %%s\n", nameWidth, typeWidth)

	cmd.Printf(format, "NAME", "TYPE", "SOUNDS", "PATH")
	for _, p := range packs {
		cmd.Printf(format, p.Name, p.Type, fmt.Sprint(p.SoundCount), p.Path)
	}
	return nil
}

// discoverSoundpacks scans each base directory for soundpack directories.
// A name found in several bases is reported once, from the first.
func discoverSoundpacks(fsys afero.Fs, cfg *config.Config, basePaths []string) []soundpackInfo {
	registry := audio.NewDefaultRegistry()
	seen := make(map[string]bool)
	var packs []soundpackInfo

	for _, basePath := range basePaths {
		entries, err := afero.ReadDir(fsys, basePath)
		if err != nil {
			slog.Debug("could not read soundpack directory", "path", basePath, "error", err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() || seen[entry.Name()] {
				continue
			}
			seen[entry.Name()] = true
			packDir := filepath.Join(basePath, entry.Name())
			packs = append(packs, describeSoundpack(fsys, registry, cfg, entry.Name(), packDir))
		}
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].Name < packs[j].Name })
	return packs
}

func describeSoundpack(fsys afero.Fs, registry *audio.DecoderRegistry, cfg *config.Config, name, dir string) soundpackInfo {
	for _, manifestName := range soundpack.ManifestFileNames {
		manifestPath := filepath.Join(dir, manifestName)
		if _, err := fsys.Stat(manifestPath); err != nil {
			continue
		}
		m, err := soundpack.LoadManifest(fsys, manifestPath)
		if err != nil {
			slog.Warn("skipping unreadable manifest", "path", manifestPath, "error", err)
			continue
		}
		return soundpackInfo{Name: name, Type: "manifest", SoundCount: len(m.Sounds), Path: manifestPath}
	}

	count := 0
	_ = afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && isPlayable(registry, cfg, path) {
			count++
		}
		return nil
	})
	return soundpackInfo{Name: name, Type: "directory", SoundCount: count, Path: dir}
}
