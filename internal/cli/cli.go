package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"voicebus.click/internal/audio"
	"voicebus.click/internal/config"
	"voicebus.click/internal/fs"
)

const Version = "1.0.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	configManager    *config.ConfigManager
	files            afero.Fs
	soundsFs         afero.Fs
	backendFactory   audio.BackendFactory
	terminalDetector TerminalDetector
}

// NewCLI creates a CLI on the real filesystem and audio devices
func NewCLI() *CLI {
	return NewCLIWithDependencies(
		config.NewConfigManager(),
		fs.NewDefaultFactory(),
		audio.NewBackendFactory(),
	)
}

// NewCLIWithDependencies creates a CLI with injected configuration,
// filesystems and backend factory
func NewCLIWithDependencies(cm *config.ConfigManager, filesystems fs.Factory, factory audio.BackendFactory) *CLI {
	slog.Debug("creating new CLI instance")

	rootCmd := &cobra.Command{
		Use:   "voicebus",
		Short: "Bounded sound-effect and voice-line player",
		Long: `voicebus plays short sound effects on a bounded voice bus and voice lines
on a single channel that fades out the previous line.

Without a subcommand, commands are read from stdin one per line until EOF:

  PlaySFX Cursor1 80 100
  PlayVoice line01 100 100 -20
  {"command":"play","target":"se","name":"Decision1"}
  StopSFX | SkipVoice | StopVoice`,
		RunE:          runStreamModeE,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("volume", "", "Default sound effect volume (0 to 100)")
	rootCmd.PersistentFlags().Int("max-voices", 0, "Maximum concurrent sound effects")
	rootCmd.PersistentFlags().String("backend", "", "Audio backend (auto, malgo, oto, null)")
	rootCmd.PersistentFlags().Bool("silent", false, "Silent mode - decode and mix without a device")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.Flags().Duration("linger", defaultLinger, "How long to wait for voices after EOF (0 = until idle)")

	rootCmd.AddCommand(newPlayCommand())
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newSoundpackCommand())

	return &CLI{
		rootCmd:          rootCmd,
		configManager:    cm,
		files:            filesystems.Production(),
		soundsFs:         filesystems.Sounds(),
		backendFactory:   factory,
		terminalDetector: &DefaultTerminalDetector{},
	}
}

type cliKey struct{}

// contextWithCLI stores the CLI instance for command handlers
func contextWithCLI(ctx context.Context, cli *CLI) context.Context {
	return context.WithValue(ctx, cliKey{}, cli)
}

// cliFromContext extracts the CLI instance from context
func cliFromContext(ctx context.Context) (*CLI, error) {
	if cli, ok := ctx.Value(cliKey{}).(*CLI); ok {
		return cli, nil
	}
	return nil, errors.New("CLI instance not found in context")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "voicebus version %s\n", Version)
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	// Answer --version before touching config, devices or the database
	if len(args) > 1 && (args[1] == "--version" || args[1] == "-v") {
		printVersion(stdout)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c.rootCmd.SetArgs(args[1:])
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.ExecuteContext(contextWithCLI(ctx, c)); err != nil {
		slog.Debug("command failed", "error", err)
		return 1
	}
	return 0
}

// loadAndValidateConfig loads configuration, applies environment and flag
// overrides, and validates the result
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	volumeStr, _ := cmd.Flags().GetString("volume")
	maxVoices, _ := cmd.Flags().GetInt("max-voices")
	backend, _ := cmd.Flags().GetString("backend")
	silent, _ := cmd.Flags().GetBool("silent")

	var volume float64
	if volumeStr != "" {
		vol, err := strconv.ParseFloat(volumeStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid volume value '%s': %w", volumeStr, err)
		}
		if vol < 0 || vol > 100 {
			return nil, fmt.Errorf("volume must be between 0 and 100, got %g", vol)
		}
		volume = vol
	}
	if cmd.Flags().Changed("max-voices") && maxVoices < 1 {
		return nil, fmt.Errorf("max-voices must be >= 1, got %d", maxVoices)
	}

	cfg, err := c.configManager.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if volumeStr != "" {
		cfg.SEVolume = volume
		slog.Debug("volume override applied", "value", volume)
	}
	if maxVoices > 0 {
		cfg.Bus.MaxVoices = maxVoices
		slog.Debug("max voices override applied", "value", maxVoices)
	}
	if backend != "" {
		cfg.AudioBackend = backend
		slog.Debug("backend override applied", "value", backend)
	}
	if silent {
		cfg.Enabled = false
		slog.Debug("silent mode enabled")
	}

	if err := c.configManager.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// prepare loads config and installs logging. The returned function
// closes the log file, if any.
func prepare(cmd *cobra.Command) (*CLI, *config.Config, func(), error) {
	cli, err := cliFromContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := cli.loadAndValidateConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	closeLog := setupLogging(cfg, cli.configManager, cmd.ErrOrStderr())
	return cli, cfg, closeLog, nil
}
