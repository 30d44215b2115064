package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voicebus.click/internal/engine"
)

type playOptions struct {
	voice   bool
	volume  float64
	pitch   float64
	pan     float64
	timeout time.Duration
}

func newPlayCommand() *cobra.Command {
	var opts playOptions

	playCmd := &cobra.Command{
		Use:   "play NAME",
		Short: "Play one sound and wait for it to finish",
		Long: `Play one sound on the voice bus, or on the voice channel with --voice,
and wait until it completes or fails to load.

Examples:
  voicebus play Cursor1
  voicebus play Cursor1 --pitch 150
  voicebus play line01 --voice --pan -50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args[0], opts)
		},
	}

	playCmd.Flags().BoolVar(&opts.voice, "voice", false, "Play on the voice channel instead of the bus")
	playCmd.Flags().Float64Var(&opts.volume, "gain", 0, "Volume for this play (0 to 100, default from config)")
	playCmd.Flags().Float64Var(&opts.pitch, "pitch", 100, "Pitch in percent")
	playCmd.Flags().Float64Var(&opts.pan, "pan", 0, "Pan from -100 (left) to 100 (right), voice channel only")
	playCmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "Give up waiting after this long")

	return playCmd
}

// terminal reports whether an event ends a play from the caller's view
func terminal(kind engine.EventKind) bool {
	return kind != engine.EventStarted
}

func runPlay(cmd *cobra.Command, name string, opts playOptions) error {
	cli, cfg, closeLog, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	slot := engine.SlotBus
	if opts.voice {
		slot = engine.SlotChannel
	}

	events := make(chan engine.Event, 8)
	watch := func(ev engine.Event) {
		if ev.Slot != slot || ev.Name != name {
			return
		}
		select {
		case events <- ev:
		default:
		}
	}

	s, err := cli.openSession(cmd.Context(), cfg, watch)
	if err != nil {
		return err
	}
	defer s.close()

	playOpts := []engine.PlayOption{engine.WithPitch(opts.pitch), engine.WithPan(opts.pan)}
	if cmd.Flags().Changed("gain") {
		playOpts = append(playOpts, engine.WithVolume(opts.volume))
	}

	out := cmd.OutOrStdout()
	return s.run(cmd.Context(), opts.timeout, func(ctx context.Context) error {
		if opts.voice {
			s.engine.PlayVoice(name, playOpts...)
		} else {
			s.engine.PlaySE(name, playOpts...)
		}

		waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()

		for {
			select {
			case <-waitCtx.Done():
				return fmt.Errorf("waiting for %s: %w", name, waitCtx.Err())
			case ev := <-events:
				switch {
				case ev.Kind == engine.EventStarted:
					fmt.Fprintf(out, "Playing %s from %s\n", name, ev.Path)
				case ev.Kind == engine.EventFailed:
					return fmt.Errorf("failed to play %s: %w", name, ev.Err)
				case terminal(ev.Kind):
					fmt.Fprintf(out, "Finished %s (%s)\n", name, ev.Kind)
					return nil
				}
			}
		}
	})
}
