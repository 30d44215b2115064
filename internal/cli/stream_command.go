package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"voicebus.click/internal/command"
)

// runStreamModeE reads commands from stdin until EOF and applies them
func runStreamModeE(cmd *cobra.Command, args []string) error {
	if version, _ := cmd.Flags().GetBool("version"); version {
		printVersion(cmd.OutOrStdout())
		return nil
	}
	linger, _ := cmd.Flags().GetDuration("linger")

	cli, cfg, closeLog, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := cli.openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	stdin := cmd.InOrStdin()
	if cli.isInteractive(stdin) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Reading commands from the terminal, Ctrl-D to finish.")
	}

	return s.run(cmd.Context(), linger, func(ctx context.Context) error {
		stats, err := streamCommands(ctx, stdin, s)
		slog.Info("command stream finished",
			"lines", stats.Lines,
			"applied", stats.Applied,
			"rejected", stats.Rejected)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// streamCommands runs command.Stream so that ctx cancellation returns
// even while a read is blocked; the reader is abandoned in that case
func streamCommands(ctx context.Context, r io.Reader, s *session) (command.Stats, error) {
	type result struct {
		stats command.Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := command.Stream(ctx, r, s.engine)
		done <- result{stats, err}
	}()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-ctx.Done():
		return command.Stats{}, ctx.Err()
	}
}
