package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// maxLineSize bounds a single command line
const maxLineSize = 64 * 1024

// Stats counts what a stream did
type Stats struct {
	Lines    int
	Applied  int
	Rejected int
}

// Stream reads commands from r until EOF or ctx is done and applies each
// to d. Malformed lines are logged and skipped.
func Stream(ctx context.Context, r io.Reader, d Dispatcher) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++

		cmd, err := Parse(scanner.Text())
		if err != nil {
			stats.Rejected++
			slog.Warn("rejected command", "line", stats.Lines, "error", err)
			continue
		}
		if cmd == nil {
			continue
		}

		cmd.Apply(d)
		stats.Applied++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read commands: %w", err)
	}
	return stats, nil
}
