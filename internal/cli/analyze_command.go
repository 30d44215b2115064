package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"voicebus.click/internal/tracking"
)

// analyzeFlags are shared by every analyze subcommand
type analyzeFlags struct {
	days    int
	preset  string
	since   string
	slot    string
	sound   string
	session string
	limit   int
	asJSON  bool
}

func (f *analyzeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.days, "days", 7, "Number of days to analyze (0 = all time)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Date preset (today, yesterday, week, month, all)")
	cmd.Flags().StringVar(&f.since, "since", "", "Natural language start, e.g. \"3 hours ago\"")
	cmd.Flags().StringVar(&f.slot, "slot", "", "Filter by slot (bus, channel)")
	cmd.Flags().StringVar(&f.sound, "sound", "", "Filter by sound name")
	cmd.Flags().StringVar(&f.session, "session", "", "Filter by session ID")
	cmd.Flags().IntVar(&f.limit, "limit", 20, "Maximum number of results to show")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Output as JSON")
}

func (f *analyzeFlags) filter() (tracking.QueryFilter, error) {
	if f.slot != "" && f.slot != "bus" && f.slot != "channel" {
		return tracking.QueryFilter{}, fmt.Errorf("invalid slot '%s', must be bus or channel", f.slot)
	}
	return tracking.QueryFilter{
		Days:       f.days,
		DatePreset: f.preset,
		Since:      f.since,
		Slot:       f.slot,
		Sound:      f.sound,
		SessionID:  f.session,
		Limit:      f.limit,
	}, nil
}

// timeContext describes the filter's time range for headings
func timeContext(filter tracking.QueryFilter) string {
	switch {
	case filter.DatePreset != "":
		return filter.DatePreset
	case filter.Since != "":
		return "since " + filter.Since
	case filter.Days > 0:
		return fmt.Sprintf("last %d days", filter.Days)
	default:
		return "all time"
	}
}

// newAnalyzeCommand creates the analyze command with subcommands
func newAnalyzeCommand() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze voice tracking data",
		Long:  "Analyze the voice event log to see what played, what was evicted and which sounds are missing",
	}

	analyzeCmd.AddCommand(newAnalyzeSubcommand("summary",
		"Show overall playback statistics",
		`Examples:
  voicebus analyze summary
  voicebus analyze summary --preset today
  voicebus analyze summary --slot channel`,
		runAnalyzeSummary))
	analyzeCmd.AddCommand(newAnalyzeSubcommand("sounds",
		"Show per-sound usage, most played first",
		`Examples:
  voicebus analyze sounds --days 30
  voicebus analyze sounds --since "2 hours ago" --limit 5`,
		runAnalyzeSounds))
	analyzeCmd.AddCommand(newAnalyzeSubcommand("failures",
		"Show sounds whose every candidate failed to load",
		`Missing or undecodable sounds are listed most frequent first with the
last error seen, so the most requested gaps can be filled first.

Examples:
  voicebus analyze failures
  voicebus analyze failures --preset week --json`,
		runAnalyzeFailures))

	return analyzeCmd
}

type analyzeRunner func(w io.Writer, db *sql.DB, filter tracking.QueryFilter, asJSON bool) error

func newAnalyzeSubcommand(use, short, long string, run analyzeRunner) *cobra.Command {
	var flags analyzeFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ".\n\n" + long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			db, closeAll, err := openAnalyzeDB(cmd)
			if err != nil {
				return err
			}
			defer closeAll()

			slog.Debug("running analyze command", "report", use, "filter", fmt.Sprintf("%+v", filter))
			return run(cmd.OutOrStdout(), db, filter, flags.asJSON)
		},
	}
	flags.register(cmd)
	return cmd
}

// openAnalyzeDB opens the tracking database named by the configuration
func openAnalyzeDB(cmd *cobra.Command) (*sql.DB, func(), error) {
	cli, cfg, closeLog, err := prepare(cmd)
	if err != nil {
		return nil, nil, err
	}

	db := cli.openTracking(cfg)
	if db == nil {
		closeLog()
		return nil, nil, fmt.Errorf("voice tracking is not enabled or database is not available")
	}
	return db, func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing tracking database", "error", err)
		}
		closeLog()
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "never"
	}
	return humanize.Time(time.Unix(ts, 0))
}

func runAnalyzeSummary(w io.Writer, db *sql.DB, filter tracking.QueryFilter, asJSON bool) error {
	summary, err := tracking.GetUsageSummary(db, filter)
	if err != nil {
		return fmt.Errorf("failed to analyze usage: %w", err)
	}
	if asJSON {
		return writeJSON(w, summary)
	}

	fmt.Fprintf(w, "Voice Summary (%s):\n\n", timeContext(filter))
	if summary.TotalEvents == 0 {
		fmt.Fprintln(w, "No voice events recorded.")
		return nil
	}

	fmt.Fprintf(w, "  Events:        %s\n", humanize.Comma(int64(summary.TotalEvents)))
	fmt.Fprintf(w, "  Unique sounds: %d\n", summary.UniqueSounds)
	fmt.Fprintf(w, "  Sessions:      %d\n", summary.Sessions)
	fmt.Fprintf(w, "  Avg load:      %.1f ms\n", summary.AvgLoadMS)
	fmt.Fprintf(w, "  Failure rate:  %.1f%%\n", summary.FailureRate*100)
	fmt.Fprintf(w, "  Eviction rate: %.1f%%\n", summary.EvictionRate*100)
	fmt.Fprintf(w, "  First event:   %s\n", formatUnix(summary.FirstEventAt))
	fmt.Fprintf(w, "  Last event:    %s\n", formatUnix(summary.LastEventAt))

	fmt.Fprintln(w, "\nBy kind:")
	for _, kind := range []string{"started", "completed", "evicted", "stopped", "faded", "superseded", "failed"} {
		if n := summary.KindCounts[kind]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", kind, n)
		}
	}
	return nil
}

func runAnalyzeSounds(w io.Writer, db *sql.DB, filter tracking.QueryFilter, asJSON bool) error {
	usage, err := tracking.GetSoundUsage(db, filter)
	if err != nil {
		return fmt.Errorf("failed to analyze sounds: %w", err)
	}
	if asJSON {
		if usage == nil {
			usage = []tracking.SoundUsage{}
		}
		return writeJSON(w, usage)
	}

	fmt.Fprintf(w, "Sound Usage (%s):\n\n", timeContext(filter))
	if len(usage) == 0 {
		fmt.Fprintln(w, "No sounds played.")
		return nil
	}

	fmt.Fprintf(w, "  %-24s %6s %6s %6s %6s %6s %9s  %s\n",
		"NAME", "PLAYS", "DONE", "EVICT", "STOP", "FAIL", "LOAD", "LAST")
	for _, u := range usage {
		fmt.Fprintf(w, "  %-24s %6d %6d %6d %6d %6d %7.1fms  %s\n",
			u.Name, u.Plays, u.Completions, u.Evictions, u.Stops+u.Superseded, u.Failures,
			u.AvgLoadMS, formatUnix(u.LastPlayed))
	}
	return nil
}

func runAnalyzeFailures(w io.Writer, db *sql.DB, filter tracking.QueryFilter, asJSON bool) error {
	failures, err := tracking.GetFailures(db, filter)
	if err != nil {
		return fmt.Errorf("failed to analyze failures: %w", err)
	}
	if asJSON {
		if failures == nil {
			failures = []tracking.SoundFailure{}
		}
		return writeJSON(w, failures)
	}

	fmt.Fprintf(w, "Missing Sounds (%s):\n\n", timeContext(filter))
	if len(failures) == 0 {
		fmt.Fprintln(w, "No load failures found.")
		return nil
	}

	for _, f := range failures {
		fmt.Fprintf(w, "  %-30s %d failures, last %s\n", f.Name, f.Count, formatUnix(f.LastSeen))
		if f.LastError != "" {
			fmt.Fprintf(w, "      %s\n", f.LastError)
		}
	}

	fmt.Fprintln(w, "\nAdd the most frequent names to your soundpack first.")
	return nil
}
