package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"voicebus.click/internal/audio"
)

// ProbeResult describes a resolved and decoded sound
type ProbeResult struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	SampleRate   int           `json:"sample_rate"`
	Channels     int           `json:"channels"`
	Frames       int           `json:"frames"`
	Duration     time.Duration `json:"duration_ns"`
	FileBytes    int           `json:"file_bytes"`
	DecodedBytes int           `json:"decoded_bytes"`
	LoadTime     time.Duration `json:"load_time_ns"`
}

func newProbeCommand() *cobra.Command {
	var asJSON bool

	probeCmd := &cobra.Command{
		Use:   "probe NAME",
		Short: "Resolve and decode a sound without playing it",
		Long: `Resolve a logical sound name through the soundpack, decode the first
candidate that works and print what was found. Nothing is played.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, args[0], asJSON)
		},
	}
	probeCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return probeCmd
}

func runProbe(cmd *cobra.Command, name string, asJSON bool) error {
	cli, cfg, closeLog, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	pipeline, err := cli.newPipeline(cfg)
	if err != nil {
		return err
	}

	req := audio.NewRequest(name, nil, cfg.SEVolume, 100, 0)
	start := time.Now()
	clip, err := pipeline.Load(cmd.Context(), req)
	if err != nil {
		var exhausted *audio.ExhaustedCandidatesError
		if errors.As(err, &exhausted) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Tried %d candidates for %s:\n", len(exhausted.Candidates), name)
			for _, candidate := range exhausted.Candidates {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", candidate)
			}
		}
		return err
	}

	format := clip.Format()
	result := ProbeResult{
		Name:         name,
		Path:         clip.Path,
		SampleRate:   int(format.SampleRate),
		Channels:     format.NumChannels,
		Frames:       clip.Len(),
		Duration:     clip.Duration(),
		FileBytes:    clip.Bytes,
		DecodedBytes: clip.Len() * format.Width(),
		LoadTime:     time.Since(start),
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "Name:      %s\n", result.Name)
	fmt.Fprintf(w, "Path:      %s\n", result.Path)
	fmt.Fprintf(w, "Format:    %d Hz, %d channels\n", result.SampleRate, result.Channels)
	fmt.Fprintf(w, "Frames:    %s\n", humanize.Comma(int64(result.Frames)))
	fmt.Fprintf(w, "Duration:  %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "File size: %s\n", humanize.Bytes(uint64(result.FileBytes)))
	fmt.Fprintf(w, "Decoded:   %s\n", humanize.Bytes(uint64(result.DecodedBytes)))
	fmt.Fprintf(w, "Load time: %s\n", result.LoadTime.Round(time.Microsecond))
	return nil
}
