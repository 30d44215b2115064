package main

import (
	"log/slog"
	"os"

	"voicebus.click/internal/cli"
)

func main() {
	// Quiet until the config sets the real level
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	c := cli.NewCLI()
	os.Exit(c.Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}
