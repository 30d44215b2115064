package cli

import (
	"os"
	"strings"
	"testing"
)

// fakeTerminal answers every fd with the same result
type fakeTerminal bool

func (f fakeTerminal) IsTerminal(fd int) bool { return bool(f) }

func TestIsInteractive(t *testing.T) {
	env := newTestEnv(t)
	cli := env.newCLI()

	cli.terminalDetector = fakeTerminal(true)
	if cli.isInteractive(strings.NewReader("PlaySFX a")) {
		t.Error("a non-file reader is never interactive")
	}
	if !cli.isInteractive(os.Stdin) {
		t.Error("expected stdin to be interactive with a detector that says so")
	}

	cli.terminalDetector = fakeTerminal(false)
	if cli.isInteractive(os.Stdin) {
		t.Error("expected stdin to be non-interactive")
	}
}

func TestDefaultTerminalDetectorOnPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	d := &DefaultTerminalDetector{}
	if d.IsTerminal(int(r.Fd())) {
		t.Error("a pipe is not a terminal")
	}
}
