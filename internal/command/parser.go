// Package command parses playback commands from line-oriented input. Two
// forms are accepted: JSON objects and plugin-style command lines such as
// "PlaySFX Cursor1 80 100".
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"voicebus.click/internal/engine"
)

// ErrUnknownCommand is returned for command words or JSON commands that are not recognised
var ErrUnknownCommand = errors.New("unknown command")

// Action is what a command asks the engine to do
type Action int

const (
	ActionPlay Action = iota
	ActionStopAll
	ActionSkip
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionStopAll:
		return "stop_all"
	case ActionSkip:
		return "skip"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Target selects the bus or the voice channel for a play
type Target string

const (
	TargetSE    Target = "se"
	TargetVoice Target = "voice"
)

// Command is one parsed instruction. Absent numbers stay nil so the engine
// resolves its own defaults.
type Command struct {
	Action Action
	Target Target
	Name   string
	Volume *float64
	Pitch  *float64
	Pan    *float64
}

// Dispatcher is the engine surface commands are applied to
type Dispatcher interface {
	PlaySE(name string, opts ...engine.PlayOption)
	PlayVoice(name string, opts ...engine.PlayOption)
	StopAll()
	SkipVoice()
	StopVoice()
}

var _ Dispatcher = (*engine.Engine)(nil)

// jsonCommand is the wire shape of a JSON line
type jsonCommand struct {
	Command string   `json:"command"`
	Target  string   `json:"target"`
	Name    string   `json:"name"`
	Volume  *float64 `json:"volume"`
	Pitch   *float64 `json:"pitch"`
	Pan     *float64 `json:"pan"`
}

// Parse parses one line. Blank lines and lines starting with '#' return
// (nil, nil).
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	if strings.HasPrefix(line, "{") {
		return parseJSON(line)
	}
	return parsePlugin(line)
}

func parseJSON(line string) (*Command, error) {
	var raw jsonCommand
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse command JSON: %w", err)
	}

	switch strings.ToLower(raw.Command) {
	case "play":
		target := Target(strings.ToLower(raw.Target))
		switch target {
		case "":
			target = TargetSE
		case TargetSE, TargetVoice:
		default:
			return nil, fmt.Errorf("invalid play target %q, must be se or voice", raw.Target)
		}
		if raw.Name == "" {
			return nil, fmt.Errorf("missing required field: name")
		}
		return &Command{
			Action: ActionPlay,
			Target: target,
			Name:   raw.Name,
			Volume: raw.Volume,
			Pitch:  raw.Pitch,
			Pan:    raw.Pan,
		}, nil
	case "stop_all":
		return &Command{Action: ActionStopAll}, nil
	case "skip":
		return &Command{Action: ActionSkip}, nil
	case "stop":
		return &Command{Action: ActionStop}, nil
	case "":
		return nil, fmt.Errorf("missing required field: command")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, raw.Command)
	}
}

func parsePlugin(line string) (*Command, error) {
	fields := strings.Fields(line)
	word, args := strings.ToLower(fields[0]), fields[1:]

	switch word {
	case "playsfx":
		cmd := &Command{Action: ActionPlay, Target: TargetSE}
		return cmd, fillPlay(cmd, word, args, 2)
	case "playvoice":
		cmd := &Command{Action: ActionPlay, Target: TargetVoice}
		return cmd, fillPlay(cmd, word, args, 3)
	case "stopsfx":
		return &Command{Action: ActionStopAll}, nil
	case "skipvoice":
		return &Command{Action: ActionSkip}, nil
	case "stopvoice":
		return &Command{Action: ActionStop}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
}

// fillPlay reads the sound name and up to maxNumbers of volume, pitch, pan
func fillPlay(cmd *Command, word string, args []string, maxNumbers int) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: missing sound name", word)
	}
	cmd.Name = args[0]

	numbers := args[1:]
	if len(numbers) > maxNumbers {
		return fmt.Errorf("%s: expected at most %d numeric arguments, got %d", word, maxNumbers, len(numbers))
	}

	targets := []**float64{&cmd.Volume, &cmd.Pitch, &cmd.Pan}
	for i, s := range numbers {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q: %w", word, s, err)
		}
		*targets[i] = &v
	}
	return nil
}

// Options converts the numeric fields into engine play options
func (c *Command) Options() []engine.PlayOption {
	var opts []engine.PlayOption
	if c.Volume != nil {
		opts = append(opts, engine.WithVolume(*c.Volume))
	}
	if c.Pitch != nil {
		opts = append(opts, engine.WithPitch(*c.Pitch))
	}
	if c.Pan != nil {
		opts = append(opts, engine.WithPan(*c.Pan))
	}
	return opts
}

// Apply sends the command to d
func (c *Command) Apply(d Dispatcher) {
	slog.Debug("applying command",
		"action", c.Action.String(),
		"target", string(c.Target),
		"name", c.Name)

	switch c.Action {
	case ActionPlay:
		if c.Target == TargetVoice {
			d.PlayVoice(c.Name, c.Options()...)
		} else {
			d.PlaySE(c.Name, c.Options()...)
		}
	case ActionStopAll:
		d.StopAll()
	case ActionSkip:
		d.SkipVoice()
	case ActionStop:
		d.StopVoice()
	}
}
