package engine

import (
	"fmt"
	"time"
)

// Slot names the component that owns a voice
type Slot string

const (
	SlotBus     Slot = "bus"
	SlotChannel Slot = "channel"
)

// EventKind is a voice lifecycle transition
type EventKind int

const (
	// EventStarted: a resolved voice was installed and began playing
	EventStarted EventKind = iota
	// EventEvicted: the oldest bus voice was stopped to make room
	EventEvicted
	// EventCompleted: a voice reached the end of its clip
	EventCompleted
	// EventStopped: a voice was stopped by stopAll or a new channel play
	EventStopped
	// EventFaded: a channel voice began fading out
	EventFaded
	// EventSuperseded: a channel load resolved after a newer play and was discarded
	EventSuperseded
	// EventFailed: every candidate failed; no voice was created
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEvicted:
		return "evicted"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	case EventFaded:
		return "faded"
	case EventSuperseded:
		return "superseded"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event describes one lifecycle transition. VoiceID is zero for failures.
type Event struct {
	Kind     EventKind
	Slot     Slot
	VoiceID  uint64
	Name     string
	Path     string
	Gain     float64
	Rate     float64
	LoadTime time.Duration
	Err      error
	Time     time.Time
}

// Observer receives events on the loop goroutine. It must not block and
// must not call back into the engine synchronously.
type Observer func(Event)
