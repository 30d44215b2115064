package tracking

import (
	"time"

	"voicebus.click/internal/engine"
)

// VoiceEvent is one row of the voice_events table
type VoiceEvent struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	Slot         string    `json:"slot"`
	Kind         string    `json:"kind"`
	VoiceID      uint64    `json:"voice_id"`
	SoundName    string    `json:"sound_name"`
	ResolvedPath string    `json:"resolved_path,omitempty"`
	Gain         float64   `json:"gain"`
	Rate         float64   `json:"rate"`
	LoadMS       int64     `json:"load_ms"`
	Error        string    `json:"error,omitempty"`
}

// FromEngineEvent converts an engine lifecycle event into a row
func FromEngineEvent(ev engine.Event, sessionID string) VoiceEvent {
	row := VoiceEvent{
		Timestamp:    ev.Time,
		SessionID:    sessionID,
		Slot:         string(ev.Slot),
		Kind:         ev.Kind.String(),
		VoiceID:      ev.VoiceID,
		SoundName:    ev.Name,
		ResolvedPath: ev.Path,
		Gain:         ev.Gain,
		Rate:         ev.Rate,
		LoadMS:       ev.LoadTime.Milliseconds(),
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
	}
	return row
}
