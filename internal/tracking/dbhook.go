package tracking

import (
	"database/sql"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"voicebus.click/internal/engine"
)

// DBHook records engine lifecycle events in the tracking database
type DBHook struct {
	db        *sql.DB
	sessionID string

	mu       sync.Mutex
	disabled bool
	written  int
}

// NewDBHook creates a database hook for the given session. An empty
// sessionID gets a random one.
func NewDBHook(db *sql.DB, sessionID string) *DBHook {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return &DBHook{
		db:        db,
		sessionID: sessionID,
	}
}

// NewSessionID returns a random session identifier
func NewSessionID() string {
	return uuid.New().String()
}

// SessionID returns the session recorded with every row
func (d *DBHook) SessionID() string {
	return d.sessionID
}

// Disabled reports whether a write failure switched the hook off
func (d *DBHook) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// Written returns the number of rows inserted
func (d *DBHook) Written() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

// Observe inserts one event. The first write error is logged and disables
// the hook so tracking problems never reach playback.
func (d *DBHook) Observe(ev engine.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disabled {
		return
	}

	row := FromEngineEvent(ev, d.sessionID)
	if err := insertEvent(d.db, row); err != nil {
		slog.Warn("voice tracking disabled after write failure",
			"error", err,
			"kind", row.Kind,
			"sound", row.SoundName)
		d.disabled = true
		return
	}
	d.written++

	slog.Debug("voice tracking logged event",
		"session_id", d.sessionID,
		"kind", row.Kind,
		"slot", row.Slot,
		"sound", row.SoundName)
}

// Observer returns the hook as an engine observer
func (d *DBHook) Observer() engine.Observer {
	return d.Observe
}

func insertEvent(db *sql.DB, row VoiceEvent) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("voice_events")
	ib.Cols("timestamp", "session_id", "slot", "kind", "voice_id", "sound_name",
		"resolved_path", "gain", "rate", "load_ms", "error")
	ib.Values(row.Timestamp.Unix(), row.SessionID, row.Slot, row.Kind, int64(row.VoiceID), row.SoundName,
		row.ResolvedPath, row.Gain, row.Rate, row.LoadMS, row.Error)

	query, args := ib.BuildWithFlavor(sqlbuilder.SQLite)
	_, err := db.Exec(query, args...)
	return err
}
