package tracking

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebus.click/internal/engine"
)

// seedEvents records a small session through the hook
func seedEvents(t *testing.T, db *sql.DB, session string, at time.Time) {
	t.Helper()
	hook := NewDBHook(db, session)

	events := []engine.Event{
		{Kind: engine.EventStarted, Slot: engine.SlotBus, VoiceID: 1, Name: "Cursor1", Path: "audio/se/Cursor1.ogg", LoadTime: 10 * time.Millisecond},
		{Kind: engine.EventStarted, Slot: engine.SlotBus, VoiceID: 2, Name: "Cursor1", Path: "audio/se/Cursor1.ogg", LoadTime: 20 * time.Millisecond},
		{Kind: engine.EventEvicted, Slot: engine.SlotBus, VoiceID: 1, Name: "Cursor1"},
		{Kind: engine.EventCompleted, Slot: engine.SlotBus, VoiceID: 2, Name: "Cursor1"},
		{Kind: engine.EventStarted, Slot: engine.SlotChannel, VoiceID: 3, Name: "line01", Path: "audio/se/line01.m4a", LoadTime: 30 * time.Millisecond},
		{Kind: engine.EventFaded, Slot: engine.SlotChannel, VoiceID: 3, Name: "line01"},
		{Kind: engine.EventSuperseded, Slot: engine.SlotChannel, VoiceID: 4, Name: "line02"},
		{Kind: engine.EventFailed, Slot: engine.SlotBus, Name: "Missing", Err: errors.New("first")},
		{Kind: engine.EventFailed, Slot: engine.SlotBus, Name: "Missing", Err: errors.New("second")},
	}
	for i, ev := range events {
		ev.Time = at.Add(time.Duration(i) * time.Second)
		hook.Observe(ev)
	}
	require.Equal(t, len(events), hook.Written())
}

func TestGetUsageSummary(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	seedEvents(t, db, "a", now.Add(-time.Hour))
	seedEvents(t, db, "b", now.Add(-time.Hour))

	summary, err := GetUsageSummary(db, QueryFilter{})
	require.NoError(t, err)

	assert.Equal(t, 18, summary.TotalEvents)
	assert.Equal(t, 4, summary.UniqueSounds)
	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, 6, summary.KindCounts["started"])
	assert.Equal(t, 4, summary.KindCounts["failed"])
	assert.InDelta(t, 20.0, summary.AvgLoadMS, 0.001)
	assert.InDelta(t, 0.4, summary.FailureRate, 0.001)
	assert.InDelta(t, 2.0/6.0, summary.EvictionRate, 0.001)
	assert.Less(t, summary.FirstEventAt, summary.LastEventAt)
}

func TestGetUsageSummaryEmpty(t *testing.T) {
	db := setupTestDB(t)

	summary, err := GetUsageSummary(db, QueryFilter{DatePreset: "today"})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalEvents)
	assert.Zero(t, summary.FailureRate)
	assert.Empty(t, summary.KindCounts)
}

func TestGetSoundUsage(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db, "a", time.Now().Add(-time.Hour))

	usage, err := GetSoundUsage(db, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, usage, 4)

	cursor := usage[0]
	assert.Equal(t, "Cursor1", cursor.Name)
	assert.Equal(t, 2, cursor.Plays)
	assert.Equal(t, 1, cursor.Evictions)
	assert.Equal(t, 1, cursor.Completions)
	assert.InDelta(t, 15.0, cursor.AvgLoadMS, 0.001)
	assert.Equal(t, "audio/se/Cursor1.ogg", cursor.LastPath)

	byName := map[string]SoundUsage{}
	for _, u := range usage {
		byName[u.Name] = u
	}
	assert.Equal(t, 1, byName["line01"].Stops)
	assert.Equal(t, 1, byName["line02"].Superseded)
	assert.Equal(t, 2, byName["Missing"].Failures)
	assert.Equal(t, 0, byName["Missing"].Plays)
}

func TestGetSoundUsageFilters(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db, "a", time.Now().Add(-time.Hour))

	usage, err := GetSoundUsage(db, QueryFilter{Slot: "channel"})
	require.NoError(t, err)
	require.Len(t, usage, 2)
	for _, u := range usage {
		assert.Contains(t, []string{"line01", "line02"}, u.Name)
	}

	usage, err = GetSoundUsage(db, QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, usage, 1)

	usage, err = GetSoundUsage(db, QueryFilter{Sound: "line01"})
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].Plays)
}

func TestGetFailures(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db, "a", time.Now().Add(-time.Hour))

	failures, err := GetFailures(db, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, failures, 1)

	assert.Equal(t, "Missing", failures[0].Name)
	assert.Equal(t, 2, failures[0].Count)
	assert.Equal(t, "second", failures[0].LastError)
	assert.NotZero(t, failures[0].LastSeen)
}

func TestTimeFilterExcludesOldEvents(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db, "old", time.Now().AddDate(0, 0, -10))
	seedEvents(t, db, "new", time.Now().Add(-time.Minute))

	summary, err := GetUsageSummary(db, QueryFilter{Days: 3})
	require.NoError(t, err)
	assert.Equal(t, 9, summary.TotalEvents)
	assert.Equal(t, 1, summary.Sessions)

	summary, err = GetUsageSummary(db, QueryFilter{DatePreset: "all"})
	require.NoError(t, err)
	assert.Equal(t, 18, summary.TotalEvents)
}

func TestAnalyzerNilDatabase(t *testing.T) {
	_, err := GetUsageSummary(nil, QueryFilter{})
	assert.Error(t, err)
	_, err = GetSoundUsage(nil, QueryFilter{})
	assert.Error(t, err)
	_, err = GetFailures(nil, QueryFilter{})
	assert.Error(t, err)
}
