package tracking

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

// UsageSummary provides overall statistics for a time range
type UsageSummary struct {
	TotalEvents  int            `json:"total_events"`
	UniqueSounds int            `json:"unique_sounds"`
	Sessions     int            `json:"sessions"`
	AvgLoadMS    float64        `json:"avg_load_ms"`
	KindCounts   map[string]int `json:"kind_counts"`
	FailureRate  float64        `json:"failure_rate"` // failed / (started + failed)
	EvictionRate float64        `json:"eviction_rate"`
	FirstEventAt int64          `json:"first_event_at,omitempty"`
	LastEventAt  int64          `json:"last_event_at,omitempty"`
}

// SoundUsage represents per-sound playback statistics
type SoundUsage struct {
	Name        string  `json:"name"`
	Plays       int     `json:"plays"`
	Completions int     `json:"completions"`
	Evictions   int     `json:"evictions"`
	Stops       int     `json:"stops"` // stopped or faded
	Superseded  int     `json:"superseded"`
	Failures    int     `json:"failures"`
	AvgLoadMS   float64 `json:"avg_load_ms"`
	LastPlayed  int64   `json:"last_played"`
	LastPath    string  `json:"last_path,omitempty"`
}

// SoundFailure represents a sound whose candidates were all unavailable
type SoundFailure struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	LastError string `json:"last_error"`
	LastSeen  int64  `json:"last_seen"`
}

func newSelect() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.NewSelectBuilder()
	sb.SetFlavor(sqlbuilder.SQLite)
	return sb
}

// GetUsageSummary aggregates every event matching filter
func GetUsageSummary(db *sql.DB, filter QueryFilter) (*UsageSummary, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	now := time.Now()

	sb := newSelect()
	sb.Select(
		"COUNT(*)",
		"COUNT(DISTINCT sound_name)",
		"COUNT(DISTINCT session_id)",
		"COALESCE(AVG(CASE WHEN kind = 'started' THEN load_ms END), 0)",
		"COALESCE(MIN(timestamp), 0)",
		"COALESCE(MAX(timestamp), 0)",
	).From("voice_events")
	unlimited := filter
	unlimited.Limit = 0
	if err := unlimited.Apply(sb, now); err != nil {
		return nil, err
	}

	summary := &UsageSummary{KindCounts: make(map[string]int)}
	query, args := sb.Build()
	err := db.QueryRow(query, args...).Scan(
		&summary.TotalEvents,
		&summary.UniqueSounds,
		&summary.Sessions,
		&summary.AvgLoadMS,
		&summary.FirstEventAt,
		&summary.LastEventAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}

	kinds := newSelect()
	kinds.Select("kind", "COUNT(*)").From("voice_events")
	if err := unlimited.Apply(kinds, now); err != nil {
		return nil, err
	}
	kinds.GroupBy("kind")

	query, args = kinds.Build()
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kind counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		summary.KindCounts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kind counts: %w", err)
	}

	started := summary.KindCounts["started"]
	failed := summary.KindCounts["failed"]
	if started+failed > 0 {
		summary.FailureRate = float64(failed) / float64(started+failed)
	}
	if started > 0 {
		summary.EvictionRate = float64(summary.KindCounts["evicted"]) / float64(started)
	}

	return summary, nil
}

// GetSoundUsage returns per-sound statistics ordered by play count
func GetSoundUsage(db *sql.DB, filter QueryFilter) ([]SoundUsage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	sb := newSelect()
	sb.Select(
		"sound_name",
		"SUM(CASE WHEN kind = 'started' THEN 1 ELSE 0 END) AS plays",
		"SUM(CASE WHEN kind = 'completed' THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN kind = 'evicted' THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN kind IN ('stopped', 'faded') THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN kind = 'superseded' THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN kind = 'failed' THEN 1 ELSE 0 END)",
		"COALESCE(AVG(CASE WHEN kind = 'started' THEN load_ms END), 0)",
		"COALESCE(MAX(CASE WHEN kind = 'started' THEN timestamp END), 0)",
		"COALESCE(MAX(CASE WHEN kind = 'started' THEN resolved_path END), '')",
	).From("voice_events")
	if err := filter.Apply(sb, time.Now()); err != nil {
		return nil, err
	}
	sb.GroupBy("sound_name")
	sb.OrderBy("plays DESC", "sound_name")

	query, args := sb.Build()
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sound usage: %w", err)
	}
	defer rows.Close()

	var results []SoundUsage
	for rows.Next() {
		var u SoundUsage
		err := rows.Scan(&u.Name, &u.Plays, &u.Completions, &u.Evictions, &u.Stops,
			&u.Superseded, &u.Failures, &u.AvgLoadMS, &u.LastPlayed, &u.LastPath)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sound usage row: %w", err)
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sound usage rows: %w", err)
	}

	return results, nil
}

// GetFailures returns sounds that failed to load, most frequent first
func GetFailures(db *sql.DB, filter QueryFilter) ([]SoundFailure, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	sb := newSelect()
	sb.Select(
		"sound_name",
		"COUNT(*) AS failures",
		"MAX(timestamp)",
		"(SELECT e2.error FROM voice_events e2 WHERE e2.sound_name = voice_events.sound_name AND e2.kind = 'failed' ORDER BY e2.timestamp DESC, e2.id DESC LIMIT 1)",
	).From("voice_events")
	if err := filter.Apply(sb, time.Now(), sb.Equal("kind", "failed")); err != nil {
		return nil, err
	}
	sb.GroupBy("sound_name")
	sb.OrderBy("failures DESC", "sound_name")

	query, args := sb.Build()
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var results []SoundFailure
	for rows.Next() {
		var f SoundFailure
		var lastError sql.NullString
		if err := rows.Scan(&f.Name, &f.Count, &f.LastSeen, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		f.LastError = lastError.String
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure rows: %w", err)
	}

	return results, nil
}
