package tracking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/tj/go-naturaldate"
)

// QueryFilter represents common query structure for all analyze commands
type QueryFilter struct {
	// Time filters, in priority order: preset, explicit range, since, days
	StartTime  *time.Time // Start of time range (inclusive)
	EndTime    *time.Time // End of time range (inclusive)
	Since      string     // Natural language start, e.g. "3 hours ago"
	Days       int        // Last N days
	DatePreset string     // "today", "yesterday", "week", "month", "all"

	// Content filters
	Slot      string // "bus" or "channel"
	Sound     string // Logical sound name
	SessionID string

	Limit int // Maximum rows, 0 means no limit
}

// ApplyTimeFilter converts the time options to Unix second bounds. A zero
// start means no lower bound.
func (q *QueryFilter) ApplyTimeFilter(now time.Time) (startUnix, endUnix int64, err error) {
	endUnix = now.Unix()

	if q.DatePreset != "" {
		start, end, err := ParseDatePreset(q.DatePreset, now)
		if err != nil {
			return 0, 0, err
		}
		if start.IsZero() {
			return 0, end.Unix(), nil
		}
		return start.Unix(), end.Unix(), nil
	}

	if q.StartTime != nil || q.EndTime != nil {
		if q.StartTime != nil {
			startUnix = q.StartTime.Unix()
		}
		if q.EndTime != nil {
			endUnix = q.EndTime.Unix()
		}
		return startUnix, endUnix, nil
	}

	if q.Since != "" {
		start, err := ParseNaturalDate(q.Since, now)
		if err != nil {
			return 0, 0, err
		}
		return start.Unix(), endUnix, nil
	}

	if q.Days > 0 {
		return now.AddDate(0, 0, -q.Days).Unix(), endUnix, nil
	}

	return 0, endUnix, nil
}

// Conditions returns the WHERE expressions for sb, binding their arguments
func (q *QueryFilter) Conditions(sb *sqlbuilder.SelectBuilder, now time.Time) ([]string, error) {
	var conds []string

	if q.StartTime != nil || q.EndTime != nil || q.Since != "" || q.Days > 0 || q.DatePreset != "" {
		startUnix, endUnix, err := q.ApplyTimeFilter(now)
		if err != nil {
			return nil, err
		}
		if startUnix > 0 {
			conds = append(conds, sb.GreaterEqualThan("timestamp", startUnix))
		}
		conds = append(conds, sb.LessEqualThan("timestamp", endUnix))
	}

	if q.Slot != "" {
		conds = append(conds, sb.Equal("slot", q.Slot))
	}
	if q.Sound != "" {
		conds = append(conds, sb.Equal("sound_name", q.Sound))
	}
	if q.SessionID != "" {
		conds = append(conds, sb.Equal("session_id", q.SessionID))
	}

	slog.Debug("built query conditions", "conditions", conds)
	return conds, nil
}

// Apply adds the filter and any extra expressions to sb
func (q *QueryFilter) Apply(sb *sqlbuilder.SelectBuilder, now time.Time, extra ...string) error {
	conds, err := q.Conditions(sb, now)
	if err != nil {
		return err
	}
	conds = append(conds, extra...)
	if len(conds) > 0 {
		sb.Where(conds...)
	}
	if q.Limit > 0 {
		sb.Limit(q.Limit)
	}
	return nil
}

// ParseDatePreset converts date preset strings to time ranges
func ParseDatePreset(preset string, now time.Time) (start, end time.Time, err error) {
	switch preset {
	case "today":
		start = beginningOfDay(now)
		end = now
	case "yesterday":
		start = beginningOfDay(now.AddDate(0, 0, -1))
		end = beginningOfDay(now)
	case "week", "this-week":
		start = beginningOfWeek(now)
		end = now
	case "last-week":
		start = beginningOfWeek(now).AddDate(0, 0, -7)
		end = beginningOfWeek(now)
	case "month", "this-month":
		start = beginningOfMonth(now)
		end = now
	case "last-month":
		start = beginningOfMonth(now).AddDate(0, -1, 0)
		end = beginningOfMonth(now)
	case "all", "all-time":
		start = time.Time{}
		end = now
	default:
		err = fmt.Errorf("unknown preset: %s", preset)
	}
	return
}

// ParseNaturalDate parses natural language dates relative to now
func ParseNaturalDate(naturalDate string, now time.Time) (time.Time, error) {
	result, err := naturaldate.Parse(naturalDate, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse natural date '%s': %w", naturalDate, err)
	}
	slog.Debug("parsed natural language date", "input", naturalDate, "result", result)
	return result, nil
}

// beginningOfDay returns time at start of day (00:00:00)
func beginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// beginningOfWeek returns time at start of week (Monday 00:00:00)
func beginningOfWeek(t time.Time) time.Time {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	return beginningOfDay(t.AddDate(0, 0, -int(weekday-1)))
}

// beginningOfMonth returns time at start of month (1st day 00:00:00)
func beginningOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
