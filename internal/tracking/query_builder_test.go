package tracking

import (
	"strings"
	"testing"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

func TestApplyTimeFilter(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	start := now.Add(-2 * time.Hour)

	testCases := []struct {
		name      string
		filter    QueryFilter
		wantStart int64
		wantEnd   int64
	}{
		{"no filter", QueryFilter{}, 0, now.Unix()},
		{"days", QueryFilter{Days: 7}, now.AddDate(0, 0, -7).Unix(), now.Unix()},
		{"today", QueryFilter{DatePreset: "today"}, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).Unix(), now.Unix()},
		{"yesterday", QueryFilter{DatePreset: "yesterday"},
			time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC).Unix(),
			time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).Unix()},
		{"week", QueryFilter{DatePreset: "week"}, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Unix(), now.Unix()},
		{"month", QueryFilter{DatePreset: "month"}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix(), now.Unix()},
		{"all", QueryFilter{DatePreset: "all"}, 0, now.Unix()},
		{"explicit start", QueryFilter{StartTime: &start}, start.Unix(), now.Unix()},
		{"preset wins over days", QueryFilter{DatePreset: "today", Days: 30},
			time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).Unix(), now.Unix()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotStart, gotEnd, err := tc.filter.ApplyTimeFilter(now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotStart != tc.wantStart || gotEnd != tc.wantEnd {
				t.Errorf("got (%d, %d), want (%d, %d)", gotStart, gotEnd, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestApplyTimeFilterInvalidPreset(t *testing.T) {
	q := QueryFilter{DatePreset: "fortnight"}
	if _, _, err := q.ApplyTimeFilter(time.Now()); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestApplyTimeFilterSince(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	q := QueryFilter{Since: "3 hours ago"}

	start, end, err := q.ApplyTimeFilter(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := now.Add(-3 * time.Hour).Unix(); start != want {
		t.Errorf("expected start %d, got %d", want, start)
	}
	if end != now.Unix() {
		t.Errorf("expected end %d, got %d", now.Unix(), end)
	}
}

func TestApplyBuildsConditions(t *testing.T) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.SetFlavor(sqlbuilder.SQLite)
	sb.Select("COUNT(*)").From("voice_events")

	q := QueryFilter{Days: 1, Slot: "bus", Sound: "Cursor1", SessionID: "s", Limit: 5}
	if err := q.Apply(sb, time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	query, args := sb.Build()
	for _, want := range []string{"timestamp >= ?", "timestamp <= ?", "slot = ?", "sound_name = ?", "session_id = ?", "LIMIT"} {
		if !strings.Contains(query, want) {
			t.Errorf("expected %q in %s", want, query)
		}
	}
	if len(args) < 5 {
		t.Errorf("expected at least 5 args, got %d: %v", len(args), args)
	}
}

func TestApplyWithoutFilters(t *testing.T) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.SetFlavor(sqlbuilder.SQLite)
	sb.Select("COUNT(*)").From("voice_events")

	if err := (&QueryFilter{}).Apply(sb, time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	query, args := sb.Build()
	if strings.Contains(query, "WHERE") {
		t.Errorf("expected no WHERE clause, got %s", query)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}
