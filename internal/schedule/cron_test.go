package schedule

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expr string) *Schedule {
	t.Helper()
	s, err := Parse(expr)
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", expr, err)
	}
	return s
}

func TestParse_RejectsWrongFieldCount(t *testing.T) {
	if _, err := Parse("* * *"); err == nil {
		t.Fatal("expected an error for a 3-field expression")
	}
}

func TestParse_RejectsOutOfRangeValue(t *testing.T) {
	if _, err := Parse("60 * * * *"); err == nil {
		t.Fatal("expected an error for minute=60")
	}
}

func TestNext_EveryMinute(t *testing.T) {
	s := mustParse(t, "* * * * *")
	from := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	next, ok := s.Next(from)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	want := time.Date(2026, 3, 5, 10, 31, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_DailyAtNine(t *testing.T) {
	s := mustParse(t, "0 9 * * *")
	from := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	next, ok := s.Next(from)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	want := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_WeekdaysRollsPastWeekend(t *testing.T) {
	// Friday 2026-03-06 is a weekday; lastRun Friday 09:00 should roll to Monday.
	s := mustParse(t, "0 9 * * 1-5")
	from := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC) // Friday
	next, ok := s.Next(from)
	if !ok {
		t.Fatal("expected an occurrence")
	}
	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC) // Monday
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNext_StrictMonotonic(t *testing.T) {
	s := mustParse(t, "*/15 * * * *")
	t0 := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	n1, ok1 := s.Next(t0)
	n2, ok2 := s.Next(n1)
	if !ok1 || !ok2 {
		t.Fatal("expected occurrences")
	}
	if !n2.After(n1) {
		t.Errorf("expected GetNextOccurrence(GetNextOccurrence(t)) > GetNextOccurrence(t): n1=%v n2=%v", n1, n2)
	}
}

func TestGetNextOccurrence_InvalidExprReturnsNotOk(t *testing.T) {
	if _, ok := GetNextOccurrence("not a cron", time.Now()); ok {
		t.Fatal("expected ok=false for an invalid expression")
	}
}

func TestIsDue_NeverFiredAndOccurrenceInPast(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 1, 0, 0, time.UTC)
	if !IsDue("0 9 * * *", nil, now) {
		t.Error("expected due: first daily occurrence already passed")
	}
}

func TestIsDue_NeverFiredIsDueBeforeTodaysOccurrence(t *testing.T) {
	// A never-fired trigger is measured from the Unix epoch, whose first 09:00
	// occurrence passed long ago, so it is due even at 08:00 today.
	now := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	if !IsDue("0 9 * * *", nil, now) {
		t.Error("expected due: the first occurrence after the epoch has passed")
	}
}

func TestIsDue_RollForwardAfterLongDowntime(t *testing.T) {
	lastRun := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC) // Friday 09:00
	now := time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC)    // Friday 17:00
	if IsDue("0 9 * * 1-5", &lastRun, now) {
		t.Error("expected not due until the following Monday")
	}

	nowMonday := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !IsDue("0 9 * * 1-5", &lastRun, nowMonday) {
		t.Error("expected due at Monday 09:00")
	}
}
