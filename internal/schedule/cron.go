// ABOUTME: Dependency-free 5-field cron parser: GetNextOccurrence/IsDue as pure functions of (expr, time)
// ABOUTME: Deliberately not robfig/cron, whose tick-driven API has no pure "next occurrence after t"

package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ritualflow/engine/pkg/types"
)

// field bounds: minute hour dom month dow
var fieldBounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day-of-month
	{1, 12}, // month
	{0, 6},  // day-of-week, 0 = Sunday
}

// Schedule is a parsed 5-field cron expression, ready for repeated
// GetNextOccurrence queries without re-parsing.
type Schedule struct {
	expr       string
	minute     map[int]bool
	hour       map[int]bool
	dom        map[int]bool
	month      map[int]bool
	dow        map[int]bool
	domWild    bool
	dowWild    bool
}

// Parse validates and compiles a standard 5-field cron expression
// ("minute hour day-of-month month day-of-week"), supporting `*`, lists
// (`,`), ranges (`-`), and steps (`/`).
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, types.NewValidationError("cron", fmt.Sprintf("expected 5 fields, got %d", len(fields)))
	}

	sets := make([]map[int]bool, 5)
	for i, f := range fields {
		set, err := parseField(f, fieldBounds[i][0], fieldBounds[i][1])
		if err != nil {
			return nil, types.NewValidationError("cron", fmt.Sprintf("field %d (%q): %v", i, f, err))
		}
		sets[i] = set
	}

	return &Schedule{
		expr:    expr,
		minute:  sets[0],
		hour:    sets[1],
		dom:     sets[2],
		month:   sets[3],
		dow:     sets[4],
		domWild: fields[2] == "*",
		dowWild: fields[4] == "*",
	}, nil
}

func parseField(f string, lo, hi int) (map[int]bool, error) {
	out := make(map[int]bool)
	for _, part := range strings.Split(f, ",") {
		if err := parsePart(part, lo, hi, out); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	return out, nil
}

func parsePart(part string, lo, hi int, out map[int]bool) error {
	step := 1
	rangePart := part
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		rangePart = part[:idx]
		s, err := strconv.Atoi(part[idx+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step %q", part[idx+1:])
		}
		step = s
	}

	start, end := lo, hi
	switch {
	case rangePart == "*":
		// full range, already set
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		if len(bounds) != 2 {
			return fmt.Errorf("invalid range %q", rangePart)
		}
		a, err1 := strconv.Atoi(bounds[0])
		b, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil || a > b {
			return fmt.Errorf("invalid range %q", rangePart)
		}
		start, end = a, b
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value %q", rangePart)
		}
		start, end = v, v
	}

	if start < lo || end > hi {
		return fmt.Errorf("value out of range [%d,%d]", lo, hi)
	}
	for v := start; v <= end; v += step {
		out[v] = true
	}
	return nil
}

// matches reports whether t satisfies the schedule. Day-of-month and
// day-of-week combine with OR semantics when both are restricted (standard
// cron behavior): a t matching either field's restriction qualifies.
func (s *Schedule) matches(t time.Time) bool {
	if !s.minute[t.Minute()] || !s.hour[t.Hour()] || !s.month[int(t.Month())] {
		return false
	}
	domMatch := s.dom[t.Day()]
	dowMatch := s.dow[int(t.Weekday())]
	switch {
	case s.domWild && s.dowWild:
		return true
	case s.domWild:
		return dowMatch
	case s.dowWild:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// maxScanHorizon bounds the next-occurrence search so a pathological
// expression (e.g. Feb 30, never satisfiable) terminates instead of
// scanning forever.
const maxScanHorizon = 4 * 366 * 24 * 60 // ~4 years of minutes

// Next returns the next minute-boundary time strictly after from (in UTC)
// that satisfies the schedule, and true; or the zero time and false if no
// occurrence was found within the scan horizon.
func (s *Schedule) Next(from time.Time) (time.Time, bool) {
	t := from.UTC().Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < maxScanHorizon; i++ {
		if s.matches(t) {
			return t, true
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}

// GetNextOccurrence parses expr and returns the next UTC occurrence
// strictly after from, or ok=false if expr is invalid or unsatisfiable.
func GetNextOccurrence(expr string, from time.Time) (occurrence time.Time, ok bool) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(from)
}

// IsDue reports whether a trigger with the given cron expression and last
// firing time (nil if never fired) should fire at now. A never-fired
// trigger is due once its first occurrence after the Unix epoch has
// arrived; otherwise it is due once the occurrence following lastRun has
// arrived. A long-down scheduler catches up to the nearest due time this
// way, not once per missed tick.
func IsDue(expr string, lastRun *time.Time, now time.Time) bool {
	from := time.Unix(0, 0).UTC()
	if lastRun != nil {
		from = *lastRun
	}
	next, ok := GetNextOccurrence(expr, from)
	if !ok {
		return false
	}
	return !next.After(now)
}
