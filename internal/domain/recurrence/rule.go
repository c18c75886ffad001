// Package recurrence implements parsing and expansion of recurrence rules.
// A rule is the RFC-5545-style `FREQ=...;INTERVAL=...;UNTIL=...|COUNT=...`
// text carried by recurring template tasks. The package is pure: identical
// inputs always produce identical outputs, and nothing here touches storage
// or clocks.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Frequency is the base unit a rule repeats over
type Frequency string

// Possible frequency values
const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// EndKind discriminates the rule's end condition
type EndKind int

// Possible end condition kinds
const (
	// EndNone means the rule repeats forever.
	EndNone EndKind = iota

	// EndUntil bounds the rule by an inclusive final instant.
	EndUntil

	// EndCount bounds the rule by a total number of occurrences.
	EndCount
)

// End is the tagged end condition of a rule. Until is only meaningful when
// Kind is EndUntil, Count only when Kind is EndCount.
type End struct {
	Kind  EndKind
	Until time.Time
	Count int
}

// Rule is the structured form of a recurrence rule string. DaysOfWeek and
// DayOfMonth refine weekly and monthly rules respectively; both are optional.
type Rule struct {
	Freq       Frequency
	Interval   int
	End        End
	DaysOfWeek []time.Weekday
	DayOfMonth int
	Timezone   string
}

// Common rule errors
var (
	// ErrInvalidRule is returned when a rule string cannot be parsed.
	// All parse failures wrap this sentinel so callers can degrade to
	// "no occurrence" at the boundary.
	ErrInvalidRule = errors.New("invalid recurrence rule")
)

// untilLayouts are the accepted UNTIL timestamp formats, tried in order.
var untilLayouts = []string{
	"20060102T150405Z",
	"20060102",
}

// weekdayNames maps RFC-5545 two-letter day codes to weekdays.
var weekdayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// weekdayCodes is the inverse of weekdayNames, used when rendering.
var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Parse converts a rule string into its structured form.
// Returns an error wrapping ErrInvalidRule if the string is malformed.
func Parse(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "RRULE:")
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty string", ErrInvalidRule)
	}

	rule := Rule{Interval: 1}
	seen := make(map[string]bool)

	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return Rule{}, fmt.Errorf("%w: malformed component %q", ErrInvalidRule, part)
		}

		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if seen[key] {
			return Rule{}, fmt.Errorf("%w: duplicate component %q", ErrInvalidRule, key)
		}
		seen[key] = true

		switch key {
		case "FREQ":
			freq := Frequency(strings.ToUpper(value))
			switch freq {
			case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
				rule.Freq = freq
			default:
				return Rule{}, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRule, value)
			}

		case "INTERVAL":
			interval, err := strconv.Atoi(value)
			if err != nil || interval < 1 {
				return Rule{}, fmt.Errorf("%w: interval %q must be a positive integer", ErrInvalidRule, value)
			}
			rule.Interval = interval

		case "UNTIL":
			until, err := parseUntil(value)
			if err != nil {
				return Rule{}, err
			}
			rule.End = End{Kind: EndUntil, Until: until}

		case "COUNT":
			count, err := strconv.Atoi(value)
			if err != nil || count < 1 {
				return Rule{}, fmt.Errorf("%w: count %q must be a positive integer", ErrInvalidRule, value)
			}
			rule.End = End{Kind: EndCount, Count: count}

		case "BYDAY":
			days, err := parseByDay(value)
			if err != nil {
				return Rule{}, err
			}
			rule.DaysOfWeek = days

		case "BYMONTHDAY":
			day, err := strconv.Atoi(value)
			if err != nil || day < 1 || day > 31 {
				return Rule{}, fmt.Errorf("%w: month day %q must be between 1 and 31", ErrInvalidRule, value)
			}
			rule.DayOfMonth = day

		case "TZID":
			if _, err := time.LoadLocation(value); err != nil {
				return Rule{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidRule, value)
			}
			rule.Timezone = value

		default:
			return Rule{}, fmt.Errorf("%w: unsupported component %q", ErrInvalidRule, key)
		}
	}

	if rule.Freq == "" {
		return Rule{}, fmt.Errorf("%w: missing FREQ", ErrInvalidRule)
	}

	if seen["UNTIL"] && seen["COUNT"] {
		return Rule{}, fmt.Errorf("%w: UNTIL and COUNT are mutually exclusive", ErrInvalidRule)
	}

	if len(rule.DaysOfWeek) > 0 && rule.Freq != FreqWeekly {
		return Rule{}, fmt.Errorf("%w: BYDAY is only valid with FREQ=WEEKLY", ErrInvalidRule)
	}

	if rule.DayOfMonth > 0 && rule.Freq != FreqMonthly {
		return Rule{}, fmt.Errorf("%w: BYMONTHDAY is only valid with FREQ=MONTHLY", ErrInvalidRule)
	}

	return rule, nil
}

// Valid reports whether the given rule string parses. It is a cheap check
// for callers that do not need the structured form.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// parseUntil parses an UNTIL value. A date-only value is interpreted as the
// end of that day in UTC, so occurrences on the named date are still
// produced but nothing after it ever is.
func parseUntil(value string) (time.Time, error) {
	for _, layout := range untilLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if layout == "20060102" {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unparsable UNTIL value %q", ErrInvalidRule, value)
}

// parseByDay parses a comma-separated BYDAY list. Duplicate days collapse;
// the result is sorted Monday-first to keep expansion order stable.
func parseByDay(value string) ([]time.Weekday, error) {
	present := make(map[time.Weekday]bool)
	for _, code := range strings.Split(value, ",") {
		day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown day code %q", ErrInvalidRule, code)
		}
		present[day] = true
	}

	days := make([]time.Weekday, 0, len(present))
	for day := range present {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return mondayOffset(days[i]) < mondayOffset(days[j])
	})
	return days, nil
}

// mondayOffset returns the day's offset from Monday, the week start used
// throughout expansion.
func mondayOffset(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// String renders the rule back into its canonical textual form.
func (r Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FREQ=%s", r.Freq)

	if r.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}

	if len(r.DaysOfWeek) > 0 {
		codes := make([]string, len(r.DaysOfWeek))
		for i, day := range r.DaysOfWeek {
			codes[i] = weekdayCodes[day]
		}
		fmt.Fprintf(&b, ";BYDAY=%s", strings.Join(codes, ","))
	}

	if r.DayOfMonth > 0 {
		fmt.Fprintf(&b, ";BYMONTHDAY=%d", r.DayOfMonth)
	}

	switch r.End.Kind {
	case EndUntil:
		fmt.Fprintf(&b, ";UNTIL=%s", r.End.Until.UTC().Format("20060102T150405Z"))
	case EndCount:
		fmt.Fprintf(&b, ";COUNT=%d", r.End.Count)
	case EndNone:
	}

	if r.Timezone != "" {
		fmt.Fprintf(&b, ";TZID=%s", r.Timezone)
	}

	return b.String()
}

// Describe returns a human-readable description of the rule for UI and log
// output. It never participates in control flow.
func (r Rule) Describe() string {
	var b strings.Builder

	unit := map[Frequency]string{
		FreqDaily:   "day",
		FreqWeekly:  "week",
		FreqMonthly: "month",
		FreqYearly:  "year",
	}[r.Freq]

	if r.Interval <= 1 {
		fmt.Fprintf(&b, "every %s", unit)
	} else {
		fmt.Fprintf(&b, "every %d %ss", r.Interval, unit)
	}

	if len(r.DaysOfWeek) > 0 {
		names := make([]string, len(r.DaysOfWeek))
		for i, day := range r.DaysOfWeek {
			names[i] = day.String()
		}
		fmt.Fprintf(&b, " on %s", strings.Join(names, ", "))
	}

	if r.DayOfMonth > 0 {
		fmt.Fprintf(&b, " on day %d", r.DayOfMonth)
	}

	switch r.End.Kind {
	case EndUntil:
		fmt.Fprintf(&b, " until %s", r.End.Until.Format("Jan 2, 2006"))
	case EndCount:
		if r.End.Count == 1 {
			b.WriteString(", once")
		} else {
			fmt.Fprintf(&b, ", %d times", r.End.Count)
		}
	case EndNone:
	}

	return b.String()
}

// location resolves the rule's timezone, falling back to UTC. The zone name
// was validated at parse time; a Rule built by hand with a bad name also
// falls back to UTC rather than failing expansion.
func (r Rule) location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
