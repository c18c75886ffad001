package recurrence

import (
	"time"
)

// maxPreviewOccurrences caps Between so a preview can never walk an
// unbounded rule forever.
const maxPreviewOccurrences = 1000

// NextAfter returns the earliest occurrence of the rule, anchored at start,
// that is strictly after the given instant. The boolean is false when the
// rule has no further occurrence because its end date or end count is
// exhausted.
//
// The occurrence sequence begins at the anchor itself (the anchor is
// occurrence one) except where BYMONTHDAY or BYDAY shift the first
// occurrence; occurrences before the anchor are never produced and never
// count toward a COUNT bound.
func (r Rule) NextAfter(start, after time.Time) (time.Time, bool) {
	if r.Interval < 1 {
		r.Interval = 1
	}

	loc := r.location()
	start = start.In(loc)
	after = after.In(loc)

	if r.Freq == FreqWeekly && len(r.DaysOfWeek) > 0 {
		return r.nextWeeklyByDay(start, after)
	}

	first := r.firstIndex(start)

	k := first
	if after.After(start) {
		if lb := first + int(after.Sub(start)/r.maxIndexStep()); lb > k {
			k = lb
		}
	}

	for {
		occ := r.occurrenceAt(start, k)
		if occ.After(after) {
			if !r.withinEnd(k-first+1, occ) {
				return time.Time{}, false
			}
			return occ, true
		}
		k++
	}
}

// Between returns the occurrences of the rule that fall inside the closed
// interval [from, to], at most limit of them. It is intended for estimation
// and preview only, never for correctness-critical materialization.
func (r Rule) Between(start, from, to time.Time, limit int) []time.Time {
	if limit <= 0 || limit > maxPreviewOccurrences {
		limit = maxPreviewOccurrences
	}

	var out []time.Time
	cursor := from.Add(-time.Nanosecond)
	for len(out) < limit {
		occ, ok := r.NextAfter(start, cursor)
		if !ok || occ.After(to) {
			break
		}
		out = append(out, occ)
		cursor = occ
	}
	return out
}

// withinEnd reports whether the n-th occurrence (1-based) at the given
// instant is still inside the rule's end condition.
func (r Rule) withinEnd(n int, occ time.Time) bool {
	switch r.End.Kind {
	case EndCount:
		return n <= r.End.Count
	case EndUntil:
		return !occ.After(r.End.Until)
	case EndNone:
		return true
	default:
		return true
	}
}

// occurrenceAt computes the k-th element (0-based) of the rule's occurrence
// sequence from the anchor. Month arithmetic clamps to the last day of short
// months while keeping the anchor day, so a monthly rule anchored on Jan 31
// yields Feb 29 (leap) or Feb 28 and returns to the 31st in March.
func (r Rule) occurrenceAt(start time.Time, k int) time.Time {
	switch r.Freq {
	case FreqDaily:
		return start.AddDate(0, 0, k*r.Interval)
	case FreqWeekly:
		return start.AddDate(0, 0, 7*k*r.Interval)
	case FreqMonthly:
		anchorDay := start.Day()
		if r.DayOfMonth > 0 {
			anchorDay = r.DayOfMonth
		}
		return addMonthsClamped(start, k*r.Interval, anchorDay)
	case FreqYearly:
		return addMonthsClamped(start, 12*k*r.Interval, start.Day())
	default:
		return start.AddDate(0, 0, k*r.Interval)
	}
}

// firstIndex returns the index of the first sequence element at or after the
// anchor. Only BYMONTHDAY can push the zeroth element before the anchor.
func (r Rule) firstIndex(start time.Time) int {
	if r.Freq == FreqMonthly && r.DayOfMonth > 0 && r.occurrenceAt(start, 0).Before(start) {
		return 1
	}
	return 0
}

// maxIndexStep returns an upper bound on the real time between consecutive
// sequence elements. Dividing the elapsed span by it gives an index that is
// never past the answer, so the forward walk stays minimal.
func (r Rule) maxIndexStep() time.Duration {
	day := 25 * time.Hour // calendar day plus DST slack
	switch r.Freq {
	case FreqDaily:
		return time.Duration(r.Interval) * day
	case FreqWeekly:
		return time.Duration(7*r.Interval) * day
	case FreqMonthly:
		return time.Duration(32*r.Interval) * day
	case FreqYearly:
		return time.Duration(367*r.Interval) * day
	default:
		return day
	}
}

// nextWeeklyByDay expands a weekly rule restricted to specific weekdays.
// Occurrences are the selected weekdays of every interval-th week, carrying
// the anchor's clock time; weeks start on Monday.
func (r Rule) nextWeeklyByDay(start, after time.Time) (time.Time, bool) {
	weekAnchor := start.AddDate(0, 0, -mondayOffset(start.Weekday()))

	// COUNT requires walking from the first occurrence to keep the
	// ordinal honest; the walk is bounded by the count itself.
	fromBlock := 0
	if r.End.Kind != EndCount && after.After(weekAnchor) {
		span := time.Duration(7*r.Interval) * 25 * time.Hour
		if lb := int(after.Sub(weekAnchor)/span) - 1; lb > 0 {
			fromBlock = lb
		}
	}

	n := 0
	for block := fromBlock; ; block++ {
		blockStart := weekAnchor.AddDate(0, 0, 7*block*r.Interval)
		for _, day := range r.DaysOfWeek {
			occ := blockStart.AddDate(0, 0, mondayOffset(day))
			if occ.Before(start) {
				continue
			}
			n++
			if !occ.After(after) {
				continue
			}
			if !r.withinEnd(n, occ) {
				return time.Time{}, false
			}
			return occ, true
		}
		if r.End.Kind == EndCount && n >= r.End.Count {
			return time.Time{}, false
		}
		if r.End.Kind == EndUntil && blockStart.After(r.End.Until) {
			return time.Time{}, false
		}
	}
}

// addMonthsClamped advances t by the given number of months, placing the
// result on anchorDay or the last day of the target month, whichever is
// earlier. Unlike AddDate it never rolls over into the following month.
func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	year := t.Year()
	monthIndex := int(t.Month()) - 1 + months
	year += monthIndex / 12
	monthIndex %= 12
	if monthIndex < 0 {
		monthIndex += 12
		year--
	}
	month := time.Month(monthIndex + 1)

	day := anchorDay
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// lastDayOfMonth returns the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
