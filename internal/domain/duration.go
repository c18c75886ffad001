package domain

import "time"

// Duration expresses a task's intended span independent of absolute dates.
// It is embedded in Task rather than persisted as its own entity. Missing
// fields are treated as zero when comparing two values.
type Duration struct {
	Years   int `json:"years,omitempty"`
	Months  int `json:"months,omitempty"`
	Days    int `json:"days,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
}

// DurationBetween derives a Duration from an absolute date pair.
// The result is normalized so that each field is non-negative when
// end is not before start.
func DurationBetween(start, end time.Time) Duration {
	if end.Before(start) {
		start, end = end, start
	}

	years := end.Year() - start.Year()
	months := int(end.Month()) - int(start.Month())
	days := end.Day() - start.Day()
	hours := end.Hour() - start.Hour()
	minutes := end.Minute() - start.Minute()

	if minutes < 0 {
		minutes += 60
		hours--
	}
	if hours < 0 {
		hours += 24
		days--
	}
	// Borrow month lengths walking back from the end date. One borrow is
	// not always enough: a 31st-to-the-1st span crossing February still
	// owes days after absorbing February's 28.
	year, month := end.Year(), int(end.Month())
	for days < 0 {
		month--
		if month < 1 {
			month += 12
			year--
		}
		days += daysInMonth(year, time.Month(month))
		months--
	}
	if months < 0 {
		months += 12
		years--
	}

	return Duration{
		Years:   years,
		Months:  months,
		Days:    days,
		Hours:   hours,
		Minutes: minutes,
	}
}

// AddTo returns the time obtained by advancing t by the duration.
func (d Duration) AddTo(t time.Time) time.Time {
	return t.AddDate(d.Years, d.Months, d.Days).
		Add(time.Duration(d.Hours)*time.Hour + time.Duration(d.Minutes)*time.Minute)
}

// IsZero reports whether every field of the duration is zero.
func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0 && d.Hours == 0 && d.Minutes == 0
}

// Equal reports whether two durations match field by field.
func (d Duration) Equal(other Duration) bool {
	return d == other
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
