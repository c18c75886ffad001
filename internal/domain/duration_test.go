package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationBetween(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  Duration
	}{
		{
			name:  "same instant",
			start: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			want:  Duration{},
		},
		{
			name:  "whole units",
			start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 3, 4, 5, 30, 0, 0, time.UTC),
			want:  Duration{Years: 1, Months: 2, Days: 3, Hours: 5, Minutes: 30},
		},
		{
			name:  "minute borrow cascades into hours",
			start: time.Date(2025, 6, 2, 9, 45, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 2, 11, 15, 0, 0, time.UTC),
			want:  Duration{Hours: 1, Minutes: 30},
		},
		{
			name:  "day borrow walks back across short months",
			start: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			want:  Duration{Days: 29},
		},
		{
			name:  "month borrow cascades into years",
			start: time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
			want:  Duration{Months: 3},
		},
		{
			name:  "reversed arguments normalize",
			start: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			want:  Duration{Days: 1},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DurationBetween(tc.start, tc.end))
		})
	}
}

func TestDurationAddTo(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	d := Duration{Months: 1, Hours: 3}

	// AddDate rolls Jan 31 + 1 month into March; that is the documented
	// time package behavior and AddTo does not second-guess it.
	got := d.AddTo(start)
	assert.Equal(t, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC), got)
}

func TestDurationIsZeroAndEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, Duration{}.IsZero())
	assert.False(t, Duration{Minutes: 1}.IsZero())
	assert.True(t, Duration{Days: 2}.Equal(Duration{Days: 2}))
	assert.False(t, Duration{Days: 2}.Equal(Duration{Hours: 48}))
}
