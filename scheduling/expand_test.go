package scheduling_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/scheduling"
)

func istanbul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	return loc
}

func datePtr(s string) *schedule.Date {
	d := schedule.MustParseDate(s)
	return &d
}

func weeklyRule(t *testing.T, start string) scheduling.Rule {
	return scheduling.Rule{
		Weekdays:  []time.Weekday{time.Monday},
		StartDate: schedule.MustParseDate(start),
		Hour:      18,
		Minute:    0,
		Duration:  time.Hour,
		Location:  istanbul(t),
	}
}

func TestExpand_DefaultsToTwelveWeeklyLessons(t *testing.T) {
	// GIVEN: Monday 18:00 from Monday 2026-02-02, no end date and no count
	r := weeklyRule(t, "2026-02-02")

	// WHEN
	slots, err := scheduling.Expand(r)

	// THEN: 12 lessons exactly 7 days apart, first on the start date
	require.NoError(t, err)
	require.Len(t, slots, scheduling.DefaultCount)
	assert.Equal(t, time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC), slots[0].Start.UTC())
	for i := 1; i < len(slots); i++ {
		assert.Equal(t, 7*24*time.Hour, slots[i].Start.Sub(slots[i-1].Start))
		assert.Equal(t, time.Monday, slots[i].Start.Weekday())
	}
	assert.Equal(t, time.Hour, slots[0].End.Sub(slots[0].Start))
}

func TestExpand_FirstOccurrenceOnOrAfterStart(t *testing.T) {
	// GIVEN: a Tuesday start date for a Monday series
	r := weeklyRule(t, "2026-02-03")
	r.Count = 2

	slots, err := scheduling.Expand(r)

	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, schedule.MustParseDate("2026-02-09"), schedule.DateOf(slots[0].Start))
}

func TestExpand_EndDateIsInclusive(t *testing.T) {
	r := weeklyRule(t, "2026-02-02")
	r.EndDate = datePtr("2026-02-16")

	slots, err := scheduling.Expand(r)

	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, schedule.MustParseDate("2026-02-16"), schedule.DateOf(slots[2].Start))
}

func TestExpand_CountWinsOverLaterEndDate(t *testing.T) {
	r := weeklyRule(t, "2026-02-02")
	r.EndDate = datePtr("2026-12-31")
	r.Count = 4

	slots, err := scheduling.Expand(r)

	require.NoError(t, err)
	assert.Len(t, slots, 4)
}

func TestExpand_SafetyCap(t *testing.T) {
	t.Run("large count", func(t *testing.T) {
		r := weeklyRule(t, "2026-02-02")
		r.Count = 1000

		slots, err := scheduling.Expand(r)

		require.NoError(t, err)
		assert.Len(t, slots, scheduling.MaxOccurrences)
	})

	t.Run("distant end date", func(t *testing.T) {
		r := weeklyRule(t, "2026-02-02")
		r.EndDate = datePtr("2099-01-01")

		slots, err := scheduling.Expand(r)

		require.NoError(t, err)
		assert.Len(t, slots, scheduling.MaxOccurrences)
	})
}

func TestExpand_EmptyRangeIsValidationError(t *testing.T) {
	// GIVEN: no Monday between Tuesday and Thursday
	r := weeklyRule(t, "2026-02-03")
	r.EndDate = datePtr("2026-02-05")

	_, err := scheduling.Expand(r)

	require.Error(t, err)
	assert.True(t, errors.Is(err, schedule.ErrValidation))
}

func TestExpand_Biweekly(t *testing.T) {
	r := weeklyRule(t, "2026-02-02")
	r.IntervalWeeks = 2
	r.Count = 3

	slots, err := scheduling.Expand(r)

	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "2026-02-16", schedule.DateOf(slots[1].Start).String())
	assert.Equal(t, "2026-03-02", schedule.DateOf(slots[2].Start).String())
}

func TestExpand_MultipleWeekdaysWithInterval(t *testing.T) {
	r := weeklyRule(t, "2026-02-02")
	r.Weekdays = []time.Weekday{time.Monday, time.Wednesday}
	r.IntervalWeeks = 2
	r.Count = 4

	slots, err := scheduling.Expand(r)

	require.NoError(t, err)
	var days []string
	for _, s := range slots {
		days = append(days, schedule.DateOf(s.Start).String())
	}
	assert.Equal(t, []string{"2026-02-02", "2026-02-04", "2026-02-16", "2026-02-18"}, days)
}

func TestExpand_KeepsWallClockAcrossDST(t *testing.T) {
	// GIVEN: a Berlin series spanning the 2026-03-29 clock change
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	r := weeklyRule(t, "2026-03-23")
	r.Location = berlin
	r.Count = 2

	slots, err := scheduling.Expand(r)

	// THEN: both lessons start at 18:00 local, 167 hours apart
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 18, slots[0].Start.Hour())
	assert.Equal(t, 18, slots[1].Start.Hour())
	assert.Equal(t, 167*time.Hour, slots[1].Start.Sub(slots[0].Start))
}

func TestExpand_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*scheduling.Rule)
	}{
		{"no weekdays", func(r *scheduling.Rule) { r.Weekdays = nil }},
		{"bad weekday", func(r *scheduling.Rule) { r.Weekdays = []time.Weekday{9} }},
		{"zero duration", func(r *scheduling.Rule) { r.Duration = 0 }},
		{"bad hour", func(r *scheduling.Rule) { r.Hour = 24 }},
		{"missing start", func(r *scheduling.Rule) { r.StartDate = schedule.Date{} }},
		{"negative count", func(r *scheduling.Rule) { r.Count = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := weeklyRule(t, "2026-02-02")
			tt.mutate(&r)

			_, err := scheduling.Expand(r)

			assert.True(t, schedule.IsClientError(err))
		})
	}
}
