package finance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

func at(id, student string, start time.Time, status schedule.LessonStatus, fee, paid string) schedule.Lesson {
	l := billed(student, status, "1", fee, paid)
	l.ID = schedule.LessonID(id)
	l.StartAt = start
	l.EndAt = start.Add(time.Hour)
	return l
}

func dashboardFixture(t *testing.T) ([]schedule.Lesson, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	local := func(day string, hour, minute int) time.Time {
		return schedule.MustParseDate(day).At(hour, minute, loc)
	}
	return []schedule.Lesson{
		at("mon", "s1", local("2026-02-09", 18, 0), schedule.StatusDone, "500", "500"),
		at("sun-late", "s2", local("2026-02-15", 23, 30), schedule.StatusPlanned, "300", "0"),
		at("cancelled", "s1", local("2026-02-10", 18, 0), schedule.StatusCancelled, "0", "0"),
		at("january", "s1", local("2026-01-20", 18, 0), schedule.StatusDone, "400", "100"),
		at("next-week", "s1", local("2026-02-16", 0, 30), schedule.StatusPlanned, "200", "50"),
		at("early-feb", "s1", local("2026-02-02", 18, 0), schedule.StatusDone, "100", "0"),
	}, loc
}

func TestWeekOf(t *testing.T) {
	wed := schedule.MustParseDate("2026-02-11")

	first, last := finance.WeekOf(wed, time.Monday)
	assert.Equal(t, "2026-02-09", first.String())
	assert.Equal(t, "2026-02-15", last.String())

	first, last = finance.WeekOf(wed, time.Sunday)
	assert.Equal(t, "2026-02-08", first.String())
	assert.Equal(t, "2026-02-14", last.String())

	// A week start that falls on the day itself.
	first, _ = finance.WeekOf(wed, time.Wednesday)
	assert.Equal(t, "2026-02-11", first.String())
}

func TestDashboard_CurrentWeekAndMonth(t *testing.T) {
	// GIVEN lessons around a Wednesday in Istanbul, weeks starting Monday
	lessons, loc := dashboardFixture(t)
	now := schedule.MustParseDate("2026-02-11").At(10, 0, loc)

	// WHEN the summary is computed with a seven day overdue window
	sum := finance.Dashboard(lessons, map[schedule.StudentID]string{"s1": "Ayşe"}, finance.DashboardParams{
		WeekStart:   time.Monday,
		OverdueDays: 7,
		Now:         now,
		Location:    loc,
	})

	// THEN the week is local Monday to Sunday and cancelled lessons are ignored
	assert.Equal(t, "2026-02-09", sum.WeekStart.String())
	assert.Equal(t, "2026-02-15", sum.WeekEnd.String())
	require.Len(t, sum.WeekLessons, 2)
	assert.Equal(t, schedule.LessonID("mon"), sum.WeekLessons[0].Lesson.ID)
	assert.Equal(t, "Ayşe", sum.WeekLessons[0].StudentName)
	assert.Equal(t, schedule.LessonID("sun-late"), sum.WeekLessons[1].Lesson.ID)
	assert.Equal(t, "Unknown", sum.WeekLessons[1].StudentName)

	assert.Equal(t, "500.00", sum.WeeklyPaid.StringFixed(2))
	assert.Equal(t, "550.00", sum.MonthlyPaid.StringFixed(2))
	assert.Equal(t, "1100.00", sum.MonthlyPotential.StringFixed(2))
	assert.Equal(t, "850.00", sum.ExpectedReceivables.StringFixed(2))

	// AND only balances older than the window count as overdue
	assert.Equal(t, "400.00", sum.OverdueReceivables.StringFixed(2))
	assert.Equal(t, 2, sum.OverdueCount)
}

func TestDashboard_ExplicitWeekAndSundayStart(t *testing.T) {
	// GIVEN the same lessons
	lessons, loc := dashboardFixture(t)
	now := schedule.MustParseDate("2026-02-11").At(10, 0, loc)

	// WHEN a later week is requested with weeks starting Sunday
	sum := finance.Dashboard(lessons, nil, finance.DashboardParams{
		WeekOf:    schedule.MustParseDate("2026-02-17"),
		WeekStart: time.Sunday,
		Now:       now,
		Location:  loc,
	})

	// THEN the week runs Sunday to Saturday around the requested day
	assert.Equal(t, "2026-02-15", sum.WeekStart.String())
	assert.Equal(t, "2026-02-21", sum.WeekEnd.String())
	require.Len(t, sum.WeekLessons, 2)
	assert.Equal(t, schedule.LessonID("sun-late"), sum.WeekLessons[0].Lesson.ID)
	assert.Equal(t, schedule.LessonID("next-week"), sum.WeekLessons[1].Lesson.ID)
	assert.Equal(t, "50.00", sum.WeeklyPaid.StringFixed(2))

	// AND the month still follows today
	assert.Equal(t, "1100.00", sum.MonthlyPotential.StringFixed(2))
}

func TestDashboard_NoLessons(t *testing.T) {
	sum := finance.Dashboard(nil, nil, finance.DashboardParams{Now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})

	assert.True(t, sum.ExpectedReceivables.IsZero())
	assert.NotNil(t, sum.WeekLessons)
	assert.Empty(t, sum.WeekLessons)
	assert.Equal(t, 0, sum.OverdueCount)
}
