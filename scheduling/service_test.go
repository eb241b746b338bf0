package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/schedule/store"
	"github.com/tutordesk/lesson-engine/scheduling"
)

const owner = schedule.OwnerID("owner-1")

// fixture wires a Service over the memory store with a fixed clock.
type fixture struct {
	ctx     context.Context
	store   *store.Memory
	svc     *scheduling.Service
	student schedule.Student
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	mem := store.NewMemory()
	f := &fixture{
		ctx:   context.Background(),
		store: mem,
		svc:   scheduling.NewService(mem, nil, scheduling.WithClock(func() time.Time { return now })),
	}
	st, err := f.svc.CreateStudent(f.ctx, owner, scheduling.StudentInput{
		FullName:          "Ayşe Yılmaz",
		Subject:           "Matematik",
		HourlyRateDefault: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	f.student = *st
	return f
}

func (f *fixture) weekly(t *testing.T, start string, count int) *scheduling.SeriesResult {
	t.Helper()
	res, err := f.svc.CreateWeekly(f.ctx, owner, scheduling.WeeklyInput{
		StudentID:     f.student.ID,
		Weekday:       time.Monday,
		Time:          "18:00",
		DurationHours: decimal.NewFromInt(1),
		StartDate:     schedule.MustParseDate(start),
		Count:         &count,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) series(t *testing.T, id schedule.RecurrenceID) []schedule.Lesson {
	t.Helper()
	lessons, err := f.store.ListLessonsByRecurrence(f.ctx, owner, id)
	require.NoError(t, err)
	return lessons
}

// =============================================================================
// CREATE WEEKLY
// =============================================================================

func TestCreateWeekly_PersistsSeries(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))

	// GIVEN: no end date and no count
	res, err := f.svc.CreateWeekly(f.ctx, owner, scheduling.WeeklyInput{
		StudentID:     f.student.ID,
		Weekday:       time.Monday,
		Time:          "18:00",
		DurationHours: decimal.RequireFromString("1.5"),
		StartDate:     schedule.MustParseDate("2026-02-02"),
	})

	// THEN: 12 lessons billed at the student's default rate
	require.NoError(t, err)
	assert.Len(t, res.Lessons, 12)

	rec, err := f.store.GetRecurrence(f.ctx, owner, res.Recurrence.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, schedule.FrequencyWeekly, rec.Frequency)
	assert.Equal(t, "2026-04-20", rec.EndDate.String())
	assert.Equal(t, 12, *rec.RepeatCount)
	assert.Equal(t, "Europe/Istanbul", rec.Timezone)

	stored := f.series(t, res.Recurrence.ID)
	require.Len(t, stored, 12)
	for _, l := range stored {
		assert.Equal(t, schedule.StatusPlanned, l.Status)
		assert.Equal(t, schedule.PaymentUnpaid, l.PaymentStatus)
		assert.Equal(t, "750.00", l.FeeTotal.StringFixed(2))
	}
}

func TestCreateWeekly_RateFallsBackToSettings(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	st, err := f.svc.CreateStudent(f.ctx, owner, scheduling.StudentInput{FullName: "Rate Less"})
	require.NoError(t, err)

	settings := schedule.DefaultSettings(owner)
	settings.DefaultHourlyRate = decimal.NewFromInt(300)
	settings.DefaultNoShowRule = schedule.NoShowHalf
	_, err = f.svc.SaveSettings(f.ctx, settings)
	require.NoError(t, err)

	count := 1
	res, err := f.svc.CreateWeekly(f.ctx, owner, scheduling.WeeklyInput{
		StudentID:     st.ID,
		Weekday:       time.Monday,
		Time:          "10:00",
		DurationHours: decimal.NewFromInt(2),
		StartDate:     schedule.MustParseDate("2026-02-02"),
		Count:         &count,
	})

	require.NoError(t, err)
	require.Len(t, res.Lessons, 1)
	assert.Equal(t, "600.00", res.Lessons[0].FeeTotal.StringFixed(2))
	assert.Equal(t, schedule.NoShowHalf, res.Lessons[0].NoShowRule)
}

func TestCreateWeekly_UnknownStudent(t *testing.T) {
	f := newFixture(t, time.Now())

	_, err := f.svc.CreateWeekly(f.ctx, "someone-else", scheduling.WeeklyInput{
		StudentID:     f.student.ID,
		Weekday:       time.Monday,
		Time:          "18:00",
		DurationHours: decimal.NewFromInt(1),
		StartDate:     schedule.MustParseDate("2026-02-02"),
	})

	assert.True(t, schedule.IsNotFound(err))
}

func TestCreateWeekly_EmptyRangeLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, time.Now())

	_, err := f.svc.CreateWeekly(f.ctx, owner, scheduling.WeeklyInput{
		StudentID:     f.student.ID,
		Weekday:       time.Monday,
		Time:          "18:00",
		DurationHours: decimal.NewFromInt(1),
		StartDate:     schedule.MustParseDate("2026-02-03"),
		EndDate:       datePtr("2026-02-05"),
	})

	require.True(t, schedule.IsClientError(err))
	lessons, err := f.store.ListLessons(f.ctx, owner, schedule.LessonFilter{})
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

// =============================================================================
// APPLY SCOPE
// =============================================================================

func TestApplyScope_StandaloneLessonUpdatesOneRow(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	f.weekly(t, "2026-02-02", 3)

	start := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)
	solo, err := f.svc.CreateLesson(f.ctx, owner, scheduling.LessonInput{
		StudentID: f.student.ID,
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
	})
	require.NoError(t, err)

	done := schedule.StatusDone
	res, err := f.svc.ApplyScope(f.ctx, owner, solo.ID, scheduling.ScopeAll, scheduling.Patch{Status: &done})

	require.NoError(t, err)
	assert.Equal(t, scheduling.ScopeThis, res.Scope)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Empty(t, res.Warnings)
}

func TestApplyScope_AllLeavesOtherSeriesUntouched(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	first := f.weekly(t, "2026-02-02", 4)
	other := f.weekly(t, "2026-02-02", 4)

	res, err := f.svc.ApplyScope(f.ctx, owner, first.Lessons[2].ID, scheduling.ScopeAll,
		scheduling.Patch{HourlyRate: dec("800")})

	require.NoError(t, err)
	assert.Equal(t, 4, res.UpdatedCount)
	for _, l := range f.series(t, first.Recurrence.ID) {
		assert.Equal(t, "800.00", l.FeeTotal.StringFixed(2))
	}
	for _, l := range f.series(t, other.Recurrence.ID) {
		assert.Equal(t, "500.00", l.FeeTotal.StringFixed(2))
	}
}

func TestApplyScope_ThisAndFutureDropsDatetimes(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	created := f.weekly(t, "2026-02-02", 4)
	before := f.series(t, created.Recurrence.ID)

	// GIVEN: a patch that moves the time and changes the rate
	moved := before[1].StartAt.Add(2 * time.Hour)
	res, err := f.svc.ApplyScope(f.ctx, owner, before[1].ID, scheduling.ScopeThisAndFuture,
		scheduling.Patch{StartAt: &moved, HourlyRate: dec("700")})

	// THEN: rate applies from the selected lesson on, times stay put
	require.NoError(t, err)
	assert.Equal(t, 3, res.UpdatedCount)
	require.Len(t, res.Warnings, 1)

	after := f.series(t, created.Recurrence.ID)
	for i := range after {
		assert.Equal(t, before[i].StartAt, after[i].StartAt)
		assert.Equal(t, before[i].EndAt, after[i].EndAt)
	}
	assert.Equal(t, "500.00", after[0].FeeTotal.StringFixed(2))
	assert.Equal(t, "700.00", after[1].FeeTotal.StringFixed(2))
	assert.Equal(t, "700.00", after[3].FeeTotal.StringFixed(2))
}

func TestApplyScope_KeepsEachLessonsPayment(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	created := f.weekly(t, "2026-02-02", 2)

	paid := schedule.PaymentPaid
	_, err := f.svc.ApplyScope(f.ctx, owner, created.Lessons[0].ID, scheduling.ScopeThis,
		scheduling.Patch{PaymentStatus: &paid})
	require.NoError(t, err)

	_, err = f.svc.ApplyScope(f.ctx, owner, created.Lessons[0].ID, scheduling.ScopeAll,
		scheduling.Patch{HourlyRate: dec("600")})
	require.NoError(t, err)

	after := f.series(t, created.Recurrence.ID)
	assert.Equal(t, schedule.PaymentPaid, after[0].PaymentStatus)
	assert.Equal(t, "600.00", after[0].AmountPaid.StringFixed(2))
	assert.Equal(t, schedule.PaymentUnpaid, after[1].PaymentStatus)
	assert.True(t, after[1].AmountPaid.IsZero())
}

func TestApplyScope_Errors(t *testing.T) {
	f := newFixture(t, time.Now())
	created := f.weekly(t, "2026-02-02", 1)

	_, err := f.svc.ApplyScope(f.ctx, owner, created.Lessons[0].ID, scheduling.ScopeThis, scheduling.Patch{})
	assert.True(t, schedule.IsClientError(err))

	_, err = f.svc.ApplyScope(f.ctx, owner, "missing", scheduling.ScopeThis, scheduling.Patch{HourlyRate: dec("1")})
	assert.True(t, schedule.IsNotFound(err))

	_, err = f.svc.ApplyScope(f.ctx, "intruder", created.Lessons[0].ID, scheduling.ScopeThis, scheduling.Patch{HourlyRate: dec("1")})
	assert.True(t, schedule.IsNotFound(err))

	ghost := schedule.StudentID("ghost")
	_, err = f.svc.ApplyScope(f.ctx, owner, created.Lessons[0].ID, scheduling.ScopeThis, scheduling.Patch{StudentID: &ghost})
	assert.True(t, schedule.IsNotFound(err))
}

func TestApplyScope_InvalidPatchChangesNothing(t *testing.T) {
	f := newFixture(t, time.Now())
	created := f.weekly(t, "2026-02-02", 3)
	before := f.series(t, created.Recurrence.ID)

	zero := dec("0")
	_, err := f.svc.ApplyScope(f.ctx, owner, before[0].ID, scheduling.ScopeAll, scheduling.Patch{DurationHours: zero})

	require.Error(t, err)
	assert.Equal(t, before, f.series(t, created.Recurrence.ID))
}

// =============================================================================
// STOP
// =============================================================================

func TestStop_NextCancelsFutureLessons(t *testing.T) {
	// GIVEN: five Monday lessons from 2026-02-02; now is Tuesday 2026-02-10
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	created := f.weekly(t, "2026-02-02", 5)

	// WHEN
	res, err := f.svc.Stop(f.ctx, owner, scheduling.StopInput{RecurrenceID: created.Recurrence.ID, Mode: scheduling.StopNext})

	// THEN: the three lessons from 2026-02-16 on are cancelled and unbilled
	require.NoError(t, err)
	assert.Equal(t, 3, res.CancelledCount)
	assert.Equal(t, time.Date(2026, 2, 16, 15, 0, 0, 0, time.UTC), res.StopEffectiveAt.UTC())
	assert.NotEmpty(t, res.Message)

	lessons := f.series(t, created.Recurrence.ID)
	require.Len(t, lessons, 5)
	for i, l := range lessons {
		if i < 2 {
			assert.Equal(t, schedule.StatusPlanned, l.Status)
			continue
		}
		assert.Equal(t, schedule.StatusCancelled, l.Status)
		assert.True(t, l.FeeTotal.IsZero())
		assert.True(t, l.AmountPaid.IsZero())
		assert.Equal(t, schedule.PaymentUnpaid, l.PaymentStatus)
	}

	rec, err := f.store.GetRecurrence(f.ctx, owner, created.Recurrence.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-15", rec.EndDate.String())
	assert.NotNil(t, rec.StoppedAt)
}

func TestStop_DateCancelsOnAndAfter(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	created := f.weekly(t, "2026-02-02", 5)

	res, err := f.svc.Stop(f.ctx, owner, scheduling.StopInput{
		RecurrenceID: created.Recurrence.ID,
		Mode:         scheduling.StopDate,
		StopDate:     datePtr("2026-02-23"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, res.CancelledCount)
	lessons := f.series(t, created.Recurrence.ID)
	assert.Equal(t, schedule.StatusPlanned, lessons[2].Status)
	assert.Equal(t, schedule.StatusCancelled, lessons[3].Status)
	assert.Equal(t, schedule.StatusCancelled, lessons[4].Status)

	rec, err := f.store.GetRecurrence(f.ctx, owner, created.Recurrence.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-23", rec.EndDate.String())
}

func TestStop_NoFutureLessons(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	created := f.weekly(t, "2026-02-02", 2)

	res, err := f.svc.Stop(f.ctx, owner, scheduling.StopInput{RecurrenceID: created.Recurrence.ID, Mode: scheduling.StopNext})

	require.NoError(t, err)
	assert.Zero(t, res.CancelledCount)
	assert.Equal(t, now, res.StopEffectiveAt)
	assert.Equal(t, "2026-06-09", res.EndDate.String())
}

func TestStop_IsIdempotent(t *testing.T) {
	f := newFixture(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	created := f.weekly(t, "2026-02-02", 5)
	in := scheduling.StopInput{RecurrenceID: created.Recurrence.ID, Mode: scheduling.StopDate, StopDate: datePtr("2026-02-23")}

	_, err := f.svc.Stop(f.ctx, owner, in)
	require.NoError(t, err)
	once := f.series(t, created.Recurrence.ID)

	res, err := f.svc.Stop(f.ctx, owner, in)

	require.NoError(t, err)
	assert.Zero(t, res.CancelledCount)
	assert.Equal(t, once, f.series(t, created.Recurrence.ID))
}

func TestStop_Errors(t *testing.T) {
	f := newFixture(t, time.Now())
	created := f.weekly(t, "2026-02-02", 1)

	_, err := f.svc.Stop(f.ctx, owner, scheduling.StopInput{RecurrenceID: created.Recurrence.ID, Mode: scheduling.StopDate})
	assert.True(t, schedule.IsClientError(err))

	_, err = f.svc.Stop(f.ctx, "intruder", scheduling.StopInput{RecurrenceID: created.Recurrence.ID, Mode: scheduling.StopNext})
	assert.True(t, errors.Is(err, schedule.ErrNotFound))
}

// =============================================================================
// SUPPORTING OPERATIONS
// =============================================================================

func TestListSeries_ActiveFirst(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	stopped := f.weekly(t, "2026-02-02", 4)
	active := f.weekly(t, "2026-02-02", 4)

	_, err := f.svc.Stop(f.ctx, owner, scheduling.StopInput{
		RecurrenceID: stopped.Recurrence.ID,
		Mode:         scheduling.StopDate,
		StopDate:     datePtr("2026-02-05"),
	})
	require.NoError(t, err)

	got, err := f.svc.ListSeries(f.ctx, owner, f.student.ID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, active.Recurrence.ID, got[0].Recurrence.ID)
	assert.True(t, got[0].IsActive)
	assert.Equal(t, 2, got[0].FutureCount)
	require.NotNil(t, got[0].NextLessonAt)
	assert.Equal(t, time.Date(2026, 2, 16, 15, 0, 0, 0, time.UTC), got[0].NextLessonAt.UTC())
	assert.False(t, got[1].IsActive)
	assert.Zero(t, got[1].FutureCount)
}

func TestStudentBalanceAndReport(t *testing.T) {
	f := newFixture(t, time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC))
	created := f.weekly(t, "2026-02-02", 3)

	done := schedule.StatusDone
	paid := schedule.PaymentPaid
	_, err := f.svc.UpdateLesson(f.ctx, owner, created.Lessons[0].ID, scheduling.Patch{Status: &done, PaymentStatus: &paid})
	require.NoError(t, err)

	detail, err := f.svc.GetStudent(f.ctx, owner, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "1500.00", detail.Balance.TotalFee.StringFixed(2))
	assert.Equal(t, "500.00", detail.Balance.TotalPaid.StringFixed(2))
	assert.Equal(t, "1000.00", detail.Balance.Remaining.StringFixed(2))

	report, err := f.svc.MonthlyReport(f.ctx, owner, scheduling.ReportRange{})
	require.NoError(t, err)
	assert.Equal(t, "3.0", report.TotalLessonHours.StringFixed(1))
	assert.Equal(t, "500.00", report.Collected.StringFixed(2))
	require.Len(t, report.TopStudents, 1)
	assert.Equal(t, "Ayşe Yılmaz", report.TopStudents[0].StudentName)
}

func TestDeleteLesson(t *testing.T) {
	f := newFixture(t, time.Now())
	created := f.weekly(t, "2026-02-02", 2)

	require.NoError(t, f.svc.DeleteLesson(f.ctx, owner, created.Lessons[0].ID))

	_, err := f.svc.GetLesson(f.ctx, owner, created.Lessons[0].ID)
	assert.True(t, schedule.IsNotFound(err))
	assert.True(t, schedule.IsNotFound(f.svc.DeleteLesson(f.ctx, owner, created.Lessons[0].ID)))
}

func TestSaveSettings_Validation(t *testing.T) {
	f := newFixture(t, time.Now())
	st := schedule.DefaultSettings(owner)
	st.Timezone = "Mars/Olympus"

	_, err := f.svc.SaveSettings(f.ctx, st)

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "timezone", verr.Field)
}

func TestDefaultTimezone_AppliesUntilSettingsSaved(t *testing.T) {
	// GIVEN: a service configured for Berlin and an owner with no saved settings
	mem := store.NewMemory()
	now := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	svc := scheduling.NewService(mem, nil,
		scheduling.WithClock(func() time.Time { return now }),
		scheduling.WithDefaultTimezone("Europe/Berlin"),
	)
	ctx := context.Background()

	// WHEN
	st, err := svc.GetSettings(ctx, owner)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", st.Timezone)

	// WHEN: the owner saves their own zone
	st.Timezone = schedule.DefaultTimezone
	_, err = svc.SaveSettings(ctx, st)
	require.NoError(t, err)

	// THEN: the saved zone wins
	st, err = svc.GetSettings(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultTimezone, st.Timezone)
	assert.False(t, st.UpdatedAt.IsZero())
}

func TestSaveSettings_ReturnsStoredRow(t *testing.T) {
	f := newFixture(t, time.Now())
	st := schedule.DefaultSettings(owner)
	st.WeekStart = time.Sunday

	// WHEN
	saved, err := f.svc.SaveSettings(f.ctx, st)

	// THEN: the result carries the stamp written by the store
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.Equal(t, time.Sunday, saved.WeekStart)
}

// =============================================================================
// DURATION BOUNDS
// =============================================================================

func TestDurationHours_UpperBound(t *testing.T) {
	f := newFixture(t, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	count := 2
	huge := decimal.RequireFromString("9000000000000")

	// WHEN: a series asks for an absurd duration
	_, err := f.svc.CreateWeekly(f.ctx, owner, scheduling.WeeklyInput{
		StudentID:     f.student.ID,
		Weekday:       time.Monday,
		Time:          "18:00",
		DurationHours: huge,
		StartDate:     schedule.MustParseDate("2026-02-02"),
		Count:         &count,
	})

	// THEN: it is rejected before any conversion
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration_hours", verr.Field)

	// AND: a full day is still accepted
	day := decimal.NewFromInt(24)
	_, err = f.svc.CreateWeekly(f.ctx, owner, scheduling.WeeklyInput{
		StudentID:     f.student.ID,
		Weekday:       time.Monday,
		Time:          "00:00",
		DurationHours: day,
		StartDate:     schedule.MustParseDate("2026-02-02"),
		Count:         &count,
	})
	require.NoError(t, err)

	// AND: patches and single lessons share the bound
	created := f.weekly(t, "2026-03-02", 1)
	_, err = f.svc.ApplyScope(f.ctx, owner, created.Lessons[0].ID, scheduling.ScopeThis, scheduling.Patch{DurationHours: &huge})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration_hours", verr.Field)

	start := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateLesson(f.ctx, owner, scheduling.LessonInput{
		StudentID:     f.student.ID,
		StartAt:       start,
		EndAt:         start.Add(time.Hour),
		DurationHours: decimal.RequireFromString("24.5"),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration_hours", verr.Field)
}
