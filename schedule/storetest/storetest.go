// Package storetest is a conformance suite every schedule.TxStore must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) schedule.TxStore

const (
	owner    = schedule.OwnerID("owner-a")
	intruder = schedule.OwnerID("owner-b")
)

var base = time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC)

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Students", func(t *testing.T) { testStudents(t, newStore(t)) })
	t.Run("Recurrences", func(t *testing.T) { testRecurrences(t, newStore(t)) })
	t.Run("Lessons", func(t *testing.T) { testLessons(t, newStore(t)) })
	t.Run("LessonFilter", func(t *testing.T) { testLessonFilter(t, newStore(t)) })
	t.Run("UpdateAndDelete", func(t *testing.T) { testUpdateAndDelete(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("WithTxCommits", func(t *testing.T) { testWithTxCommits(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testWithTxRollsBack(t, newStore(t)) })
	t.Run("Notes", func(t *testing.T) { testNotes(t, newStore(t)) })
	t.Run("Homework", func(t *testing.T) { testHomework(t, newStore(t)) })
	t.Run("CalendarNotes", func(t *testing.T) { testCalendarNotes(t, newStore(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

func student(id string, o schedule.OwnerID, createdAt time.Time) schedule.Student {
	return schedule.Student{
		ID:                schedule.StudentID(id),
		OwnerID:           o,
		FullName:          "Student " + id,
		Subject:           "Fizik",
		Phone:             "+90 555 000 00 00",
		Email:             id + "@example.com",
		HourlyRateDefault: decimal.RequireFromString("450.50"),
		Status:            schedule.StudentActive,
		CreatedAt:         createdAt,
	}
}

func recurrence(id string, studentID schedule.StudentID, createdAt time.Time) schedule.Recurrence {
	end := schedule.MustParseDate("2026-04-20")
	count := 12
	return schedule.Recurrence{
		ID:            schedule.RecurrenceID(id),
		OwnerID:       owner,
		StudentID:     studentID,
		Frequency:     schedule.FrequencyWeekly,
		IntervalWeeks: 1,
		Weekdays:      []time.Weekday{time.Monday, time.Thursday},
		StartAt:       base,
		EndDate:       &end,
		RepeatCount:   &count,
		Timezone:      "Europe/Istanbul",
		CreatedAt:     createdAt,
	}
}

func lesson(id string, studentID schedule.StudentID, rec *schedule.RecurrenceID, start time.Time) schedule.Lesson {
	return schedule.Lesson{
		ID:            schedule.LessonID(id),
		OwnerID:       owner,
		StudentID:     studentID,
		RecurrenceID:  rec,
		StartAt:       start,
		EndAt:         start.Add(90 * time.Minute),
		DurationHours: decimal.RequireFromString("1.5"),
		Status:        schedule.StatusPlanned,
		NoShowRule:    schedule.NoShowHalf,
		HourlyRate:    decimal.RequireFromString("500"),
		FeeTotal:      decimal.RequireFromString("750"),
		PaymentStatus: schedule.PaymentUnpaid,
		AmountPaid:    decimal.Zero,
		Note:          "chapter " + id,
		CreatedAt:     base.Add(-time.Hour),
	}
}

func seedStudent(t *testing.T, s schedule.Store, id string) schedule.Student {
	t.Helper()
	st := student(id, owner, base.Add(-48*time.Hour))
	require.NoError(t, s.SaveStudent(context.Background(), st))
	return st
}

func assertInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func assertLesson(t *testing.T, want, got schedule.Lesson) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.OwnerID, got.OwnerID)
	assert.Equal(t, want.StudentID, got.StudentID)
	assert.Equal(t, want.RecurrenceID, got.RecurrenceID)
	assertInstant(t, want.StartAt, got.StartAt)
	assertInstant(t, want.EndAt, got.EndAt)
	assertDecimal(t, want.DurationHours, got.DurationHours)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.NoShowRule, got.NoShowRule)
	assertDecimal(t, want.HourlyRate, got.HourlyRate)
	assertDecimal(t, want.FeeTotal, got.FeeTotal)
	assert.Equal(t, want.PaymentStatus, got.PaymentStatus)
	assertDecimal(t, want.AmountPaid, got.AmountPaid)
	assert.Equal(t, want.Note, got.Note)
}

func lessonIDs(ls []schedule.Lesson) []schedule.LessonID {
	ids := make([]schedule.LessonID, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.ID)
	}
	return ids
}

// =============================================================================
// CASES
// =============================================================================

func testStudents(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	older := student("s-old", owner, base.Add(-72*time.Hour))
	newer := student("s-new", owner, base.Add(-24*time.Hour))
	foreign := student("s-foreign", intruder, base)
	for _, st := range []schedule.Student{older, newer, foreign} {
		require.NoError(t, s.SaveStudent(ctx, st))
	}

	got, err := s.GetStudent(ctx, owner, "s-old")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older.FullName, got.FullName)
	assert.Equal(t, older.Email, got.Email)
	assertDecimal(t, older.HourlyRateDefault, got.HourlyRateDefault)
	assert.Equal(t, schedule.StudentActive, got.Status)
	assertInstant(t, older.CreatedAt, got.CreatedAt)

	// Absent and foreign rows read as nil.
	got, err = s.GetStudent(ctx, owner, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.GetStudent(ctx, owner, "s-foreign")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.ListStudents(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, schedule.StudentID("s-new"), list[0].ID)
	assert.Equal(t, schedule.StudentID("s-old"), list[1].ID)

	// Saving again updates in place.
	older.FullName = "Renamed"
	older.Status = schedule.StudentPassive
	require.NoError(t, s.SaveStudent(ctx, older))
	got, err = s.GetStudent(ctx, owner, "s-old")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.FullName)
	assert.Equal(t, schedule.StudentPassive, got.Status)
}

func testRecurrences(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")
	first := recurrence("r1", st.ID, base.Add(-2*time.Hour))
	second := recurrence("r2", st.ID, base.Add(-time.Hour))
	second.RepeatCount = nil
	second.EndDate = nil
	require.NoError(t, s.CreateRecurrence(ctx, first))
	require.NoError(t, s.CreateRecurrence(ctx, second))

	got, err := s.GetRecurrence(ctx, owner, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st.ID, got.StudentID)
	assert.Equal(t, schedule.FrequencyWeekly, got.Frequency)
	assert.Equal(t, 1, got.IntervalWeeks)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, got.Weekdays)
	assertInstant(t, base, got.StartAt)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2026-04-20", got.EndDate.String())
	require.NotNil(t, got.RepeatCount)
	assert.Equal(t, 12, *got.RepeatCount)
	assert.Equal(t, "Europe/Istanbul", got.Timezone)
	assert.Nil(t, got.StoppedAt)

	got, err = s.GetRecurrence(ctx, owner, "r2")
	require.NoError(t, err)
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.RepeatCount)

	got, err = s.GetRecurrence(ctx, intruder, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.ListRecurrencesByStudent(ctx, owner, st.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, schedule.RecurrenceID("r2"), list[0].ID)

	stoppedAt := base.Add(24 * time.Hour)
	require.NoError(t, s.UpdateRecurrenceEnd(ctx, owner, "r1", schedule.MustParseDate("2026-02-15"), stoppedAt))
	got, err = s.GetRecurrence(ctx, owner, "r1")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-15", got.EndDate.String())
	require.NotNil(t, got.StoppedAt)
	assertInstant(t, stoppedAt, *got.StoppedAt)

	err = s.UpdateRecurrenceEnd(ctx, intruder, "r1", schedule.MustParseDate("2026-02-01"), stoppedAt)
	assert.True(t, errors.Is(err, schedule.ErrNotFound))
}

func testLessons(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")
	rec := recurrence("r1", st.ID, base)
	require.NoError(t, s.CreateRecurrence(ctx, rec))

	recID := rec.ID
	inserted := []schedule.Lesson{
		lesson("l3", st.ID, &recID, base.AddDate(0, 0, 14)),
		lesson("l1", st.ID, &recID, base),
		lesson("l2", st.ID, &recID, base.AddDate(0, 0, 7)),
		lesson("solo", st.ID, nil, base.AddDate(0, 0, 3)),
	}
	require.NoError(t, s.InsertLessons(ctx, inserted))

	got, err := s.GetLesson(ctx, owner, "l1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assertLesson(t, inserted[1], *got)

	solo, err := s.GetLesson(ctx, owner, "solo")
	require.NoError(t, err)
	require.NotNil(t, solo)
	assert.Nil(t, solo.RecurrenceID)

	got, err = s.GetLesson(ctx, intruder, "l1")
	require.NoError(t, err)
	assert.Nil(t, got)

	series, err := s.ListLessonsByRecurrence(ctx, owner, recID)
	require.NoError(t, err)
	assert.Equal(t, []schedule.LessonID{"l1", "l2", "l3"}, lessonIDs(series))

	series, err = s.ListLessonsByRecurrence(ctx, intruder, recID)
	require.NoError(t, err)
	assert.Empty(t, series)

	// Duplicate ids fail the whole batch.
	err = s.InsertLessons(ctx, []schedule.Lesson{lesson("fresh", st.ID, nil, base), lesson("l1", st.ID, nil, base)})
	require.Error(t, err)
	got, err = s.GetLesson(ctx, owner, "fresh")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testLessonFilter(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	a := seedStudent(t, s, "a")
	b := seedStudent(t, s, "b")
	require.NoError(t, s.InsertLessons(ctx, []schedule.Lesson{
		lesson("a1", a.ID, nil, base),
		lesson("a2", a.ID, nil, base.AddDate(0, 0, 7)),
		lesson("b1", b.ID, nil, base.AddDate(0, 0, 1)),
	}))

	all, err := s.ListLessons(ctx, owner, schedule.LessonFilter{})
	require.NoError(t, err)
	assert.Equal(t, []schedule.LessonID{"a1", "b1", "a2"}, lessonIDs(all))

	onlyA, err := s.ListLessons(ctx, owner, schedule.LessonFilter{StudentID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, []schedule.LessonID{"a1", "a2"}, lessonIDs(onlyA))

	// Bounds are inclusive.
	ranged, err := s.ListLessons(ctx, owner, schedule.LessonFilter{From: base.AddDate(0, 0, 1), To: base.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.Equal(t, []schedule.LessonID{"b1", "a2"}, lessonIDs(ranged))

	none, err := s.ListLessons(ctx, intruder, schedule.LessonFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testUpdateAndDelete(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")
	other := seedStudent(t, s, "s2")
	l := lesson("l1", st.ID, nil, base)
	require.NoError(t, s.InsertLessons(ctx, []schedule.Lesson{l}))

	l.StudentID = other.ID
	l.StartAt = base.Add(time.Hour)
	l.EndAt = base.Add(3 * time.Hour)
	l.DurationHours = decimal.NewFromInt(2)
	l.Status = schedule.StatusNoShow
	l.NoShowRule = schedule.NoShowFull
	l.HourlyRate = decimal.RequireFromString("612.35")
	l.FeeTotal = decimal.RequireFromString("1224.70")
	l.PaymentStatus = schedule.PaymentPartial
	l.AmountPaid = decimal.RequireFromString("100.05")
	l.Note = "moved"
	require.NoError(t, s.UpdateLesson(ctx, l))

	got, err := s.GetLesson(ctx, owner, "l1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assertLesson(t, l, *got)

	foreign := l
	foreign.OwnerID = intruder
	assert.True(t, errors.Is(s.UpdateLesson(ctx, foreign), schedule.ErrNotFound))
	missing := l
	missing.ID = "missing"
	assert.True(t, errors.Is(s.UpdateLesson(ctx, missing), schedule.ErrNotFound))

	assert.True(t, errors.Is(s.DeleteLesson(ctx, intruder, "l1"), schedule.ErrNotFound))
	require.NoError(t, s.DeleteLesson(ctx, owner, "l1"))
	got, err = s.GetLesson(ctx, owner, "l1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(s.DeleteLesson(ctx, owner, "l1"), schedule.ErrNotFound))
}

func testSettings(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()

	got, err := s.GetSettings(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, schedule.DefaultTimezone, got.Timezone)
	assert.Equal(t, schedule.NoShowNone, got.DefaultNoShowRule)

	want := schedule.Settings{
		OwnerID:           owner,
		DefaultHourlyRate: decimal.RequireFromString("650.00"),
		DefaultNoShowRule: schedule.NoShowFull,
		Timezone:          "Europe/Berlin",
		WorkdayStart:      "09:30",
		WorkdayEnd:        "20:00",
		WeekStart:         time.Sunday,
		OverdueDays:       14,
	}
	require.NoError(t, s.SaveSettings(ctx, want))
	want.DefaultHourlyRate = decimal.RequireFromString("700")
	require.NoError(t, s.SaveSettings(ctx, want))

	got, err = s.GetSettings(ctx, owner)
	require.NoError(t, err)
	assertDecimal(t, want.DefaultHourlyRate, got.DefaultHourlyRate)
	assert.Equal(t, want.DefaultNoShowRule, got.DefaultNoShowRule)
	assert.Equal(t, want.Timezone, got.Timezone)
	assert.Equal(t, want.WorkdayStart, got.WorkdayStart)
	assert.Equal(t, want.WorkdayEnd, got.WorkdayEnd)
	assert.Equal(t, want.WeekStart, got.WeekStart)
	assert.Equal(t, want.OverdueDays, got.OverdueDays)

	other, err := s.GetSettings(ctx, intruder)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultTimezone, other.Timezone)
}

func testWithTxCommits(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")

	err := s.WithTx(ctx, func(tx schedule.Store) error {
		rec := recurrence("r1", st.ID, base)
		if err := tx.CreateRecurrence(ctx, rec); err != nil {
			return err
		}
		recID := rec.ID
		if err := tx.InsertLessons(ctx, []schedule.Lesson{lesson("l1", st.ID, &recID, base)}); err != nil {
			return err
		}
		// Writes are visible inside the transaction.
		got, err := tx.GetLesson(ctx, owner, "l1")
		if err != nil {
			return err
		}
		if got == nil {
			return errors.New("lesson not visible inside transaction")
		}
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetLesson(ctx, owner, "l1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func testWithTxRollsBack(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")
	require.NoError(t, s.InsertLessons(ctx, []schedule.Lesson{lesson("l1", st.ID, nil, base)}))
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx schedule.Store) error {
		if err := tx.CreateRecurrence(ctx, recurrence("r1", st.ID, base)); err != nil {
			return err
		}
		l := lesson("l1", st.ID, nil, base)
		l.Status = schedule.StatusCancelled
		if err := tx.UpdateLesson(ctx, l); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := s.GetRecurrence(ctx, owner, "r1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	got, err := s.GetLesson(ctx, owner, "l1")
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPlanned, got.Status)
}
