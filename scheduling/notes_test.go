package scheduling_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/scheduling"
)

func strPtr(s string) *string { return &s }

// =============================================================================
// STUDENT NOTES
// =============================================================================

func TestNotes_Lifecycle(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	// GIVEN: a note with surrounding whitespace
	n, err := f.svc.AddNote(f.ctx, owner, f.student.ID, "  struggles with fractions  ")
	require.NoError(t, err)
	assert.Equal(t, "struggles with fractions", n.Text)
	assert.Equal(t, now, n.CreatedAt)

	// WHEN: it is edited
	updated, err := f.svc.UpdateNote(f.ctx, owner, n.ID, "fractions fine now")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "fractions fine now", updated.Text)
	list, err := f.svc.ListNotes(f.ctx, owner, f.student.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fractions fine now", list[0].Text)

	// WHEN: it is deleted twice
	require.NoError(t, f.svc.DeleteNote(f.ctx, owner, n.ID))
	assert.True(t, schedule.IsNotFound(f.svc.DeleteNote(f.ctx, owner, n.ID)))
}

func TestNotes_Errors(t *testing.T) {
	f := newFixture(t, time.Now())

	_, err := f.svc.AddNote(f.ctx, owner, f.student.ID, " x ")
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	_, err = f.svc.AddNote(f.ctx, owner, "ghost", "valid text")
	assert.True(t, schedule.IsNotFound(err))

	_, err = f.svc.ListNotes(f.ctx, "intruder", f.student.ID)
	assert.True(t, schedule.IsNotFound(err))

	n, err := f.svc.AddNote(f.ctx, owner, f.student.ID, "valid text")
	require.NoError(t, err)
	_, err = f.svc.UpdateNote(f.ctx, "intruder", n.ID, "hijacked")
	assert.True(t, schedule.IsNotFound(err))
	_, err = f.svc.UpdateNote(f.ctx, owner, n.ID, "")
	assert.True(t, schedule.IsClientError(err))
}

// =============================================================================
// HOMEWORK
// =============================================================================

func TestHomework_Lifecycle(t *testing.T) {
	f := newFixture(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	due := schedule.MustParseDate("2026-02-17")

	// GIVEN: two assignments
	first, err := f.svc.AddHomework(f.ctx, owner, f.student.ID, scheduling.HomeworkInput{
		Title: "Limits worksheet", Description: "odd problems", DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, schedule.HomeworkPending, first.Status)
	_, err = f.svc.AddHomework(f.ctx, owner, f.student.ID, scheduling.HomeworkInput{Title: "Read notes"})
	require.NoError(t, err)

	// WHEN: the first is completed and its due date cleared
	completed := schedule.HomeworkCompleted
	updated, err := f.svc.UpdateHomework(f.ctx, owner, first.ID, scheduling.HomeworkPatch{
		Status:     &completed,
		SetDueDate: true,
	})

	// THEN: untouched fields keep their values
	require.NoError(t, err)
	assert.Equal(t, schedule.HomeworkCompleted, updated.Status)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "Limits worksheet", updated.Title)
	assert.Equal(t, "odd problems", updated.Description)

	// AND: the status filter separates them
	pending, err := f.svc.ListHomework(f.ctx, owner, f.student.ID, schedule.HomeworkPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Read notes", pending[0].Title)
	all, err := f.svc.ListHomework(f.ctx, owner, f.student.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// WHEN: a title-only patch
	updated, err = f.svc.UpdateHomework(f.ctx, owner, first.ID, scheduling.HomeworkPatch{Title: strPtr(" Limits, all ")})
	require.NoError(t, err)
	assert.Equal(t, "Limits, all", updated.Title)
	assert.Equal(t, schedule.HomeworkCompleted, updated.Status)

	require.NoError(t, f.svc.DeleteHomework(f.ctx, owner, first.ID))
	assert.True(t, schedule.IsNotFound(f.svc.DeleteHomework(f.ctx, owner, first.ID)))
}

func TestHomework_Errors(t *testing.T) {
	f := newFixture(t, time.Now())

	_, err := f.svc.AddHomework(f.ctx, owner, f.student.ID, scheduling.HomeworkInput{Title: "a"})
	assert.True(t, schedule.IsClientError(err))
	_, err = f.svc.AddHomework(f.ctx, owner, "ghost", scheduling.HomeworkInput{Title: "valid"})
	assert.True(t, schedule.IsNotFound(err))

	h, err := f.svc.AddHomework(f.ctx, owner, f.student.ID, scheduling.HomeworkInput{Title: "valid"})
	require.NoError(t, err)
	_, err = f.svc.UpdateHomework(f.ctx, owner, h.ID, scheduling.HomeworkPatch{})
	assert.True(t, schedule.IsClientError(err))
	bogus := schedule.HomeworkStatus("DONE")
	_, err = f.svc.UpdateHomework(f.ctx, owner, h.ID, scheduling.HomeworkPatch{Status: &bogus})
	assert.True(t, schedule.IsClientError(err))
	_, err = f.svc.UpdateHomework(f.ctx, "intruder", h.ID, scheduling.HomeworkPatch{Title: strPtr("hijacked")})
	assert.True(t, schedule.IsNotFound(err))
}

func TestParseHomeworkStatus(t *testing.T) {
	for raw, want := range map[string]schedule.HomeworkStatus{
		"":          "",
		"all":       "",
		"pending":   schedule.HomeworkPending,
		"COMPLETED": schedule.HomeworkCompleted,
	} {
		got, err := scheduling.ParseHomeworkStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := scheduling.ParseHomeworkStatus("done")
	assert.True(t, schedule.IsClientError(err))
}

// =============================================================================
// CALENDAR NOTES
// =============================================================================

func TestCalendarNotes(t *testing.T) {
	f := newFixture(t, time.Now())
	start := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)

	_, err := f.svc.AddCalendarNote(f.ctx, owner, scheduling.CalendarNoteInput{
		Title: "Exam week", StartAt: start.AddDate(0, 0, 7), EndAt: start.AddDate(0, 0, 8),
	})
	require.NoError(t, err)
	first, err := f.svc.AddCalendarNote(f.ctx, owner, scheduling.CalendarNoteInput{
		Title: "Conference", StartAt: start, EndAt: start.Add(3 * time.Hour), Note: " hall B ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hall B", first.Note)

	list, err := f.svc.ListCalendarNotes(f.ctx, owner, schedule.CalendarNoteFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Conference", list[0].Title)

	list, err = f.svc.ListCalendarNotes(f.ctx, owner, schedule.CalendarNoteFilter{From: start.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Exam week", list[0].Title)

	_, err = f.svc.AddCalendarNote(f.ctx, owner, scheduling.CalendarNoteInput{
		Title: "Backwards", StartAt: start, EndAt: start.Add(-time.Minute),
	})
	assert.True(t, schedule.IsClientError(err))
	_, err = f.svc.ListCalendarNotes(f.ctx, owner, schedule.CalendarNoteFilter{From: start, To: start.Add(-time.Hour)})
	assert.True(t, schedule.IsClientError(err))

	require.NoError(t, f.svc.DeleteCalendarNote(f.ctx, owner, first.ID))
	assert.True(t, schedule.IsNotFound(f.svc.DeleteCalendarNote(f.ctx, "intruder", list[0].ID)))
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard_FollowsOwnerWeekStart(t *testing.T) {
	// GIVEN: a Tuesday clock and a Monday series of four lessons
	f := newFixture(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	created := f.weekly(t, "2026-02-02", 4)

	// WHEN: the owner keeps the default Monday week start
	sum, err := f.svc.Dashboard(f.ctx, owner, nil)

	// THEN: the current week holds the 2026-02-09 lesson
	require.NoError(t, err)
	assert.Equal(t, "2026-02-09", sum.WeekStart.String())
	require.Len(t, sum.WeekLessons, 1)
	assert.Equal(t, created.Lessons[1].ID, sum.WeekLessons[0].Lesson.ID)
	assert.Equal(t, f.student.FullName, sum.WeekLessons[0].StudentName)
	assert.Equal(t, "2000.00", sum.ExpectedReceivables.StringFixed(2))

	// WHEN: the week starts on Tuesday and an explicit day is asked for
	st, err := f.svc.GetSettings(f.ctx, owner)
	require.NoError(t, err)
	st.WeekStart = time.Tuesday
	_, err = f.svc.SaveSettings(f.ctx, st)
	require.NoError(t, err)
	day := schedule.MustParseDate("2026-02-16")
	sum, err = f.svc.Dashboard(f.ctx, owner, &day)

	// THEN: the Monday 2026-02-16 closes the week that opened on 2026-02-10
	require.NoError(t, err)
	assert.Equal(t, "2026-02-10", sum.WeekStart.String())
	assert.Equal(t, "2026-02-16", sum.WeekEnd.String())
	require.Len(t, sum.WeekLessons, 1)
	assert.Equal(t, created.Lessons[2].ID, sum.WeekLessons[0].Lesson.ID)
}
