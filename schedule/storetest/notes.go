package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
)

func testNotes(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")
	other := seedStudent(t, s, "s2")

	older := schedule.Note{ID: "n1", OwnerID: owner, StudentID: st.ID, Text: "weak on vectors", CreatedAt: base}
	newer := schedule.Note{ID: "n2", OwnerID: owner, StudentID: st.ID, Text: "exam in May", CreatedAt: base.Add(time.Hour)}
	elsewhere := schedule.Note{ID: "n3", OwnerID: owner, StudentID: other.ID, Text: "prefers mornings", CreatedAt: base}
	for _, n := range []schedule.Note{older, newer, elsewhere} {
		require.NoError(t, s.CreateNote(ctx, n))
	}
	require.Error(t, s.CreateNote(ctx, older))

	got, err := s.GetNote(ctx, owner, "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st.ID, got.StudentID)
	assert.Equal(t, "weak on vectors", got.Text)
	assertInstant(t, base, got.CreatedAt)
	assertInstant(t, base, got.UpdatedAt)

	got, err = s.GetNote(ctx, intruder, "n1")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := s.ListNotes(ctx, owner, st.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, schedule.NoteID("n2"), list[0].ID)
	assert.Equal(t, schedule.NoteID("n1"), list[1].ID)

	// Only the text and the update stamp change.
	edited := older
	edited.Text = "vectors improving"
	edited.StudentID = other.ID
	edited.UpdatedAt = base.Add(48 * time.Hour)
	require.NoError(t, s.UpdateNote(ctx, edited))
	got, err = s.GetNote(ctx, owner, "n1")
	require.NoError(t, err)
	assert.Equal(t, "vectors improving", got.Text)
	assert.Equal(t, st.ID, got.StudentID)
	assertInstant(t, base, got.CreatedAt)
	assertInstant(t, edited.UpdatedAt, got.UpdatedAt)

	foreign := edited
	foreign.OwnerID = intruder
	assert.True(t, errors.Is(s.UpdateNote(ctx, foreign), schedule.ErrNotFound))

	assert.True(t, errors.Is(s.DeleteNote(ctx, intruder, "n1"), schedule.ErrNotFound))
	require.NoError(t, s.DeleteNote(ctx, owner, "n1"))
	assert.True(t, errors.Is(s.DeleteNote(ctx, owner, "n1"), schedule.ErrNotFound))
	list, err = s.ListNotes(ctx, owner, st.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func testHomework(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	st := seedStudent(t, s, "s1")
	due := schedule.MustParseDate("2026-02-20")

	first := schedule.Homework{
		ID: "h1", OwnerID: owner, StudentID: st.ID, Title: "Kinematics set",
		Description: "Problems 1-12", DueDate: &due, Status: schedule.HomeworkPending, CreatedAt: base,
	}
	second := schedule.Homework{
		ID: "h2", OwnerID: owner, StudentID: st.ID, Title: "Read chapter 3",
		Status: schedule.HomeworkCompleted, CreatedAt: base.Add(time.Hour),
	}
	require.NoError(t, s.CreateHomework(ctx, first))
	require.NoError(t, s.CreateHomework(ctx, second))

	got, err := s.GetHomework(ctx, owner, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kinematics set", got.Title)
	assert.Equal(t, "Problems 1-12", got.Description)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, "2026-02-20", got.DueDate.String())
	assert.Equal(t, schedule.HomeworkPending, got.Status)

	got, err = s.GetHomework(ctx, owner, "h2")
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)

	got, err = s.GetHomework(ctx, intruder, "h1")
	require.NoError(t, err)
	assert.Nil(t, got)

	all, err := s.ListHomework(ctx, owner, st.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, schedule.HomeworkID("h2"), all[0].ID)

	pending, err := s.ListHomework(ctx, owner, st.ID, schedule.HomeworkPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, schedule.HomeworkID("h1"), pending[0].ID)

	// Clearing the due date and completing.
	first.DueDate = nil
	first.Status = schedule.HomeworkCompleted
	first.Title = "Kinematics set (all)"
	first.UpdatedAt = base.Add(24 * time.Hour)
	require.NoError(t, s.UpdateHomework(ctx, first))
	got, err = s.GetHomework(ctx, owner, "h1")
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, schedule.HomeworkCompleted, got.Status)
	assert.Equal(t, "Kinematics set (all)", got.Title)
	assertInstant(t, first.UpdatedAt, got.UpdatedAt)

	pending, err = s.ListHomework(ctx, owner, st.ID, schedule.HomeworkPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	foreign := first
	foreign.OwnerID = intruder
	assert.True(t, errors.Is(s.UpdateHomework(ctx, foreign), schedule.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteHomework(ctx, intruder, "h1"), schedule.ErrNotFound))
	require.NoError(t, s.DeleteHomework(ctx, owner, "h1"))
	assert.True(t, errors.Is(s.DeleteHomework(ctx, owner, "h1"), schedule.ErrNotFound))
}

func testCalendarNotes(t *testing.T, s schedule.TxStore) {
	ctx := context.Background()
	notes := []schedule.CalendarNote{
		{ID: "c2", OwnerID: owner, Title: "Dentist", StartAt: base.AddDate(0, 0, 2), EndAt: base.AddDate(0, 0, 2).Add(time.Hour)},
		{ID: "c1", OwnerID: owner, Title: "Seminar", StartAt: base, EndAt: base.Add(2 * time.Hour), Note: "room 4"},
		{ID: "c3", OwnerID: owner, Title: "Holiday", StartAt: base.AddDate(0, 0, 9), EndAt: base.AddDate(0, 0, 10)},
		{ID: "cx", OwnerID: intruder, Title: "Foreign", StartAt: base, EndAt: base.Add(time.Hour)},
	}
	for _, n := range notes {
		require.NoError(t, s.CreateCalendarNote(ctx, n))
	}

	all, err := s.ListCalendarNotes(ctx, owner, schedule.CalendarNoteFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, schedule.CalendarNoteID("c1"), all[0].ID)
	assert.Equal(t, "room 4", all[0].Note)
	assertInstant(t, base.Add(2*time.Hour), all[0].EndAt)
	assert.Equal(t, schedule.CalendarNoteID("c2"), all[1].ID)
	assert.Equal(t, schedule.CalendarNoteID("c3"), all[2].ID)

	// Bounds are inclusive on the start instant.
	ranged, err := s.ListCalendarNotes(ctx, owner, schedule.CalendarNoteFilter{From: base, To: base.AddDate(0, 0, 2)})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, schedule.CalendarNoteID("c2"), ranged[1].ID)

	assert.True(t, errors.Is(s.DeleteCalendarNote(ctx, owner, "cx"), schedule.ErrNotFound))
	require.NoError(t, s.DeleteCalendarNote(ctx, owner, "c1"))
	assert.True(t, errors.Is(s.DeleteCalendarNote(ctx, owner, "c1"), schedule.ErrNotFound))
	all, err = s.ListCalendarNotes(ctx, owner, schedule.CalendarNoteFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
