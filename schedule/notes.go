package schedule

import "time"

// =============================================================================
// NOTES, HOMEWORK AND CALENDAR NOTES - Owner records outside billing
// =============================================================================

type NoteID string
type HomeworkID string
type CalendarNoteID string

// Note is a free-text remark the tutor keeps about a student.
type Note struct {
	ID        NoteID
	OwnerID   OwnerID
	StudentID StudentID
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type HomeworkStatus string

const (
	HomeworkPending   HomeworkStatus = "PENDING"
	HomeworkCompleted HomeworkStatus = "COMPLETED"
)

func (s HomeworkStatus) Valid() bool {
	return s == HomeworkPending || s == HomeworkCompleted
}

// Homework is an assignment given to a student. DueDate is optional.
type Homework struct {
	ID          HomeworkID
	OwnerID     OwnerID
	StudentID   StudentID
	Title       string
	Description string
	DueDate     *Date
	Status      HomeworkStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CalendarNote blocks out a time range on the calendar that is not a lesson.
type CalendarNote struct {
	ID        CalendarNoteID
	OwnerID   OwnerID
	Title     string
	StartAt   time.Time
	EndAt     time.Time
	Note      string
	CreatedAt time.Time
}

// CalendarNoteFilter narrows ListCalendarNotes by start time. Zero bounds are open.
type CalendarNoteFilter struct {
	From time.Time // inclusive
	To   time.Time // inclusive
}

func (f CalendarNoteFilter) Matches(n CalendarNote) bool {
	if !f.From.IsZero() && n.StartAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && n.StartAt.After(f.To) {
		return false
	}
	return true
}
