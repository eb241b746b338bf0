/*
store.go - Persistence interfaces for students, recurrences, lessons and settings

PURPOSE:
  Defines the boundary between the scheduling logic and the relational store.
  Student notes, homework and calendar notes live behind the same boundary.
  Every method is scoped by owner: a row owned by someone else is invisible.

KEY INTERFACES:
  Store:   Reads and row-level writes
  TxStore: Store plus WithTx for atomic multi-row operations

ABSENT ROWS:
  Get* methods return (nil, nil) when the row does not exist for the owner.
  Update and Delete methods return a NotFoundError when no row matched.

ATOMIC OPERATIONS:
  Creating a series (one recurrence + N lessons), a scoped edit (N lesson
  updates) and a series stop (recurrence end date + N cancellations) each run
  inside one WithTx call, so a failure part-way leaves nothing applied.

IMPLEMENTATIONS:
  - schedule/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL (pgx)
*/
package schedule

import (
	"context"
	"time"
)

type StudentStore interface {
	SaveStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, owner OwnerID, id StudentID) (*Student, error)
	ListStudents(ctx context.Context, owner OwnerID) ([]Student, error)
}

type RecurrenceStore interface {
	CreateRecurrence(ctx context.Context, r Recurrence) error
	GetRecurrence(ctx context.Context, owner OwnerID, id RecurrenceID) (*Recurrence, error)
	ListRecurrencesByStudent(ctx context.Context, owner OwnerID, studentID StudentID) ([]Recurrence, error)

	// UpdateRecurrenceEnd truncates the validity window of a series.
	UpdateRecurrenceEnd(ctx context.Context, owner OwnerID, id RecurrenceID, endDate Date, stoppedAt time.Time) error
}

type LessonStore interface {
	InsertLessons(ctx context.Context, lessons []Lesson) error
	GetLesson(ctx context.Context, owner OwnerID, id LessonID) (*Lesson, error)

	// ListLessonsByRecurrence returns the series ordered by StartAt ascending.
	ListLessonsByRecurrence(ctx context.Context, owner OwnerID, id RecurrenceID) ([]Lesson, error)

	// ListLessons returns lessons matching filter ordered by StartAt ascending.
	ListLessons(ctx context.Context, owner OwnerID, filter LessonFilter) ([]Lesson, error)

	// UpdateLesson overwrites every mutable column of an existing lesson.
	UpdateLesson(ctx context.Context, l Lesson) error

	DeleteLesson(ctx context.Context, owner OwnerID, id LessonID) error
}

type SettingsStore interface {
	// GetSettings returns the owner's settings, or DefaultSettings if none were saved.
	GetSettings(ctx context.Context, owner OwnerID) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

type NoteStore interface {
	CreateNote(ctx context.Context, n Note) error
	GetNote(ctx context.Context, owner OwnerID, id NoteID) (*Note, error)

	// ListNotes returns a student's notes, newest first.
	ListNotes(ctx context.Context, owner OwnerID, studentID StudentID) ([]Note, error)

	// UpdateNote rewrites Text and UpdatedAt.
	UpdateNote(ctx context.Context, n Note) error
	DeleteNote(ctx context.Context, owner OwnerID, id NoteID) error
}

type HomeworkStore interface {
	CreateHomework(ctx context.Context, h Homework) error
	GetHomework(ctx context.Context, owner OwnerID, id HomeworkID) (*Homework, error)

	// ListHomework returns a student's homework, newest first. An empty
	// status matches every status.
	ListHomework(ctx context.Context, owner OwnerID, studentID StudentID, status HomeworkStatus) ([]Homework, error)

	// UpdateHomework overwrites every mutable column of an existing row.
	UpdateHomework(ctx context.Context, h Homework) error
	DeleteHomework(ctx context.Context, owner OwnerID, id HomeworkID) error
}

type CalendarNoteStore interface {
	CreateCalendarNote(ctx context.Context, n CalendarNote) error

	// ListCalendarNotes returns notes ordered by StartAt ascending.
	ListCalendarNotes(ctx context.Context, owner OwnerID, filter CalendarNoteFilter) ([]CalendarNote, error)
	DeleteCalendarNote(ctx context.Context, owner OwnerID, id CalendarNoteID) error
}

// Store is the full persistence surface used by the engine.
type Store interface {
	StudentStore
	RecurrenceStore
	LessonStore
	SettingsStore
	NoteStore
	HomeworkStore
	CalendarNoteStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
