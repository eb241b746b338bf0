package scheduling

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
)

// minTextLength applies to note text and to homework and calendar titles.
const minTextLength = 2

func requireText(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if len([]rune(v)) < minTextLength {
		return "", schedule.Invalid(field, "must be at least 2 characters")
	}
	return v, nil
}

// requireStudent loads the student through st or returns NotFound.
func requireStudent(ctx context.Context, st schedule.Store, owner schedule.OwnerID, id schedule.StudentID) error {
	student, err := st.GetStudent(ctx, owner, id)
	if err != nil {
		return schedule.Persistence("load student", err)
	}
	if student == nil {
		return schedule.NotFound("student", string(id))
	}
	return nil
}

// =============================================================================
// STUDENT NOTES
// =============================================================================

func (s *Service) AddNote(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID, text string) (*schedule.Note, error) {
	text, err := requireText("text", text)
	if err != nil {
		return nil, err
	}
	if err := requireStudent(ctx, s.store, owner, studentID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	n := schedule.Note{
		ID:        schedule.NoteID(schedule.NewID()),
		OwnerID:   owner,
		StudentID: studentID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return nil, schedule.Persistence("create note", err)
	}
	s.logger.Info("note added", zap.String("owner", string(owner)), zap.String("student_id", string(studentID)))
	return &n, nil
}

func (s *Service) ListNotes(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Note, error) {
	if err := requireStudent(ctx, s.store, owner, studentID); err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotes(ctx, owner, studentID)
	if err != nil {
		return nil, schedule.Persistence("list notes", err)
	}
	return notes, nil
}

func (s *Service) UpdateNote(ctx context.Context, owner schedule.OwnerID, id schedule.NoteID, text string) (*schedule.Note, error) {
	text, err := requireText("text", text)
	if err != nil {
		return nil, err
	}

	var updated schedule.Note
	err = s.store.WithTx(ctx, func(tx schedule.Store) error {
		n, err := tx.GetNote(ctx, owner, id)
		if err != nil {
			return schedule.Persistence("load note", err)
		}
		if n == nil {
			return schedule.NotFound("note", string(id))
		}
		n.Text = text
		n.UpdatedAt = s.now().UTC()
		if err := tx.UpdateNote(ctx, *n); err != nil {
			return schedule.Persistence("update note", err)
		}
		updated = *n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) DeleteNote(ctx context.Context, owner schedule.OwnerID, id schedule.NoteID) error {
	if err := s.store.DeleteNote(ctx, owner, id); err != nil {
		return schedule.Persistence("delete note", err)
	}
	s.logger.Info("note deleted", zap.String("owner", string(owner)), zap.String("note_id", string(id)))
	return nil
}

// =============================================================================
// HOMEWORK
// =============================================================================

type HomeworkInput struct {
	Title       string
	Description string
	DueDate     *schedule.Date
}

// HomeworkPatch changes the named fields. SetDueDate with a nil DueDate
// clears the due date.
type HomeworkPatch struct {
	Title       *string
	Description *string
	SetDueDate  bool
	DueDate     *schedule.Date
	Status      *schedule.HomeworkStatus
}

func (p HomeworkPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && !p.SetDueDate && p.Status == nil
}

// ParseHomeworkStatus maps a list filter to a status. Empty and ALL match
// every row.
func ParseHomeworkStatus(raw string) (schedule.HomeworkStatus, error) {
	switch s := schedule.HomeworkStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case "", "ALL":
		return "", nil
	case schedule.HomeworkPending, schedule.HomeworkCompleted:
		return s, nil
	default:
		return "", schedule.Invalid("status", "must be ALL, PENDING or COMPLETED")
	}
}

func (s *Service) AddHomework(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID, in HomeworkInput) (*schedule.Homework, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return nil, err
	}
	if err := requireStudent(ctx, s.store, owner, studentID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	h := schedule.Homework{
		ID:          schedule.HomeworkID(schedule.NewID()),
		OwnerID:     owner,
		StudentID:   studentID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Status:      schedule.HomeworkPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateHomework(ctx, h); err != nil {
		return nil, schedule.Persistence("create homework", err)
	}
	s.logger.Info("homework assigned",
		zap.String("owner", string(owner)),
		zap.String("student_id", string(studentID)),
		zap.String("homework_id", string(h.ID)),
	)
	return &h, nil
}

func (s *Service) ListHomework(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID, status schedule.HomeworkStatus) ([]schedule.Homework, error) {
	if err := requireStudent(ctx, s.store, owner, studentID); err != nil {
		return nil, err
	}
	list, err := s.store.ListHomework(ctx, owner, studentID, status)
	if err != nil {
		return nil, schedule.Persistence("list homework", err)
	}
	return list, nil
}

func (s *Service) UpdateHomework(ctx context.Context, owner schedule.OwnerID, id schedule.HomeworkID, p HomeworkPatch) (*schedule.Homework, error) {
	if p.IsEmpty() {
		return nil, schedule.Invalid("patch", "must not be empty")
	}
	var title string
	if p.Title != nil {
		t, err := requireText("title", *p.Title)
		if err != nil {
			return nil, err
		}
		title = t
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, schedule.Invalid("status", "must be PENDING or COMPLETED")
	}

	var updated schedule.Homework
	err := s.store.WithTx(ctx, func(tx schedule.Store) error {
		h, err := tx.GetHomework(ctx, owner, id)
		if err != nil {
			return schedule.Persistence("load homework", err)
		}
		if h == nil {
			return schedule.NotFound("homework", string(id))
		}
		if p.Title != nil {
			h.Title = title
		}
		if p.Description != nil {
			h.Description = strings.TrimSpace(*p.Description)
		}
		if p.SetDueDate {
			h.DueDate = p.DueDate
		}
		if p.Status != nil {
			h.Status = *p.Status
		}
		h.UpdatedAt = s.now().UTC()
		if err := tx.UpdateHomework(ctx, *h); err != nil {
			return schedule.Persistence("update homework", err)
		}
		updated = *h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) DeleteHomework(ctx context.Context, owner schedule.OwnerID, id schedule.HomeworkID) error {
	if err := s.store.DeleteHomework(ctx, owner, id); err != nil {
		return schedule.Persistence("delete homework", err)
	}
	s.logger.Info("homework deleted", zap.String("owner", string(owner)), zap.String("homework_id", string(id)))
	return nil
}

// =============================================================================
// CALENDAR NOTES
// =============================================================================

type CalendarNoteInput struct {
	Title   string
	StartAt time.Time
	EndAt   time.Time
	Note    string
}

func (s *Service) AddCalendarNote(ctx context.Context, owner schedule.OwnerID, in CalendarNoteInput) (*schedule.CalendarNote, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return nil, err
	}
	if in.StartAt.IsZero() {
		return nil, schedule.Invalid("start_at", "is required")
	}
	if in.EndAt.IsZero() {
		return nil, schedule.Invalid("end_at", "is required")
	}
	if in.EndAt.Before(in.StartAt) {
		return nil, schedule.Invalid("end_at", "must not be before start_at")
	}

	n := schedule.CalendarNote{
		ID:        schedule.CalendarNoteID(schedule.NewID()),
		OwnerID:   owner,
		Title:     title,
		StartAt:   in.StartAt.UTC(),
		EndAt:     in.EndAt.UTC(),
		Note:      strings.TrimSpace(in.Note),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateCalendarNote(ctx, n); err != nil {
		return nil, schedule.Persistence("create calendar note", err)
	}
	s.logger.Info("calendar note added", zap.String("owner", string(owner)), zap.String("calendar_note_id", string(n.ID)))
	return &n, nil
}

func (s *Service) ListCalendarNotes(ctx context.Context, owner schedule.OwnerID, filter schedule.CalendarNoteFilter) ([]schedule.CalendarNote, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, schedule.Invalid("to", "must not be before from")
	}
	notes, err := s.store.ListCalendarNotes(ctx, owner, filter)
	if err != nil {
		return nil, schedule.Persistence("list calendar notes", err)
	}
	return notes, nil
}

func (s *Service) DeleteCalendarNote(ctx context.Context, owner schedule.OwnerID, id schedule.CalendarNoteID) error {
	if err := s.store.DeleteCalendarNote(ctx, owner, id); err != nil {
		return schedule.Persistence("delete calendar note", err)
	}
	return nil
}
