package store

import (
	"context"
	"sort"
	"time"

	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// NOTES, HOMEWORK, CALENDAR NOTES (locked entry points)
// =============================================================================

func (m *Memory) CreateNote(_ context.Context, n schedule.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createNote(n)
}

func (m *Memory) GetNote(_ context.Context, owner schedule.OwnerID, id schedule.NoteID) (*schedule.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getNote(owner, id), nil
}

func (m *Memory) ListNotes(_ context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listNotes(owner, studentID), nil
}

func (m *Memory) UpdateNote(_ context.Context, n schedule.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateNote(n)
}

func (m *Memory) DeleteNote(_ context.Context, owner schedule.OwnerID, id schedule.NoteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteNote(owner, id)
}

func (m *Memory) CreateHomework(_ context.Context, h schedule.Homework) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createHomework(h)
}

func (m *Memory) GetHomework(_ context.Context, owner schedule.OwnerID, id schedule.HomeworkID) (*schedule.Homework, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getHomework(owner, id), nil
}

func (m *Memory) ListHomework(_ context.Context, owner schedule.OwnerID, studentID schedule.StudentID, status schedule.HomeworkStatus) ([]schedule.Homework, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listHomework(owner, studentID, status), nil
}

func (m *Memory) UpdateHomework(_ context.Context, h schedule.Homework) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateHomework(h)
}

func (m *Memory) DeleteHomework(_ context.Context, owner schedule.OwnerID, id schedule.HomeworkID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteHomework(owner, id)
}

func (m *Memory) CreateCalendarNote(_ context.Context, n schedule.CalendarNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createCalendarNote(n)
}

func (m *Memory) ListCalendarNotes(_ context.Context, owner schedule.OwnerID, filter schedule.CalendarNoteFilter) ([]schedule.CalendarNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listCalendarNotes(owner, filter), nil
}

func (m *Memory) DeleteCalendarNote(_ context.Context, owner schedule.OwnerID, id schedule.CalendarNoteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteCalendarNote(owner, id)
}

// =============================================================================
// TRANSACTION VIEW
// =============================================================================

func (tv *txMemoryView) CreateNote(_ context.Context, n schedule.Note) error {
	return tv.state.createNote(n)
}

func (tv *txMemoryView) GetNote(_ context.Context, owner schedule.OwnerID, id schedule.NoteID) (*schedule.Note, error) {
	return tv.state.getNote(owner, id), nil
}

func (tv *txMemoryView) ListNotes(_ context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Note, error) {
	return tv.state.listNotes(owner, studentID), nil
}

func (tv *txMemoryView) UpdateNote(_ context.Context, n schedule.Note) error {
	return tv.state.updateNote(n)
}

func (tv *txMemoryView) DeleteNote(_ context.Context, owner schedule.OwnerID, id schedule.NoteID) error {
	return tv.state.deleteNote(owner, id)
}

func (tv *txMemoryView) CreateHomework(_ context.Context, h schedule.Homework) error {
	return tv.state.createHomework(h)
}

func (tv *txMemoryView) GetHomework(_ context.Context, owner schedule.OwnerID, id schedule.HomeworkID) (*schedule.Homework, error) {
	return tv.state.getHomework(owner, id), nil
}

func (tv *txMemoryView) ListHomework(_ context.Context, owner schedule.OwnerID, studentID schedule.StudentID, status schedule.HomeworkStatus) ([]schedule.Homework, error) {
	return tv.state.listHomework(owner, studentID, status), nil
}

func (tv *txMemoryView) UpdateHomework(_ context.Context, h schedule.Homework) error {
	return tv.state.updateHomework(h)
}

func (tv *txMemoryView) DeleteHomework(_ context.Context, owner schedule.OwnerID, id schedule.HomeworkID) error {
	return tv.state.deleteHomework(owner, id)
}

func (tv *txMemoryView) CreateCalendarNote(_ context.Context, n schedule.CalendarNote) error {
	return tv.state.createCalendarNote(n)
}

func (tv *txMemoryView) ListCalendarNotes(_ context.Context, owner schedule.OwnerID, filter schedule.CalendarNoteFilter) ([]schedule.CalendarNote, error) {
	return tv.state.listCalendarNotes(owner, filter), nil
}

func (tv *txMemoryView) DeleteCalendarNote(_ context.Context, owner schedule.OwnerID, id schedule.CalendarNoteID) error {
	return tv.state.deleteCalendarNote(owner, id)
}

// =============================================================================
// UNLOCKED STATE OPERATIONS
// =============================================================================

func (s *memoryState) createNote(n schedule.Note) error {
	if _, ok := s.notes[n.ID]; ok {
		return schedule.Persistence("create note", errDuplicate(string(n.ID)))
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	s.notes[n.ID] = n
	return nil
}

func (s *memoryState) getNote(owner schedule.OwnerID, id schedule.NoteID) *schedule.Note {
	n, ok := s.notes[id]
	if !ok || n.OwnerID != owner {
		return nil
	}
	return &n
}

func (s *memoryState) listNotes(owner schedule.OwnerID, studentID schedule.StudentID) []schedule.Note {
	var result []schedule.Note
	for _, n := range s.notes {
		if n.OwnerID == owner && n.StudentID == studentID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *memoryState) updateNote(n schedule.Note) error {
	existing, ok := s.notes[n.ID]
	if !ok || existing.OwnerID != n.OwnerID {
		return schedule.NotFound("note", string(n.ID))
	}
	existing.Text = n.Text
	existing.UpdatedAt = n.UpdatedAt
	s.notes[n.ID] = existing
	return nil
}

func (s *memoryState) deleteNote(owner schedule.OwnerID, id schedule.NoteID) error {
	existing, ok := s.notes[id]
	if !ok || existing.OwnerID != owner {
		return schedule.NotFound("note", string(id))
	}
	delete(s.notes, id)
	return nil
}

func (s *memoryState) createHomework(h schedule.Homework) error {
	if _, ok := s.homework[h.ID]; ok {
		return schedule.Persistence("create homework", errDuplicate(string(h.ID)))
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	s.homework[h.ID] = cloneHomework(h)
	return nil
}

func (s *memoryState) getHomework(owner schedule.OwnerID, id schedule.HomeworkID) *schedule.Homework {
	h, ok := s.homework[id]
	if !ok || h.OwnerID != owner {
		return nil
	}
	h = cloneHomework(h)
	return &h
}

func (s *memoryState) listHomework(owner schedule.OwnerID, studentID schedule.StudentID, status schedule.HomeworkStatus) []schedule.Homework {
	var result []schedule.Homework
	for _, h := range s.homework {
		if h.OwnerID != owner || h.StudentID != studentID {
			continue
		}
		if status != "" && h.Status != status {
			continue
		}
		result = append(result, cloneHomework(h))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *memoryState) updateHomework(h schedule.Homework) error {
	existing, ok := s.homework[h.ID]
	if !ok || existing.OwnerID != h.OwnerID {
		return schedule.NotFound("homework", string(h.ID))
	}
	h.StudentID = existing.StudentID
	h.CreatedAt = existing.CreatedAt
	s.homework[h.ID] = cloneHomework(h)
	return nil
}

func (s *memoryState) deleteHomework(owner schedule.OwnerID, id schedule.HomeworkID) error {
	existing, ok := s.homework[id]
	if !ok || existing.OwnerID != owner {
		return schedule.NotFound("homework", string(id))
	}
	delete(s.homework, id)
	return nil
}

func (s *memoryState) createCalendarNote(n schedule.CalendarNote) error {
	if _, ok := s.calendar[n.ID]; ok {
		return schedule.Persistence("create calendar note", errDuplicate(string(n.ID)))
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.calendar[n.ID] = n
	return nil
}

func (s *memoryState) listCalendarNotes(owner schedule.OwnerID, filter schedule.CalendarNoteFilter) []schedule.CalendarNote {
	var result []schedule.CalendarNote
	for _, n := range s.calendar {
		if n.OwnerID == owner && filter.Matches(n) {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartAt.Equal(result[j].StartAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result
}

func (s *memoryState) deleteCalendarNote(owner schedule.OwnerID, id schedule.CalendarNoteID) error {
	existing, ok := s.calendar[id]
	if !ok || existing.OwnerID != owner {
		return schedule.NotFound("calendar note", string(id))
	}
	delete(s.calendar, id)
	return nil
}

func cloneHomework(h schedule.Homework) schedule.Homework {
	if h.DueDate != nil {
		d := *h.DueDate
		h.DueDate = &d
	}
	return h
}
