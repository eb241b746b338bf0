// Package store provides an in-memory schedule.TxStore.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	students    map[schedule.StudentID]schedule.Student
	recurrences map[schedule.RecurrenceID]schedule.Recurrence
	lessons     map[schedule.LessonID]schedule.Lesson
	settings    map[schedule.OwnerID]schedule.Settings
	notes       map[schedule.NoteID]schedule.Note
	homework    map[schedule.HomeworkID]schedule.Homework
	calendar    map[schedule.CalendarNoteID]schedule.CalendarNote
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		students:    make(map[schedule.StudentID]schedule.Student),
		recurrences: make(map[schedule.RecurrenceID]schedule.Recurrence),
		lessons:     make(map[schedule.LessonID]schedule.Lesson),
		settings:    make(map[schedule.OwnerID]schedule.Settings),
		notes:       make(map[schedule.NoteID]schedule.Note),
		homework:    make(map[schedule.HomeworkID]schedule.Homework),
		calendar:    make(map[schedule.CalendarNoteID]schedule.CalendarNote),
	}}
}

func (m *Memory) SaveStudent(_ context.Context, s schedule.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveStudent(s)
}

func (m *Memory) GetStudent(_ context.Context, owner schedule.OwnerID, id schedule.StudentID) (*schedule.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getStudent(owner, id), nil
}

func (m *Memory) ListStudents(_ context.Context, owner schedule.OwnerID) ([]schedule.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listStudents(owner), nil
}

func (m *Memory) CreateRecurrence(_ context.Context, r schedule.Recurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createRecurrence(r)
}

func (m *Memory) GetRecurrence(_ context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) (*schedule.Recurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getRecurrence(owner, id), nil
}

func (m *Memory) ListRecurrencesByStudent(_ context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Recurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listRecurrences(owner, studentID), nil
}

func (m *Memory) UpdateRecurrenceEnd(_ context.Context, owner schedule.OwnerID, id schedule.RecurrenceID, endDate schedule.Date, stoppedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateRecurrenceEnd(owner, id, endDate, stoppedAt)
}

func (m *Memory) InsertLessons(_ context.Context, lessons []schedule.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertLessons(lessons)
}

func (m *Memory) GetLesson(_ context.Context, owner schedule.OwnerID, id schedule.LessonID) (*schedule.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getLesson(owner, id), nil
}

func (m *Memory) ListLessonsByRecurrence(_ context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) ([]schedule.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listLessons(owner, func(l schedule.Lesson) bool {
		return l.RecurrenceID != nil && *l.RecurrenceID == id
	}), nil
}

func (m *Memory) ListLessons(_ context.Context, owner schedule.OwnerID, filter schedule.LessonFilter) ([]schedule.Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listLessons(owner, filter.Matches), nil
}

func (m *Memory) UpdateLesson(_ context.Context, l schedule.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateLesson(l)
}

func (m *Memory) DeleteLesson(_ context.Context, owner schedule.OwnerID, id schedule.LessonID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteLesson(owner, id)
}

func (m *Memory) GetSettings(_ context.Context, owner schedule.OwnerID) (schedule.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getSettings(owner), nil
}

func (m *Memory) SaveSettings(_ context.Context, s schedule.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	m.state.settings[s.OwnerID] = s
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(schedule.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txMemoryView{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		students:    make(map[schedule.StudentID]schedule.Student, len(s.students)),
		recurrences: make(map[schedule.RecurrenceID]schedule.Recurrence, len(s.recurrences)),
		lessons:     make(map[schedule.LessonID]schedule.Lesson, len(s.lessons)),
		settings:    make(map[schedule.OwnerID]schedule.Settings, len(s.settings)),
		notes:       make(map[schedule.NoteID]schedule.Note, len(s.notes)),
		homework:    make(map[schedule.HomeworkID]schedule.Homework, len(s.homework)),
		calendar:    make(map[schedule.CalendarNoteID]schedule.CalendarNote, len(s.calendar)),
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.recurrences {
		c.recurrences[k] = cloneRecurrence(v)
	}
	for k, v := range s.lessons {
		c.lessons[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.notes {
		c.notes[k] = v
	}
	for k, v := range s.homework {
		c.homework[k] = cloneHomework(v)
	}
	for k, v := range s.calendar {
		c.calendar[k] = v
	}
	return c
}

// txMemoryView runs against state while WithTx holds the lock.
type txMemoryView struct {
	state *memoryState
}

func (tv *txMemoryView) SaveStudent(_ context.Context, s schedule.Student) error {
	return tv.state.saveStudent(s)
}

func (tv *txMemoryView) GetStudent(_ context.Context, owner schedule.OwnerID, id schedule.StudentID) (*schedule.Student, error) {
	return tv.state.getStudent(owner, id), nil
}

func (tv *txMemoryView) ListStudents(_ context.Context, owner schedule.OwnerID) ([]schedule.Student, error) {
	return tv.state.listStudents(owner), nil
}

func (tv *txMemoryView) CreateRecurrence(_ context.Context, r schedule.Recurrence) error {
	return tv.state.createRecurrence(r)
}

func (tv *txMemoryView) GetRecurrence(_ context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) (*schedule.Recurrence, error) {
	return tv.state.getRecurrence(owner, id), nil
}

func (tv *txMemoryView) ListRecurrencesByStudent(_ context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Recurrence, error) {
	return tv.state.listRecurrences(owner, studentID), nil
}

func (tv *txMemoryView) UpdateRecurrenceEnd(_ context.Context, owner schedule.OwnerID, id schedule.RecurrenceID, endDate schedule.Date, stoppedAt time.Time) error {
	return tv.state.updateRecurrenceEnd(owner, id, endDate, stoppedAt)
}

func (tv *txMemoryView) InsertLessons(_ context.Context, lessons []schedule.Lesson) error {
	return tv.state.insertLessons(lessons)
}

func (tv *txMemoryView) GetLesson(_ context.Context, owner schedule.OwnerID, id schedule.LessonID) (*schedule.Lesson, error) {
	return tv.state.getLesson(owner, id), nil
}

func (tv *txMemoryView) ListLessonsByRecurrence(_ context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) ([]schedule.Lesson, error) {
	return tv.state.listLessons(owner, func(l schedule.Lesson) bool {
		return l.RecurrenceID != nil && *l.RecurrenceID == id
	}), nil
}

func (tv *txMemoryView) ListLessons(_ context.Context, owner schedule.OwnerID, filter schedule.LessonFilter) ([]schedule.Lesson, error) {
	return tv.state.listLessons(owner, filter.Matches), nil
}

func (tv *txMemoryView) UpdateLesson(_ context.Context, l schedule.Lesson) error {
	return tv.state.updateLesson(l)
}

func (tv *txMemoryView) DeleteLesson(_ context.Context, owner schedule.OwnerID, id schedule.LessonID) error {
	return tv.state.deleteLesson(owner, id)
}

func (tv *txMemoryView) GetSettings(_ context.Context, owner schedule.OwnerID) (schedule.Settings, error) {
	return tv.state.getSettings(owner), nil
}

func (tv *txMemoryView) SaveSettings(_ context.Context, s schedule.Settings) error {
	s.UpdatedAt = time.Now().UTC()
	tv.state.settings[s.OwnerID] = s
	return nil
}

// =============================================================================
// UNLOCKED STATE OPERATIONS
// =============================================================================

func (s *memoryState) saveStudent(st schedule.Student) error {
	if existing, ok := s.students[st.ID]; ok && existing.OwnerID != st.OwnerID {
		return schedule.NotFound("student", string(st.ID))
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	s.students[st.ID] = st
	return nil
}

func (s *memoryState) getStudent(owner schedule.OwnerID, id schedule.StudentID) *schedule.Student {
	st, ok := s.students[id]
	if !ok || st.OwnerID != owner {
		return nil
	}
	return &st
}

func (s *memoryState) listStudents(owner schedule.OwnerID) []schedule.Student {
	var result []schedule.Student
	for _, st := range s.students {
		if st.OwnerID == owner {
			result = append(result, st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (s *memoryState) createRecurrence(r schedule.Recurrence) error {
	if _, ok := s.recurrences[r.ID]; ok {
		return schedule.Persistence("create recurrence", errDuplicate(string(r.ID)))
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.recurrences[r.ID] = cloneRecurrence(r)
	return nil
}

func (s *memoryState) getRecurrence(owner schedule.OwnerID, id schedule.RecurrenceID) *schedule.Recurrence {
	r, ok := s.recurrences[id]
	if !ok || r.OwnerID != owner {
		return nil
	}
	r = cloneRecurrence(r)
	return &r
}

func (s *memoryState) listRecurrences(owner schedule.OwnerID, studentID schedule.StudentID) []schedule.Recurrence {
	var result []schedule.Recurrence
	for _, r := range s.recurrences {
		if r.OwnerID == owner && r.StudentID == studentID {
			result = append(result, cloneRecurrence(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (s *memoryState) updateRecurrenceEnd(owner schedule.OwnerID, id schedule.RecurrenceID, endDate schedule.Date, stoppedAt time.Time) error {
	r, ok := s.recurrences[id]
	if !ok || r.OwnerID != owner {
		return schedule.NotFound("recurrence", string(id))
	}
	r.EndDate = &endDate
	r.StoppedAt = &stoppedAt
	s.recurrences[id] = r
	return nil
}

func (s *memoryState) insertLessons(lessons []schedule.Lesson) error {
	for _, l := range lessons {
		if _, ok := s.lessons[l.ID]; ok {
			return schedule.Persistence("insert lessons", errDuplicate(string(l.ID)))
		}
	}
	now := time.Now().UTC()
	for _, l := range lessons {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		s.lessons[l.ID] = l
	}
	return nil
}

func (s *memoryState) getLesson(owner schedule.OwnerID, id schedule.LessonID) *schedule.Lesson {
	l, ok := s.lessons[id]
	if !ok || l.OwnerID != owner {
		return nil
	}
	return &l
}

func (s *memoryState) listLessons(owner schedule.OwnerID, keep func(schedule.Lesson) bool) []schedule.Lesson {
	var result []schedule.Lesson
	for _, l := range s.lessons {
		if l.OwnerID == owner && keep(l) {
			result = append(result, l)
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

func (s *memoryState) updateLesson(l schedule.Lesson) error {
	existing, ok := s.lessons[l.ID]
	if !ok || existing.OwnerID != l.OwnerID {
		return schedule.NotFound("lesson", string(l.ID))
	}
	l.CreatedAt = existing.CreatedAt
	s.lessons[l.ID] = l
	return nil
}

func (s *memoryState) deleteLesson(owner schedule.OwnerID, id schedule.LessonID) error {
	existing, ok := s.lessons[id]
	if !ok || existing.OwnerID != owner {
		return schedule.NotFound("lesson", string(id))
	}
	delete(s.lessons, id)
	return nil
}

func (s *memoryState) getSettings(owner schedule.OwnerID) schedule.Settings {
	if st, ok := s.settings[owner]; ok {
		return st
	}
	return schedule.DefaultSettings(owner)
}

func cloneRecurrence(r schedule.Recurrence) schedule.Recurrence {
	r.Weekdays = append([]time.Weekday(nil), r.Weekdays...)
	if r.EndDate != nil {
		d := *r.EndDate
		r.EndDate = &d
	}
	if r.RepeatCount != nil {
		n := *r.RepeatCount
		r.RepeatCount = &n
	}
	if r.StoppedAt != nil {
		t := *r.StoppedAt
		r.StoppedAt = &t
	}
	return r
}

type errDuplicate string

func (e errDuplicate) Error() string { return "duplicate id " + string(e) }
