package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// STUDENT NOTES
// =============================================================================

const noteColumns = `id, owner_id, student_id, text, created_at, updated_at`

func (q *queries) CreateNote(ctx context.Context, n schedule.Note) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO student_notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.StudentID, n.Text, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("note %s already exists: %w", n.ID, err)
		}
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (q *queries) GetNote(ctx context.Context, owner schedule.OwnerID, id schedule.NoteID) (*schedule.Note, error) {
	n, err := scanNote(q.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM student_notes WHERE owner_id = ? AND id = ?`, owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (q *queries) ListNotes(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Note, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM student_notes
		WHERE owner_id = ? AND student_id = ?
		ORDER BY created_at DESC, id`, owner, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []schedule.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (q *queries) UpdateNote(ctx context.Context, n schedule.Note) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE student_notes SET text = ?, updated_at = ? WHERE owner_id = ? AND id = ?`,
		n.Text, formatTime(n.UpdatedAt), n.OwnerID, n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note %s: %w", n.ID, err)
	}
	return requireAffected(res, "note", string(n.ID))
}

func (q *queries) DeleteNote(ctx context.Context, owner schedule.OwnerID, id schedule.NoteID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM student_notes WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return requireAffected(res, "note", string(id))
}

func scanNote(row scanner) (schedule.Note, error) {
	var (
		n                    schedule.Note
		createdAt, updatedAt string
	)
	err := row.Scan(&n.ID, &n.OwnerID, &n.StudentID, &n.Text, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return n, err
		}
		return n, fmt.Errorf("failed to scan note: %w", err)
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return n, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return n, err
	}
	return n, nil
}

// =============================================================================
// HOMEWORK
// =============================================================================

const homeworkColumns = `id, owner_id, student_id, title, description, due_date, status, created_at, updated_at`

func (q *queries) CreateHomework(ctx context.Context, h schedule.Homework) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO homework (`+homeworkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.OwnerID, h.StudentID, h.Title, h.Description, nullDate(h.DueDate), h.Status,
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("homework %s already exists: %w", h.ID, err)
		}
		return fmt.Errorf("failed to create homework: %w", err)
	}
	return nil
}

func (q *queries) GetHomework(ctx context.Context, owner schedule.OwnerID, id schedule.HomeworkID) (*schedule.Homework, error) {
	h, err := scanHomework(q.db.QueryRowContext(ctx,
		`SELECT `+homeworkColumns+` FROM homework WHERE owner_id = ? AND id = ?`, owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (q *queries) ListHomework(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID, status schedule.HomeworkStatus) ([]schedule.Homework, error) {
	query := `SELECT ` + homeworkColumns + ` FROM homework WHERE owner_id = ? AND student_id = ?`
	args := []any{owner, studentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query homework: %w", err)
	}
	defer rows.Close()

	var list []schedule.Homework
	for rows.Next() {
		h, err := scanHomework(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

func (q *queries) UpdateHomework(ctx context.Context, h schedule.Homework) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE homework SET title = ?, description = ?, due_date = ?, status = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		h.Title, h.Description, nullDate(h.DueDate), h.Status, formatTime(h.UpdatedAt), h.OwnerID, h.ID)
	if err != nil {
		return fmt.Errorf("failed to update homework %s: %w", h.ID, err)
	}
	return requireAffected(res, "homework", string(h.ID))
}

func (q *queries) DeleteHomework(ctx context.Context, owner schedule.OwnerID, id schedule.HomeworkID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM homework WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete homework %s: %w", id, err)
	}
	return requireAffected(res, "homework", string(id))
}

func scanHomework(row scanner) (schedule.Homework, error) {
	var (
		h                    schedule.Homework
		dueDate              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&h.ID, &h.OwnerID, &h.StudentID, &h.Title, &h.Description, &dueDate, &h.Status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, err
		}
		return h, fmt.Errorf("failed to scan homework: %w", err)
	}
	if dueDate.Valid {
		d, err := schedule.ParseDate(dueDate.String)
		if err != nil {
			return h, err
		}
		h.DueDate = &d
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return h, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return h, err
	}
	return h, nil
}

// =============================================================================
// CALENDAR NOTES
// =============================================================================

const calendarNoteColumns = `id, owner_id, title, start_at, end_at, note, created_at`

func (q *queries) CreateCalendarNote(ctx context.Context, n schedule.CalendarNote) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := q.db.ExecContext(ctx, `INSERT INTO calendar_notes (`+calendarNoteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.Title, formatTime(n.StartAt), formatTime(n.EndAt), n.Note, formatTime(n.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("calendar note %s already exists: %w", n.ID, err)
		}
		return fmt.Errorf("failed to create calendar note: %w", err)
	}
	return nil
}

func (q *queries) ListCalendarNotes(ctx context.Context, owner schedule.OwnerID, filter schedule.CalendarNoteFilter) ([]schedule.CalendarNote, error) {
	query := `SELECT ` + calendarNoteColumns + ` FROM calendar_notes WHERE owner_id = ?`
	args := []any{owner}
	if !filter.From.IsZero() {
		query += ` AND start_at >= ?`
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		query += ` AND start_at <= ?`
		args = append(args, formatTime(filter.To))
	}
	query += ` ORDER BY start_at ASC, id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar notes: %w", err)
	}
	defer rows.Close()

	var notes []schedule.CalendarNote
	for rows.Next() {
		var (
			n                         schedule.CalendarNote
			startAt, endAt, createdAt string
		)
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &startAt, &endAt, &n.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan calendar note: %w", err)
		}
		for _, f := range []struct {
			dst *time.Time
			src string
		}{{&n.StartAt, startAt}, {&n.EndAt, endAt}, {&n.CreatedAt, createdAt}} {
			if *f.dst, err = parseTime(f.src); err != nil {
				return nil, err
			}
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (q *queries) DeleteCalendarNote(ctx context.Context, owner schedule.OwnerID, id schedule.CalendarNoteID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM calendar_notes WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar note %s: %w", id, err)
	}
	return requireAffected(res, "calendar note", string(id))
}
