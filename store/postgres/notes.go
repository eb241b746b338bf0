package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

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
	_, err := q.db.Exec(ctx, `INSERT INTO student_notes (`+noteColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(n.ID), string(n.OwnerID), string(n.StudentID), n.Text, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("note %s already exists: %w", n.ID, err)
		}
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

func (q *queries) GetNote(ctx context.Context, owner schedule.OwnerID, id schedule.NoteID) (*schedule.Note, error) {
	n, err := scanNote(q.db.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM student_notes WHERE owner_id = $1 AND id = $2`, string(owner), string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (q *queries) ListNotes(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Note, error) {
	rows, err := q.db.Query(ctx, `SELECT `+noteColumns+` FROM student_notes
		WHERE owner_id = $1 AND student_id = $2
		ORDER BY created_at DESC, id`, string(owner), string(studentID))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
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
	tag, err := q.db.Exec(ctx,
		`UPDATE student_notes SET text = $1, updated_at = $2 WHERE owner_id = $3 AND id = $4`,
		n.Text, n.UpdatedAt.UTC(), string(n.OwnerID), string(n.ID))
	if err != nil {
		return fmt.Errorf("update note %s: %w", n.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("note", string(n.ID))
	}
	return nil
}

func (q *queries) DeleteNote(ctx context.Context, owner schedule.OwnerID, id schedule.NoteID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM student_notes WHERE owner_id = $1 AND id = $2`, string(owner), string(id))
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("note", string(id))
	}
	return nil
}

func scanNote(row pgx.Row) (schedule.Note, error) {
	var (
		n                    schedule.Note
		id, owner, studentID string
	)
	err := row.Scan(&id, &owner, &studentID, &n.Text, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return n, err
		}
		return n, fmt.Errorf("scan note: %w", err)
	}
	n.ID = schedule.NoteID(id)
	n.OwnerID = schedule.OwnerID(owner)
	n.StudentID = schedule.StudentID(studentID)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

// =============================================================================
// HOMEWORK
// =============================================================================

const homeworkColumns = `id, owner_id, student_id, title, description, due_date::text, status, created_at, updated_at`

func (q *queries) CreateHomework(ctx context.Context, h schedule.Homework) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO homework (id, owner_id, student_id, title, description, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)`,
		string(h.ID), string(h.OwnerID), string(h.StudentID), h.Title, h.Description, dateArg(h.DueDate),
		string(h.Status), h.CreatedAt.UTC(), h.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("homework %s already exists: %w", h.ID, err)
		}
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

func (q *queries) GetHomework(ctx context.Context, owner schedule.OwnerID, id schedule.HomeworkID) (*schedule.Homework, error) {
	h, err := scanHomework(q.db.QueryRow(ctx,
		`SELECT `+homeworkColumns+` FROM homework WHERE owner_id = $1 AND id = $2`, string(owner), string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (q *queries) ListHomework(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID, status schedule.HomeworkStatus) ([]schedule.Homework, error) {
	query := `SELECT ` + homeworkColumns + ` FROM homework WHERE owner_id = $1 AND student_id = $2`
	args := []any{string(owner), string(studentID)}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list homework: %w", err)
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
	tag, err := q.db.Exec(ctx, `
		UPDATE homework SET title = $1, description = $2, due_date = $3::date, status = $4, updated_at = $5
		WHERE owner_id = $6 AND id = $7`,
		h.Title, h.Description, dateArg(h.DueDate), string(h.Status), h.UpdatedAt.UTC(),
		string(h.OwnerID), string(h.ID),
	)
	if err != nil {
		return fmt.Errorf("update homework %s: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("homework", string(h.ID))
	}
	return nil
}

func (q *queries) DeleteHomework(ctx context.Context, owner schedule.OwnerID, id schedule.HomeworkID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM homework WHERE owner_id = $1 AND id = $2`, string(owner), string(id))
	if err != nil {
		return fmt.Errorf("delete homework %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("homework", string(id))
	}
	return nil
}

func scanHomework(row pgx.Row) (schedule.Homework, error) {
	var (
		h                            schedule.Homework
		id, owner, studentID, status string
		dueDate                      *string
	)
	err := row.Scan(&id, &owner, &studentID, &h.Title, &h.Description, &dueDate, &status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return h, err
		}
		return h, fmt.Errorf("scan homework: %w", err)
	}
	h.ID = schedule.HomeworkID(id)
	h.OwnerID = schedule.OwnerID(owner)
	h.StudentID = schedule.StudentID(studentID)
	h.Status = schedule.HomeworkStatus(status)
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	if dueDate != nil {
		d, err := schedule.ParseDate(*dueDate)
		if err != nil {
			return h, err
		}
		h.DueDate = &d
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
	_, err := q.db.Exec(ctx, `INSERT INTO calendar_notes (`+calendarNoteColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(n.ID), string(n.OwnerID), n.Title, n.StartAt.UTC(), n.EndAt.UTC(), n.Note, n.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("calendar note %s already exists: %w", n.ID, err)
		}
		return fmt.Errorf("create calendar note: %w", err)
	}
	return nil
}

func (q *queries) ListCalendarNotes(ctx context.Context, owner schedule.OwnerID, filter schedule.CalendarNoteFilter) ([]schedule.CalendarNote, error) {
	query := `SELECT ` + calendarNoteColumns + ` FROM calendar_notes WHERE owner_id = $1`
	args := []any{string(owner)}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += fmt.Sprintf(` AND start_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += fmt.Sprintf(` AND start_at <= $%d`, len(args))
	}
	query += ` ORDER BY start_at, id`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calendar notes: %w", err)
	}
	defer rows.Close()

	var notes []schedule.CalendarNote
	for rows.Next() {
		var (
			n         schedule.CalendarNote
			id, owner string
		)
		if err := rows.Scan(&id, &owner, &n.Title, &n.StartAt, &n.EndAt, &n.Note, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar note: %w", err)
		}
		n.ID = schedule.CalendarNoteID(id)
		n.OwnerID = schedule.OwnerID(owner)
		n.StartAt = n.StartAt.UTC()
		n.EndAt = n.EndAt.UTC()
		n.CreatedAt = n.CreatedAt.UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (q *queries) DeleteCalendarNote(ctx context.Context, owner schedule.OwnerID, id schedule.CalendarNoteID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM calendar_notes WHERE owner_id = $1 AND id = $2`, string(owner), string(id))
	if err != nil {
		return fmt.Errorf("delete calendar note %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("calendar note", string(id))
	}
	return nil
}

// dateArg renders an optional date for a $n::date placeholder.
func dateArg(d *schedule.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
