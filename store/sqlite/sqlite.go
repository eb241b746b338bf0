/*
Package sqlite provides a SQLite-backed implementation of schedule.TxStore.

PURPOSE:
  Persists students, recurrences, lessons, owner settings and notes in a single
  SQLite file. Suitable for a single-tutor deployment and for tests
  (":memory:").

INTERFACES IMPLEMENTED:
  schedule.Store:   Row-level reads and writes, owner-scoped
  schedule.TxStore: WithTx over *sql.Tx

KEY TABLES:
  students:    Student identity and default hourly rate
  recurrences: Weekly rules and their validity window (end_date, stopped_at)
  lessons:     Occurrences with their billing snapshot
  settings:    One row per owner; absent row means defaults
  student_notes, homework, calendar_notes: Owner records outside billing

ENCODING:
  - Instants are UTC TEXT in a fixed-width layout, so string order is time order
  - Money and hours are decimal TEXT (no float rounding)
  - Recurrence weekdays are a JSON array of 0-6

CONCURRENCY:
  The pool is limited to one connection. SQLite allows a single writer, and
  ":memory:" databases are per-connection, so one connection keeps both
  correct. Transactions serialize on that connection.

MIGRATION:
  Embedded goose migrations (migrations/*.sql) run on New().

USAGE:
  store, err := sqlite.New("./data/lessons.db", sqlite.WithLogger(logger))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/store/dbmigrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Store implements schedule.TxStore using SQLite.
type Store struct {
	*queries
	db     *sql.DB
	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{db: db}, db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}

	if err := dbmigrate.New(db, "sqlite3", migrations, "migrations", store.logger).Run(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertLessons writes the batch atomically.
func (s *Store) InsertLessons(ctx context.Context, lessons []schedule.Lesson) error {
	return s.WithTx(ctx, func(tx schedule.Store) error {
		return tx.InsertLessons(ctx, lessons)
	})
}

// =============================================================================
// TRANSACTIONAL STORE (schedule.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store schedule.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - shared by *sql.DB and *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// =============================================================================
// STUDENT STORE
// =============================================================================

const studentColumns = `id, owner_id, full_name, subject, phone, email, hourly_rate_default, status, created_at`

func (q *queries) SaveStudent(ctx context.Context, st schedule.Student) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			subject = excluded.subject,
			phone = excluded.phone,
			email = excluded.email,
			hourly_rate_default = excluded.hourly_rate_default,
			status = excluded.status
		WHERE students.owner_id = excluded.owner_id
	`
	_, err := q.db.ExecContext(ctx, query,
		st.ID, st.OwnerID, st.FullName, st.Subject, st.Phone, st.Email,
		st.HourlyRateDefault.String(), st.Status, formatTime(st.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

func (q *queries) GetStudent(ctx context.Context, owner schedule.OwnerID, id schedule.StudentID) (*schedule.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE owner_id = ? AND id = ?`
	st, err := scanStudent(q.db.QueryRowContext(ctx, query, owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (q *queries) ListStudents(ctx context.Context, owner schedule.OwnerID) ([]schedule.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE owner_id = ? ORDER BY created_at DESC, id`
	rows, err := q.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []schedule.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func scanStudent(row scanner) (schedule.Student, error) {
	var (
		st        schedule.Student
		rate      string
		createdAt string
	)
	err := row.Scan(&st.ID, &st.OwnerID, &st.FullName, &st.Subject, &st.Phone, &st.Email, &rate, &st.Status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, err
		}
		return st, fmt.Errorf("failed to scan student: %w", err)
	}
	if st.HourlyRateDefault, err = decimal.NewFromString(rate); err != nil {
		return st, fmt.Errorf("student %s: bad hourly rate %q: %w", st.ID, rate, err)
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return st, err
	}
	return st, nil
}

// =============================================================================
// RECURRENCE STORE
// =============================================================================

const recurrenceColumns = `id, owner_id, student_id, frequency, interval_weeks, weekdays_json, start_at,
	end_date, repeat_count, timezone, stopped_at, created_at`

func (q *queries) CreateRecurrence(ctx context.Context, r schedule.Recurrence) error {
	weekdays, err := json.Marshal(weekdaysToInts(r.Weekdays))
	if err != nil {
		return fmt.Errorf("failed to encode weekdays: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := `INSERT INTO recurrences (` + recurrenceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.db.ExecContext(ctx, query,
		r.ID, r.OwnerID, r.StudentID, r.Frequency, r.IntervalWeeks, string(weekdays),
		formatTime(r.StartAt), nullDate(r.EndDate), nullInt(r.RepeatCount), r.Timezone,
		nullTime(r.StoppedAt), formatTime(r.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("recurrence %s already exists: %w", r.ID, err)
		}
		return fmt.Errorf("failed to create recurrence: %w", err)
	}
	return nil
}

func (q *queries) GetRecurrence(ctx context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) (*schedule.Recurrence, error) {
	query := `SELECT ` + recurrenceColumns + ` FROM recurrences WHERE owner_id = ? AND id = ?`
	r, err := scanRecurrence(q.db.QueryRowContext(ctx, query, owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *queries) ListRecurrencesByStudent(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Recurrence, error) {
	query := `SELECT ` + recurrenceColumns + ` FROM recurrences
		WHERE owner_id = ? AND student_id = ?
		ORDER BY created_at DESC, id`
	rows, err := q.db.QueryContext(ctx, query, owner, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurrences: %w", err)
	}
	defer rows.Close()

	var recs []schedule.Recurrence
	for rows.Next() {
		r, err := scanRecurrence(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (q *queries) UpdateRecurrenceEnd(ctx context.Context, owner schedule.OwnerID, id schedule.RecurrenceID, endDate schedule.Date, stoppedAt time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurrences SET end_date = ?, stopped_at = ? WHERE owner_id = ? AND id = ?`,
		endDate.String(), formatTime(stoppedAt), owner, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update recurrence: %w", err)
	}
	return requireAffected(res, "recurrence", string(id))
}

func scanRecurrence(row scanner) (schedule.Recurrence, error) {
	var (
		r           schedule.Recurrence
		weekdays    string
		startAt     string
		endDate     sql.NullString
		repeatCount sql.NullInt64
		stoppedAt   sql.NullString
		createdAt   string
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.StudentID, &r.Frequency, &r.IntervalWeeks, &weekdays, &startAt,
		&endDate, &repeatCount, &r.Timezone, &stoppedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan recurrence: %w", err)
	}

	var days []int
	if err := json.Unmarshal([]byte(weekdays), &days); err != nil {
		return r, fmt.Errorf("recurrence %s: bad weekdays: %w", r.ID, err)
	}
	r.Weekdays = intsToWeekdays(days)
	if r.StartAt, err = parseTime(startAt); err != nil {
		return r, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if endDate.Valid {
		d, err := schedule.ParseDate(endDate.String)
		if err != nil {
			return r, err
		}
		r.EndDate = &d
	}
	if repeatCount.Valid {
		n := int(repeatCount.Int64)
		r.RepeatCount = &n
	}
	if stoppedAt.Valid {
		t, err := parseTime(stoppedAt.String)
		if err != nil {
			return r, err
		}
		r.StoppedAt = &t
	}
	return r, nil
}

// =============================================================================
// LESSON STORE
// =============================================================================

const lessonColumns = `id, owner_id, student_id, recurrence_id, start_at, end_at, duration_hours, status,
	no_show_rule, hourly_rate, fee_total, payment_status, amount_paid, note, created_at`

// InsertLessons on a transaction view; Store.InsertLessons wraps it in one.
func (q *queries) InsertLessons(ctx context.Context, lessons []schedule.Lesson) error {
	query := `INSERT INTO lessons (` + lessonColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	for _, l := range lessons {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		var recID sql.NullString
		if l.RecurrenceID != nil {
			recID = sql.NullString{String: string(*l.RecurrenceID), Valid: true}
		}
		_, err := q.db.ExecContext(ctx, query,
			l.ID, l.OwnerID, l.StudentID, recID, formatTime(l.StartAt), formatTime(l.EndAt),
			l.DurationHours.String(), l.Status, l.NoShowRule, l.HourlyRate.String(), l.FeeTotal.String(),
			l.PaymentStatus, l.AmountPaid.String(), l.Note, formatTime(l.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("lesson %s already exists: %w", l.ID, err)
			}
			return fmt.Errorf("failed to insert lesson %s: %w", l.ID, err)
		}
	}
	return nil
}

func (q *queries) GetLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID) (*schedule.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE owner_id = ? AND id = ?`
	l, err := scanLesson(q.db.QueryRowContext(ctx, query, owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (q *queries) ListLessonsByRecurrence(ctx context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) ([]schedule.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons
		WHERE owner_id = ? AND recurrence_id = ?
		ORDER BY start_at ASC, id ASC`
	return q.queryLessons(ctx, query, owner, id)
}

func (q *queries) ListLessons(ctx context.Context, owner schedule.OwnerID, filter schedule.LessonFilter) ([]schedule.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE owner_id = ?`
	args := []any{owner}
	if filter.StudentID != "" {
		query += ` AND student_id = ?`
		args = append(args, filter.StudentID)
	}
	if !filter.From.IsZero() {
		query += ` AND start_at >= ?`
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		query += ` AND start_at <= ?`
		args = append(args, formatTime(filter.To))
	}
	query += ` ORDER BY start_at ASC, id ASC`
	return q.queryLessons(ctx, query, args...)
}

func (q *queries) UpdateLesson(ctx context.Context, l schedule.Lesson) error {
	query := `
		UPDATE lessons SET
			student_id = ?, start_at = ?, end_at = ?, duration_hours = ?, status = ?, no_show_rule = ?,
			hourly_rate = ?, fee_total = ?, payment_status = ?, amount_paid = ?, note = ?
		WHERE owner_id = ? AND id = ?
	`
	res, err := q.db.ExecContext(ctx, query,
		l.StudentID, formatTime(l.StartAt), formatTime(l.EndAt), l.DurationHours.String(), l.Status, l.NoShowRule,
		l.HourlyRate.String(), l.FeeTotal.String(), l.PaymentStatus, l.AmountPaid.String(), l.Note,
		l.OwnerID, l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson %s: %w", l.ID, err)
	}
	return requireAffected(res, "lesson", string(l.ID))
}

func (q *queries) DeleteLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM lessons WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete lesson %s: %w", id, err)
	}
	return requireAffected(res, "lesson", string(id))
}

func (q *queries) queryLessons(ctx context.Context, query string, args ...any) ([]schedule.Lesson, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []schedule.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func scanLesson(row scanner) (schedule.Lesson, error) {
	var (
		l                         schedule.Lesson
		recID                     sql.NullString
		startAt, endAt, createdAt string
		duration, rate, fee, paid string
	)
	err := row.Scan(&l.ID, &l.OwnerID, &l.StudentID, &recID, &startAt, &endAt, &duration, &l.Status,
		&l.NoShowRule, &rate, &fee, &l.PaymentStatus, &paid, &l.Note, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return l, err
		}
		return l, fmt.Errorf("failed to scan lesson: %w", err)
	}

	if recID.Valid {
		id := schedule.RecurrenceID(recID.String)
		l.RecurrenceID = &id
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&l.StartAt, startAt}, {&l.EndAt, endAt}, {&l.CreatedAt, createdAt}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return l, err
		}
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&l.DurationHours, duration}, {&l.HourlyRate, rate}, {&l.FeeTotal, fee}, {&l.AmountPaid, paid}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return l, fmt.Errorf("lesson %s: bad decimal %q: %w", l.ID, f.src, err)
		}
	}
	return l, nil
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (q *queries) GetSettings(ctx context.Context, owner schedule.OwnerID) (schedule.Settings, error) {
	var (
		st        = schedule.Settings{OwnerID: owner}
		rate      string
		weekStart int
		updatedAt string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT default_hourly_rate, default_no_show_rule, timezone, workday_start, workday_end, week_start, overdue_days, updated_at
		FROM settings WHERE owner_id = ?`, owner,
	).Scan(&rate, &st.DefaultNoShowRule, &st.Timezone, &st.WorkdayStart, &st.WorkdayEnd, &weekStart, &st.OverdueDays, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.DefaultSettings(owner), nil
	}
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if st.DefaultHourlyRate, err = decimal.NewFromString(rate); err != nil {
		return schedule.Settings{}, fmt.Errorf("settings: bad hourly rate %q: %w", rate, err)
	}
	st.WeekStart = time.Weekday(weekStart)
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return schedule.Settings{}, err
	}
	return st, nil
}

func (q *queries) SaveSettings(ctx context.Context, st schedule.Settings) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings (owner_id, default_hourly_rate, default_no_show_rule, timezone,
			workday_start, workday_end, week_start, overdue_days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			default_hourly_rate = excluded.default_hourly_rate,
			default_no_show_rule = excluded.default_no_show_rule,
			timezone = excluded.timezone,
			workday_start = excluded.workday_start,
			workday_end = excluded.workday_end,
			week_start = excluded.week_start,
			overdue_days = excluded.overdue_days,
			updated_at = excluded.updated_at`,
		st.OwnerID, st.DefaultHourlyRate.String(), st.DefaultNoShowRule, st.Timezone,
		st.WorkdayStart, st.WorkdayEnd, int(st.WeekStart), st.OverdueDays, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullDate(d *schedule.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func weekdaysToInts(days []time.Weekday) []int {
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

func intsToWeekdays(days []int) []time.Weekday {
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return schedule.NotFound(kind, id)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique)
}
