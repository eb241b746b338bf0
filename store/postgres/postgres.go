/*
Package postgres provides a PostgreSQL implementation of schedule.TxStore on a pgx pool.

PURPOSE:
  Multi-tutor deployments. Same tables and owner scoping as store/sqlite,
  with native types: TIMESTAMPTZ instants, NUMERIC money, DATE end dates and
  INTEGER[] weekdays.

NUMERIC HANDLING:
  Money and hours are written as decimal strings and read back with ::text,
  so values never pass through float64.

TRANSACTIONS:
  WithTx runs fn against a pgx.Tx; the pool and the transaction share one
  query implementation through the querier interface.

MIGRATION:
  Embedded goose migrations run through a database/sql handle opened on the
  pool (stdlib.OpenDBFromPool).
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/store/dbmigrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	*queries
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to dsn and applies pending migrations.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := dbmigrate.New(db, "postgres", migrations, "migrations", logger).Run(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{queries: &queries{db: pool}, pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Reset removes every row. Used by tests.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE calendar_notes, homework, student_notes, lessons, recurrences, students, settings`)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// InsertLessons writes the batch atomically.
func (s *Store) InsertLessons(ctx context.Context, lessons []schedule.Lesson) error {
	return s.WithTx(ctx, func(tx schedule.Store) error {
		return tx.InsertLessons(ctx, lessons)
	})
}

func (s *Store) WithTx(ctx context.Context, fn func(store schedule.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db querier
}

// =============================================================================
// STUDENTS
// =============================================================================

const studentColumns = `id, owner_id, full_name, subject, phone, email, hourly_rate_default::text, status, created_at`

func (q *queries) SaveStudent(ctx context.Context, st schedule.Student) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO students (id, owner_id, full_name, subject, phone, email, hourly_rate_default, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			subject = EXCLUDED.subject,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			hourly_rate_default = EXCLUDED.hourly_rate_default,
			status = EXCLUDED.status
		WHERE students.owner_id = EXCLUDED.owner_id`,
		string(st.ID), string(st.OwnerID), st.FullName, st.Subject, st.Phone, st.Email,
		st.HourlyRateDefault.String(), string(st.Status), st.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	return nil
}

func (q *queries) GetStudent(ctx context.Context, owner schedule.OwnerID, id schedule.StudentID) (*schedule.Student, error) {
	st, err := scanStudent(q.db.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE owner_id = $1 AND id = $2`, string(owner), string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (q *queries) ListStudents(ctx context.Context, owner schedule.OwnerID) ([]schedule.Student, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE owner_id = $1 ORDER BY created_at DESC, id`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
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

func scanStudent(row pgx.Row) (schedule.Student, error) {
	var (
		st                schedule.Student
		id, owner, status string
		rate              string
	)
	err := row.Scan(&id, &owner, &st.FullName, &st.Subject, &st.Phone, &st.Email, &rate, &status, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return st, err
		}
		return st, fmt.Errorf("scan student: %w", err)
	}
	st.ID = schedule.StudentID(id)
	st.OwnerID = schedule.OwnerID(owner)
	st.Status = schedule.StudentStatus(status)
	st.CreatedAt = st.CreatedAt.UTC()
	if st.HourlyRateDefault, err = decimal.NewFromString(rate); err != nil {
		return st, fmt.Errorf("student %s: bad hourly rate %q: %w", id, rate, err)
	}
	return st, nil
}

// =============================================================================
// RECURRENCES
// =============================================================================

const recurrenceColumns = `id, owner_id, student_id, frequency, interval_weeks, weekdays, start_at,
	end_date::text, repeat_count, timezone, stopped_at, created_at`

func (q *queries) CreateRecurrence(ctx context.Context, r schedule.Recurrence) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	var endDate *string
	if r.EndDate != nil {
		s := r.EndDate.String()
		endDate = &s
	}
	var repeatCount *int32
	if r.RepeatCount != nil {
		n := int32(*r.RepeatCount)
		repeatCount = &n
	}
	var stoppedAt *time.Time
	if r.StoppedAt != nil {
		t := r.StoppedAt.UTC()
		stoppedAt = &t
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO recurrences (id, owner_id, student_id, frequency, interval_weeks, weekdays, start_at,
			end_date, repeat_count, timezone, stopped_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9, $10, $11, $12)`,
		string(r.ID), string(r.OwnerID), string(r.StudentID), string(r.Frequency), int32(r.IntervalWeeks),
		weekdaysToInt32(r.Weekdays), r.StartAt.UTC(), endDate, repeatCount, r.Timezone, stoppedAt, r.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("recurrence %s already exists: %w", r.ID, err)
		}
		return fmt.Errorf("create recurrence: %w", err)
	}
	return nil
}

func (q *queries) GetRecurrence(ctx context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) (*schedule.Recurrence, error) {
	r, err := scanRecurrence(q.db.QueryRow(ctx,
		`SELECT `+recurrenceColumns+` FROM recurrences WHERE owner_id = $1 AND id = $2`, string(owner), string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *queries) ListRecurrencesByStudent(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]schedule.Recurrence, error) {
	rows, err := q.db.Query(ctx, `SELECT `+recurrenceColumns+` FROM recurrences
		WHERE owner_id = $1 AND student_id = $2
		ORDER BY created_at DESC, id`, string(owner), string(studentID))
	if err != nil {
		return nil, fmt.Errorf("list recurrences: %w", err)
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
	tag, err := q.db.Exec(ctx,
		`UPDATE recurrences SET end_date = $1::date, stopped_at = $2 WHERE owner_id = $3 AND id = $4`,
		endDate.String(), stoppedAt.UTC(), string(owner), string(id))
	if err != nil {
		return fmt.Errorf("update recurrence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("recurrence", string(id))
	}
	return nil
}

func scanRecurrence(row pgx.Row) (schedule.Recurrence, error) {
	var (
		r                               schedule.Recurrence
		id, owner, studentID, frequency string
		interval                        int32
		weekdays                        []int32
		endDate                         *string
		repeatCount                     *int32
		stoppedAt                       *time.Time
	)
	err := row.Scan(&id, &owner, &studentID, &frequency, &interval, &weekdays, &r.StartAt,
		&endDate, &repeatCount, &r.Timezone, &stoppedAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan recurrence: %w", err)
	}

	r.ID = schedule.RecurrenceID(id)
	r.OwnerID = schedule.OwnerID(owner)
	r.StudentID = schedule.StudentID(studentID)
	r.Frequency = schedule.Frequency(frequency)
	r.IntervalWeeks = int(interval)
	r.Weekdays = int32ToWeekdays(weekdays)
	r.StartAt = r.StartAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	if endDate != nil {
		d, err := schedule.ParseDate(*endDate)
		if err != nil {
			return r, err
		}
		r.EndDate = &d
	}
	if repeatCount != nil {
		n := int(*repeatCount)
		r.RepeatCount = &n
	}
	if stoppedAt != nil {
		t := stoppedAt.UTC()
		r.StoppedAt = &t
	}
	return r, nil
}

// =============================================================================
// LESSONS
// =============================================================================

const lessonColumns = `id, owner_id, student_id, recurrence_id, start_at, end_at, duration_hours::text, status,
	no_show_rule, hourly_rate::text, fee_total::text, payment_status, amount_paid::text, note, created_at`

func (q *queries) InsertLessons(ctx context.Context, lessons []schedule.Lesson) error {
	now := time.Now()
	for _, l := range lessons {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		var recID *string
		if l.RecurrenceID != nil {
			s := string(*l.RecurrenceID)
			recID = &s
		}
		_, err := q.db.Exec(ctx, `
			INSERT INTO lessons (id, owner_id, student_id, recurrence_id, start_at, end_at, duration_hours, status,
				no_show_rule, hourly_rate, fee_total, payment_status, amount_paid, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			string(l.ID), string(l.OwnerID), string(l.StudentID), recID, l.StartAt.UTC(), l.EndAt.UTC(),
			l.DurationHours.String(), string(l.Status), string(l.NoShowRule), l.HourlyRate.String(),
			l.FeeTotal.String(), string(l.PaymentStatus), l.AmountPaid.String(), l.Note, l.CreatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("lesson %s already exists: %w", l.ID, err)
			}
			return fmt.Errorf("insert lesson %s: %w", l.ID, err)
		}
	}
	return nil
}

func (q *queries) GetLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID) (*schedule.Lesson, error) {
	l, err := scanLesson(q.db.QueryRow(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE owner_id = $1 AND id = $2`, string(owner), string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (q *queries) ListLessonsByRecurrence(ctx context.Context, owner schedule.OwnerID, id schedule.RecurrenceID) ([]schedule.Lesson, error) {
	return q.queryLessons(ctx, `SELECT `+lessonColumns+` FROM lessons
		WHERE owner_id = $1 AND recurrence_id = $2
		ORDER BY start_at, id`, string(owner), string(id))
}

func (q *queries) ListLessons(ctx context.Context, owner schedule.OwnerID, filter schedule.LessonFilter) ([]schedule.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE owner_id = $1`
	args := []any{string(owner)}
	if filter.StudentID != "" {
		args = append(args, string(filter.StudentID))
		query += fmt.Sprintf(` AND student_id = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += fmt.Sprintf(` AND start_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += fmt.Sprintf(` AND start_at <= $%d`, len(args))
	}
	query += ` ORDER BY start_at, id`
	return q.queryLessons(ctx, query, args...)
}

func (q *queries) UpdateLesson(ctx context.Context, l schedule.Lesson) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE lessons SET
			student_id = $1, start_at = $2, end_at = $3, duration_hours = $4, status = $5, no_show_rule = $6,
			hourly_rate = $7, fee_total = $8, payment_status = $9, amount_paid = $10, note = $11
		WHERE owner_id = $12 AND id = $13`,
		string(l.StudentID), l.StartAt.UTC(), l.EndAt.UTC(), l.DurationHours.String(), string(l.Status),
		string(l.NoShowRule), l.HourlyRate.String(), l.FeeTotal.String(), string(l.PaymentStatus),
		l.AmountPaid.String(), l.Note, string(l.OwnerID), string(l.ID),
	)
	if err != nil {
		return fmt.Errorf("update lesson %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("lesson", string(l.ID))
	}
	return nil
}

func (q *queries) DeleteLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM lessons WHERE owner_id = $1 AND id = $2`, string(owner), string(id))
	if err != nil {
		return fmt.Errorf("delete lesson %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound("lesson", string(id))
	}
	return nil
}

func (q *queries) queryLessons(ctx context.Context, query string, args ...any) ([]schedule.Lesson, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
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

func scanLesson(row pgx.Row) (schedule.Lesson, error) {
	var (
		l                         schedule.Lesson
		id, owner, studentID      string
		recID                     *string
		status, rule, payment     string
		duration, rate, fee, paid string
	)
	err := row.Scan(&id, &owner, &studentID, &recID, &l.StartAt, &l.EndAt, &duration, &status,
		&rule, &rate, &fee, &payment, &paid, &l.Note, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return l, err
		}
		return l, fmt.Errorf("scan lesson: %w", err)
	}

	l.ID = schedule.LessonID(id)
	l.OwnerID = schedule.OwnerID(owner)
	l.StudentID = schedule.StudentID(studentID)
	if recID != nil {
		r := schedule.RecurrenceID(*recID)
		l.RecurrenceID = &r
	}
	l.Status = schedule.LessonStatus(status)
	l.NoShowRule = schedule.NoShowRule(rule)
	l.PaymentStatus = schedule.PaymentStatus(payment)
	l.StartAt = l.StartAt.UTC()
	l.EndAt = l.EndAt.UTC()
	l.CreatedAt = l.CreatedAt.UTC()

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&l.DurationHours, duration}, {&l.HourlyRate, rate}, {&l.FeeTotal, fee}, {&l.AmountPaid, paid}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return l, fmt.Errorf("lesson %s: bad decimal %q: %w", id, f.src, err)
		}
	}
	return l, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (q *queries) GetSettings(ctx context.Context, owner schedule.OwnerID) (schedule.Settings, error) {
	st := schedule.Settings{OwnerID: owner}
	var (
		rate, rule         string
		weekStart, overdue int32
	)
	err := q.db.QueryRow(ctx, `
		SELECT default_hourly_rate::text, default_no_show_rule, timezone, workday_start, workday_end, week_start, overdue_days, updated_at
		FROM settings WHERE owner_id = $1`, string(owner),
	).Scan(&rate, &rule, &st.Timezone, &st.WorkdayStart, &st.WorkdayEnd, &weekStart, &overdue, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.DefaultSettings(owner), nil
	}
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if st.DefaultHourlyRate, err = decimal.NewFromString(rate); err != nil {
		return schedule.Settings{}, fmt.Errorf("settings: bad hourly rate %q: %w", rate, err)
	}
	st.DefaultNoShowRule = schedule.NoShowRule(rule)
	st.WeekStart = time.Weekday(weekStart)
	st.OverdueDays = int(overdue)
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func (q *queries) SaveSettings(ctx context.Context, st schedule.Settings) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO settings (owner_id, default_hourly_rate, default_no_show_rule, timezone,
			workday_start, workday_end, week_start, overdue_days, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			default_hourly_rate = EXCLUDED.default_hourly_rate,
			default_no_show_rule = EXCLUDED.default_no_show_rule,
			timezone = EXCLUDED.timezone,
			workday_start = EXCLUDED.workday_start,
			workday_end = EXCLUDED.workday_end,
			week_start = EXCLUDED.week_start,
			overdue_days = EXCLUDED.overdue_days,
			updated_at = NOW()`,
		string(st.OwnerID), st.DefaultHourlyRate.String(), string(st.DefaultNoShowRule), st.Timezone,
		st.WorkdayStart, st.WorkdayEnd, int32(st.WeekStart), int32(st.OverdueDays),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func weekdaysToInt32(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func int32ToWeekdays(days []int32) []time.Weekday {
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
