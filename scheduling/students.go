package scheduling

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// STUDENTS
// =============================================================================

type StudentInput struct {
	FullName          string
	Subject           string
	Phone             string
	Email             string
	HourlyRateDefault decimal.Decimal
	Status            schedule.StudentStatus
}

func (in StudentInput) Validate() error {
	if len(strings.TrimSpace(in.FullName)) < 2 {
		return schedule.Invalid("full_name", "must be at least 2 characters")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return schedule.Invalid("email", "is not a valid address")
		}
	}
	if in.HourlyRateDefault.IsNegative() {
		return schedule.Invalid("hourly_rate_default", "must not be negative")
	}
	if in.Status != "" && in.Status != schedule.StudentActive && in.Status != schedule.StudentPassive {
		return schedule.Invalid("status", "must be ACTIVE or PASSIVE")
	}
	return nil
}

func (s *Service) CreateStudent(ctx context.Context, owner schedule.OwnerID, in StudentInput) (*schedule.Student, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = schedule.StudentActive
	}

	st := schedule.Student{
		ID:                schedule.StudentID(schedule.NewID()),
		OwnerID:           owner,
		FullName:          strings.TrimSpace(in.FullName),
		Subject:           strings.TrimSpace(in.Subject),
		Phone:             strings.TrimSpace(in.Phone),
		Email:             strings.TrimSpace(in.Email),
		HourlyRateDefault: finance.Round2(in.HourlyRateDefault),
		Status:            status,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.store.SaveStudent(ctx, st); err != nil {
		return nil, schedule.Persistence("save student", err)
	}

	s.logger.Info("student created", zap.String("owner", string(owner)), zap.String("student_id", string(st.ID)))
	return &st, nil
}

// StudentDetail is a student with their lessons and running balance.
type StudentDetail struct {
	Student schedule.Student
	Lessons []schedule.Lesson
	Balance finance.StudentBalance
}

func (s *Service) GetStudent(ctx context.Context, owner schedule.OwnerID, id schedule.StudentID) (*StudentDetail, error) {
	st, err := s.store.GetStudent(ctx, owner, id)
	if err != nil {
		return nil, schedule.Persistence("load student", err)
	}
	if st == nil {
		return nil, schedule.NotFound("student", string(id))
	}
	lessons, err := s.store.ListLessons(ctx, owner, schedule.LessonFilter{StudentID: id})
	if err != nil {
		return nil, schedule.Persistence("list lessons", err)
	}
	return &StudentDetail{Student: *st, Lessons: lessons, Balance: finance.Balance(lessons)}, nil
}

// StudentSummary is a row of the student list.
type StudentSummary struct {
	Student schedule.Student
	Balance finance.StudentBalance
}

func (s *Service) ListStudents(ctx context.Context, owner schedule.OwnerID) ([]StudentSummary, error) {
	students, err := s.store.ListStudents(ctx, owner)
	if err != nil {
		return nil, schedule.Persistence("list students", err)
	}
	lessons, err := s.store.ListLessons(ctx, owner, schedule.LessonFilter{})
	if err != nil {
		return nil, schedule.Persistence("list lessons", err)
	}
	balances := finance.BalancesByStudent(lessons)

	result := make([]StudentSummary, len(students))
	for i, st := range students {
		b, ok := balances[st.ID]
		if !ok {
			b = finance.StudentBalance{TotalFee: decimal.Zero, TotalPaid: decimal.Zero, Remaining: decimal.Zero}
		}
		result[i] = StudentSummary{Student: st, Balance: b}
	}
	return result, nil
}

// =============================================================================
// SERIES PER STUDENT
// =============================================================================

// SeriesSummary describes one recurrence of a student.
type SeriesSummary struct {
	Recurrence   schedule.Recurrence
	IsActive     bool
	NextLessonAt *time.Time
	FutureCount  int
	// DurationHours is taken from the first lesson of the series, 1 when it has none.
	DurationHours decimal.Decimal
}

// SummarizeSeries computes activity for rec from its lessons (ascending).
func SummarizeSeries(rec schedule.Recurrence, lessons []schedule.Lesson, now time.Time, loc *time.Location) SeriesSummary {
	sum := SeriesSummary{
		Recurrence:    rec,
		IsActive:      rec.ActiveOn(schedule.DateOf(now.In(loc))),
		DurationHours: decimal.NewFromInt(1),
	}
	if len(lessons) > 0 {
		sum.DurationHours = lessons[0].DurationHours
	}
	for _, l := range lessons {
		if l.Status == schedule.StatusCancelled || l.StartAt.Before(now) {
			continue
		}
		if sum.NextLessonAt == nil {
			next := l.StartAt
			sum.NextLessonAt = &next
		}
		sum.FutureCount++
	}
	return sum
}

// ListSeries returns the student's recurrences, active ones first, newest first
// within each group.
func (s *Service) ListSeries(ctx context.Context, owner schedule.OwnerID, studentID schedule.StudentID) ([]SeriesSummary, error) {
	st, err := s.store.GetStudent(ctx, owner, studentID)
	if err != nil {
		return nil, schedule.Persistence("load student", err)
	}
	if st == nil {
		return nil, schedule.NotFound("student", string(studentID))
	}
	settings, err := s.loadSettings(ctx, s.store, owner)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.ListRecurrencesByStudent(ctx, owner, studentID)
	if err != nil {
		return nil, schedule.Persistence("list recurrences", err)
	}

	now := s.now()
	result := make([]SeriesSummary, 0, len(recs))
	for _, rec := range recs {
		lessons, err := s.store.ListLessonsByRecurrence(ctx, owner, rec.ID)
		if err != nil {
			return nil, schedule.Persistence("load series", err)
		}
		result = append(result, SummarizeSeries(rec, lessons, now, recurrenceLocation(rec, settings)))
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].IsActive && !result[j].IsActive })
	return result, nil
}
