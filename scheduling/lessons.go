package scheduling

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// STANDALONE LESSONS
// =============================================================================

// LessonInput creates a single lesson outside any series.
type LessonInput struct {
	StudentID     schedule.StudentID
	StartAt       time.Time
	EndAt         time.Time
	DurationHours decimal.Decimal // derived from StartAt/EndAt when zero
	Status        schedule.LessonStatus
	NoShowRule    *schedule.NoShowRule
	HourlyRate    *decimal.Decimal
	PaymentStatus schedule.PaymentStatus
	AmountPaid    decimal.Decimal
	Note          string
}

func (in LessonInput) Validate() error {
	if in.StudentID == "" {
		return schedule.Invalid("student_id", "is required")
	}
	if in.StartAt.IsZero() {
		return schedule.Invalid("start_datetime", "is required")
	}
	if in.EndAt.IsZero() {
		return schedule.Invalid("end_datetime", "is required")
	}
	if !in.EndAt.After(in.StartAt) {
		return schedule.Invalid("end_datetime", "must be after start_datetime")
	}
	if !in.DurationHours.IsZero() {
		if err := checkDuration(in.DurationHours); err != nil {
			return err
		}
	}
	if in.Status != "" && !in.Status.Valid() {
		return schedule.Invalid("status", "must be PLANNED, DONE, NO_SHOW or CANCELLED")
	}
	if in.NoShowRule != nil && !in.NoShowRule.Valid() {
		return schedule.Invalid("no_show_fee_rule", "must be NONE, HALF or FULL")
	}
	if in.HourlyRate != nil && in.HourlyRate.IsNegative() {
		return schedule.Invalid("hourly_rate", "must not be negative")
	}
	if in.PaymentStatus != "" && !in.PaymentStatus.Valid() {
		return schedule.Invalid("payment_status", "must be PAID, UNPAID or PARTIAL")
	}
	if in.AmountPaid.IsNegative() {
		return schedule.Invalid("amount_paid", "must not be negative")
	}
	return nil
}

// CreateLesson stores one standalone lesson with a normalized billing snapshot.
func (s *Service) CreateLesson(ctx context.Context, owner schedule.OwnerID, in LessonInput) (*schedule.Lesson, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created schedule.Lesson
	err := s.store.WithTx(ctx, func(tx schedule.Store) error {
		student, err := tx.GetStudent(ctx, owner, in.StudentID)
		if err != nil {
			return schedule.Persistence("load student", err)
		}
		if student == nil {
			return schedule.NotFound("student", string(in.StudentID))
		}
		settings, err := s.loadSettings(ctx, tx, owner)
		if err != nil {
			return err
		}

		created = newStandaloneLesson(owner, in, *student, settings, s.now())
		if err := tx.InsertLessons(ctx, []schedule.Lesson{created}); err != nil {
			return schedule.Persistence("insert lesson", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lesson created",
		zap.String("owner", string(owner)),
		zap.String("lesson_id", string(created.ID)),
		zap.String("fee_total", created.FeeTotal.StringFixed(2)),
	)
	return &created, nil
}

func newStandaloneLesson(owner schedule.OwnerID, in LessonInput, student schedule.Student, settings schedule.Settings, now time.Time) schedule.Lesson {
	hours := in.DurationHours
	if hours.IsZero() {
		hours = decimal.NewFromFloat(in.EndAt.Sub(in.StartAt).Hours()).Round(2)
	}
	status := in.Status
	if status == "" {
		status = schedule.StatusPlanned
	}
	payment := in.PaymentStatus
	if payment == "" {
		payment = schedule.PaymentUnpaid
	}

	l := schedule.Lesson{
		ID:            schedule.LessonID(schedule.NewID()),
		OwnerID:       owner,
		StudentID:     student.ID,
		StartAt:       in.StartAt.UTC(),
		EndAt:         in.EndAt.UTC(),
		DurationHours: hours,
		Status:        status,
		NoShowRule:    resolveNoShowRule(in.NoShowRule, settings),
		HourlyRate:    resolveRate(in.HourlyRate, student, settings),
		PaymentStatus: payment,
		AmountPaid:    in.AmountPaid,
		Note:          in.Note,
		CreatedAt:     now.UTC(),
	}
	finance.Apply(&l)
	return l
}

// GetLesson returns NotFound for absent or foreign lessons.
func (s *Service) GetLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID) (*schedule.Lesson, error) {
	l, err := s.store.GetLesson(ctx, owner, id)
	if err != nil {
		return nil, schedule.Persistence("load lesson", err)
	}
	if l == nil {
		return nil, schedule.NotFound("lesson", string(id))
	}
	return l, nil
}

func (s *Service) ListLessons(ctx context.Context, owner schedule.OwnerID, filter schedule.LessonFilter) ([]schedule.Lesson, error) {
	lessons, err := s.store.ListLessons(ctx, owner, filter)
	if err != nil {
		return nil, schedule.Persistence("list lessons", err)
	}
	return lessons, nil
}

// UpdateLesson is a direct edit of one lesson, equivalent to a THIS-scoped edit.
func (s *Service) UpdateLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID, p Patch) (*schedule.Lesson, error) {
	if _, err := s.ApplyScope(ctx, owner, id, ScopeThis, p); err != nil {
		return nil, err
	}
	return s.GetLesson(ctx, owner, id)
}

// DeleteLesson removes a single lesson. Series stops never call this.
func (s *Service) DeleteLesson(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID) error {
	if err := s.store.DeleteLesson(ctx, owner, id); err != nil {
		return schedule.Persistence("delete lesson", err)
	}
	s.logger.Info("lesson deleted", zap.String("owner", string(owner)), zap.String("lesson_id", string(id)))
	return nil
}
