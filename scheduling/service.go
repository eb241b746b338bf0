package scheduling

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// SERVICE - Transactional entry points used by the HTTP layer
// =============================================================================

type Service struct {
	store           schedule.TxStore
	logger          *zap.Logger
	now             func() time.Time
	defaultTimezone string
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultTimezone sets the zone used for owners without saved settings.
func WithDefaultTimezone(name string) Option {
	return func(s *Service) { s.defaultTimezone = name }
}

func NewService(store schedule.TxStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Now() time.Time { return s.now() }

// =============================================================================
// CREATE WEEKLY SERIES
// =============================================================================

// SeriesResult is the outcome of CreateWeekly.
type SeriesResult struct {
	Recurrence schedule.Recurrence
	Lessons    []schedule.Lesson
}

// CreateWeekly expands in and persists the recurrence and every lesson in one
// transaction.
func (s *Service) CreateWeekly(ctx context.Context, owner schedule.OwnerID, in WeeklyInput) (*SeriesResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var result SeriesResult
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

		rec, lessons, err := BuildSeries(owner, in, *student, settings, s.now())
		if err != nil {
			return err
		}
		if err := tx.CreateRecurrence(ctx, rec); err != nil {
			return schedule.Persistence("create recurrence", err)
		}
		if err := tx.InsertLessons(ctx, lessons); err != nil {
			return schedule.Persistence("insert lessons", err)
		}
		result = SeriesResult{Recurrence: rec, Lessons: lessons}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("weekly series created",
		zap.String("owner", string(owner)),
		zap.String("recurrence_id", string(result.Recurrence.ID)),
		zap.String("student_id", string(in.StudentID)),
		zap.Int("created_count", len(result.Lessons)),
	)
	return &result, nil
}

// =============================================================================
// APPLY SCOPE
// =============================================================================

// ApplyScope edits the lesson id and, depending on scope, the rest of its
// series. Every affected lesson is written in one transaction.
func (s *Service) ApplyScope(ctx context.Context, owner schedule.OwnerID, id schedule.LessonID, scope Scope, p Patch) (*ScopeResult, error) {
	if p.IsEmpty() {
		return nil, schedule.Invalid("patch", "must not be empty")
	}

	var result ScopeResult
	err := s.store.WithTx(ctx, func(tx schedule.Store) error {
		selected, err := tx.GetLesson(ctx, owner, id)
		if err != nil {
			return schedule.Persistence("load lesson", err)
		}
		if selected == nil {
			return schedule.NotFound("lesson", string(id))
		}
		if p.StudentID != nil {
			student, err := tx.GetStudent(ctx, owner, *p.StudentID)
			if err != nil {
				return schedule.Persistence("load student", err)
			}
			if student == nil {
				return schedule.NotFound("student", string(*p.StudentID))
			}
		}

		var series []schedule.Lesson
		if selected.InSeries() && EffectiveScope(*selected, scope) != ScopeThis {
			series, err = tx.ListLessonsByRecurrence(ctx, owner, *selected.RecurrenceID)
			if err != nil {
				return schedule.Persistence("load series", err)
			}
		}

		updated, res, err := PlanScopedEdit(*selected, series, scope, p)
		if err != nil {
			return err
		}
		for _, l := range updated {
			if err := tx.UpdateLesson(ctx, l); err != nil {
				return schedule.Persistence("update lesson", err)
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scoped edit applied",
		zap.String("owner", string(owner)),
		zap.String("lesson_id", string(id)),
		zap.String("scope", string(result.Scope)),
		zap.Int("updated_count", result.UpdatedCount),
		zap.Int("warnings", len(result.Warnings)),
	)
	return &result, nil
}

// =============================================================================
// STOP SERIES
// =============================================================================

// Stop truncates a series and cancels its lessons from the cutoff on.
// Lessons are never deleted. Repeating a stop is harmless: already cancelled
// lessons are skipped and the end date can only move earlier.
func (s *Service) Stop(ctx context.Context, owner schedule.OwnerID, in StopInput) (*StopResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var result StopResult
	err := s.store.WithTx(ctx, func(tx schedule.Store) error {
		rec, err := tx.GetRecurrence(ctx, owner, in.RecurrenceID)
		if err != nil {
			return schedule.Persistence("load recurrence", err)
		}
		if rec == nil {
			return schedule.NotFound("recurrence", string(in.RecurrenceID))
		}
		settings, err := s.loadSettings(ctx, tx, owner)
		if err != nil {
			return err
		}
		lessons, err := tx.ListLessonsByRecurrence(ctx, owner, rec.ID)
		if err != nil {
			return schedule.Persistence("load series", err)
		}

		plan, err := PlanStop(*rec, lessons, in, now, recurrenceLocation(*rec, settings))
		if err != nil {
			return err
		}
		if err := tx.UpdateRecurrenceEnd(ctx, owner, rec.ID, plan.EndDate, now.UTC()); err != nil {
			return schedule.Persistence("update recurrence", err)
		}
		for _, l := range plan.Cancel {
			if err := tx.UpdateLesson(ctx, l); err != nil {
				return schedule.Persistence("cancel lesson", err)
			}
		}

		result = StopResult{
			CancelledCount:  len(plan.Cancel),
			StopEffectiveAt: plan.EffectiveAt,
			EndDate:         plan.EndDate,
			Message:         stopMessage(len(plan.Cancel)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("series stopped",
		zap.String("owner", string(owner)),
		zap.String("recurrence_id", string(in.RecurrenceID)),
		zap.String("mode", string(in.Mode)),
		zap.Int("cancelled_count", result.CancelledCount),
		zap.Stringer("end_date", result.EndDate),
	)
	return &result, nil
}

// recurrenceLocation prefers the zone the series was created in, so a later
// change of the owner's timezone does not shift an existing series' cutoff.
func recurrenceLocation(rec schedule.Recurrence, settings schedule.Settings) *time.Location {
	if rec.Timezone != "" {
		if loc, err := time.LoadLocation(rec.Timezone); err == nil {
			return loc
		}
	}
	return settings.Location()
}
