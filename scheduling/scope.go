package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// EDIT SCOPE
// =============================================================================

// Scope is the breadth of an edit across a series.
type Scope string

const (
	ScopeThis          Scope = "THIS"
	ScopeThisAndFuture Scope = "THIS_AND_FUTURE"
	ScopeAll           Scope = "ALL"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeThis, ScopeThisAndFuture, ScopeAll:
		return true
	}
	return false
}

// EffectiveScope coerces scope to THIS for lessons outside a series.
func EffectiveScope(l schedule.Lesson, requested Scope) Scope {
	if !l.InSeries() {
		return ScopeThis
	}
	return requested
}

// =============================================================================
// PATCH
// =============================================================================

// Patch is a partial lesson edit. Nil fields are left unchanged.
type Patch struct {
	StudentID     *schedule.StudentID
	StartAt       *time.Time
	EndAt         *time.Time
	DurationHours *decimal.Decimal
	Status        *schedule.LessonStatus
	NoShowRule    *schedule.NoShowRule
	HourlyRate    *decimal.Decimal
	PaymentStatus *schedule.PaymentStatus
	AmountPaid    *decimal.Decimal
	Note          *string
}

func (p Patch) IsEmpty() bool {
	return p.StudentID == nil && p.StartAt == nil && p.EndAt == nil && p.DurationHours == nil &&
		p.Status == nil && p.NoShowRule == nil && p.HourlyRate == nil &&
		p.PaymentStatus == nil && p.AmountPaid == nil && p.Note == nil
}

func (p Patch) Validate() error {
	if p.IsEmpty() {
		return schedule.Invalid("patch", "must not be empty")
	}
	if p.StudentID != nil && *p.StudentID == "" {
		return schedule.Invalid("student_id", "must not be empty")
	}
	if p.DurationHours != nil {
		if err := checkDuration(*p.DurationHours); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return schedule.Invalid("status", "must be PLANNED, DONE, NO_SHOW or CANCELLED")
	}
	if p.NoShowRule != nil && !p.NoShowRule.Valid() {
		return schedule.Invalid("no_show_fee_rule", "must be NONE, HALF or FULL")
	}
	if p.HourlyRate != nil && p.HourlyRate.IsNegative() {
		return schedule.Invalid("hourly_rate", "must not be negative")
	}
	if p.PaymentStatus != nil && !p.PaymentStatus.Valid() {
		return schedule.Invalid("payment_status", "must be PAID, UNPAID or PARTIAL")
	}
	if p.AmountPaid != nil && p.AmountPaid.IsNegative() {
		return schedule.Invalid("amount_paid", "must not be negative")
	}
	return nil
}

// Sanitize drops the fields that only make sense for a single occurrence when
// scope is wider than THIS. It returns one warning listing the dropped fields.
func Sanitize(scope Scope, p Patch) (Patch, []string) {
	if scope == ScopeThis {
		return p, nil
	}

	var dropped []string
	if p.StartAt != nil {
		dropped = append(dropped, "start_datetime")
	}
	if p.EndAt != nil {
		dropped = append(dropped, "end_datetime")
	}
	if p.PaymentStatus != nil {
		dropped = append(dropped, "payment_status")
	}
	if p.AmountPaid != nil {
		dropped = append(dropped, "amount_paid")
	}
	if p.Note != nil {
		dropped = append(dropped, "note")
	}

	p.StartAt, p.EndAt, p.PaymentStatus, p.AmountPaid, p.Note = nil, nil, nil, nil, nil
	if len(dropped) == 0 {
		return p, nil
	}
	return p, []string{fmt.Sprintf(
		"%s can only be changed on a single lesson; they were not applied for scope %s. Status, rate, duration and no-show rule were updated.",
		strings.Join(dropped, ", "), scope)}
}

// Targets selects the lessons an edit of selected touches. series must be the
// full lesson list of selected's recurrence.
func Targets(selected schedule.Lesson, series []schedule.Lesson, scope Scope) []schedule.Lesson {
	switch {
	case scope == ScopeThis || !selected.InSeries():
		return []schedule.Lesson{selected}
	case scope == ScopeAll:
		return series
	}

	var targets []schedule.Lesson
	for _, l := range series {
		if !l.StartAt.Before(selected.StartAt) {
			targets = append(targets, l)
		}
	}
	return targets
}

// Merge applies p onto l and recomputes its billing snapshot. Payment fields
// come from p only for THIS; wider scopes keep each lesson's own payment history.
func Merge(l schedule.Lesson, p Patch, scope Scope) schedule.Lesson {
	if p.StudentID != nil {
		l.StudentID = *p.StudentID
	}
	if p.StartAt != nil {
		l.StartAt = p.StartAt.UTC()
	}
	if p.EndAt != nil {
		l.EndAt = p.EndAt.UTC()
	}
	if p.DurationHours != nil {
		l.DurationHours = *p.DurationHours
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.NoShowRule != nil {
		l.NoShowRule = *p.NoShowRule
	}
	if p.HourlyRate != nil {
		l.HourlyRate = *p.HourlyRate
	}
	if p.Note != nil {
		l.Note = *p.Note
	}

	if scope == ScopeThis {
		if p.PaymentStatus != nil {
			l.PaymentStatus = *p.PaymentStatus
		}
		if p.AmountPaid != nil {
			l.AmountPaid = *p.AmountPaid
		}
	}

	finance.Apply(&l)
	return l
}

// ScopeResult reports what a scoped edit did.
type ScopeResult struct {
	Scope        Scope
	UpdatedCount int
	Warnings     []string
}

// PlanScopedEdit computes the updated lessons for an edit without persisting.
func PlanScopedEdit(selected schedule.Lesson, series []schedule.Lesson, requested Scope, p Patch) ([]schedule.Lesson, ScopeResult, error) {
	if !requested.Valid() {
		return nil, ScopeResult{}, schedule.Invalid("scope", "must be THIS, THIS_AND_FUTURE or ALL")
	}
	if err := p.Validate(); err != nil {
		return nil, ScopeResult{}, err
	}

	scope := EffectiveScope(selected, requested)
	sanitized, warnings := Sanitize(scope, p)

	targets := Targets(selected, series, scope)
	updated := make([]schedule.Lesson, len(targets))
	for i, l := range targets {
		merged := Merge(l, sanitized, scope)
		if merged.EndAt.Before(merged.StartAt) {
			return nil, ScopeResult{}, schedule.Invalid("end_datetime", "must not be before start_datetime")
		}
		updated[i] = merged
	}

	return updated, ScopeResult{Scope: scope, UpdatedCount: len(updated), Warnings: warnings}, nil
}
