/*
Package schedule defines the data model shared by every part of the lesson engine.

PURPOSE:
  Students, weekly recurrence rules and concrete lesson occurrences, plus the
  billing snapshot carried by each lesson. Higher layers (finance, scheduling,
  api, stores) all speak in these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed IDs: OwnerID, StudentID, RecurrenceID, LessonID
  - Lesson: one scheduled occurrence with its fee/payment snapshot
  - Recurrence: the rule that generated a series of lessons
  - Student: identity plus default hourly rate

INVARIANTS:
  1. Lesson.FeeTotal is always finance.ComputeFee(Status, NoShowRule, HourlyRate, DurationHours)
  2. Lesson.AmountPaid is consistent with PaymentStatus and bounded to [0, FeeTotal]
  3. Lesson.RecurrenceID is a weak reference: stopping a recurrence never deletes lessons
  4. Every row belongs to exactly one owner; cross-owner reads behave as "not found"

SEE ALSO:
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
  - finance/fee.go: Fee and payment normalization
*/
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type StudentID string
type RecurrenceID string
type LessonID string

// NewID returns a fresh random identifier.
func NewID() string { return uuid.NewString() }

// =============================================================================
// ENUMS
// =============================================================================

type LessonStatus string

const (
	StatusPlanned   LessonStatus = "PLANNED"
	StatusDone      LessonStatus = "DONE"
	StatusNoShow    LessonStatus = "NO_SHOW"
	StatusCancelled LessonStatus = "CANCELLED"
)

func (s LessonStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusDone, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// NoShowRule decides what a student is billed when they miss a lesson.
type NoShowRule string

const (
	NoShowNone NoShowRule = "NONE"
	NoShowHalf NoShowRule = "HALF"
	NoShowFull NoShowRule = "FULL"
)

func (r NoShowRule) Valid() bool {
	switch r {
	case NoShowNone, NoShowHalf, NoShowFull:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPaid, PaymentUnpaid, PaymentPartial:
		return true
	}
	return false
}

type Frequency string

const (
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
)

// FrequencyForInterval maps an interval in weeks to its frequency label.
func FrequencyForInterval(weeks int) Frequency {
	if weeks == 2 {
		return FrequencyBiweekly
	}
	return FrequencyWeekly
}

type StudentStatus string

const (
	StudentActive  StudentStatus = "ACTIVE"
	StudentPassive StudentStatus = "PASSIVE"
)

// =============================================================================
// STUDENT
// =============================================================================

type Student struct {
	ID                StudentID
	OwnerID           OwnerID
	FullName          string
	Subject           string
	Phone             string
	Email             string
	HourlyRateDefault decimal.Decimal
	Status            StudentStatus
	CreatedAt         time.Time
}

// =============================================================================
// RECURRENCE - Rule that generated a lesson series
// =============================================================================

type Recurrence struct {
	ID            RecurrenceID
	OwnerID       OwnerID
	StudentID     StudentID
	Frequency     Frequency
	IntervalWeeks int
	Weekdays      []time.Weekday
	StartAt       time.Time // first generated occurrence
	EndDate       *Date
	RepeatCount   *int
	Timezone      string
	StoppedAt     *time.Time // set by the first stop; EndDate can only shrink afterwards
	CreatedAt     time.Time
}

// ActiveOn reports whether the series still has a validity window on day.
func (r Recurrence) ActiveOn(day Date) bool {
	return r.EndDate == nil || !r.EndDate.Before(day)
}

// =============================================================================
// LESSON - One concrete, independently billable occurrence
// =============================================================================

type Lesson struct {
	ID            LessonID
	OwnerID       OwnerID
	StudentID     StudentID
	RecurrenceID  *RecurrenceID
	StartAt       time.Time
	EndAt         time.Time
	DurationHours decimal.Decimal
	Status        LessonStatus
	NoShowRule    NoShowRule
	HourlyRate    decimal.Decimal
	FeeTotal      decimal.Decimal
	PaymentStatus PaymentStatus
	AmountPaid    decimal.Decimal
	Note          string
	CreatedAt     time.Time
}

// InSeries reports whether the lesson was generated by a recurrence.
func (l Lesson) InSeries() bool { return l.RecurrenceID != nil }

func (l Lesson) String() string {
	return fmt.Sprintf("lesson %s %s %s fee=%s paid=%s",
		l.ID, l.StartAt.Format(time.RFC3339), l.Status, l.FeeTotal.StringFixed(2), l.AmountPaid.StringFixed(2))
}

// LessonFilter narrows ListLessons. Zero values mean "no bound".
type LessonFilter struct {
	StudentID StudentID
	From      time.Time // inclusive
	To        time.Time // inclusive
}

// Matches reports whether the lesson falls within the filter.
func (f LessonFilter) Matches(l Lesson) bool {
	if f.StudentID != "" && l.StudentID != f.StudentID {
		return false
	}
	if !f.From.IsZero() && l.StartAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && l.StartAt.After(f.To) {
		return false
	}
	return true
}
