package scheduling

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// WEEKLY SERIES CREATION
// =============================================================================

// WeeklyInput is the request to create a weekly lesson series.
type WeeklyInput struct {
	StudentID     schedule.StudentID
	Weekday       time.Weekday
	Time          string // HH:MM in the owner's timezone
	DurationHours decimal.Decimal
	StartDate     schedule.Date
	EndDate       *schedule.Date
	Count         *int
	IntervalWeeks int // 0 means weekly
	HourlyRate    *decimal.Decimal
	NoShowRule    *schedule.NoShowRule
	Note          string
}

func (in WeeklyInput) Validate() error {
	if in.StudentID == "" {
		return schedule.Invalid("student_id", "is required")
	}
	if in.Weekday < time.Sunday || in.Weekday > time.Saturday {
		return schedule.Invalid("weekday", "must be between 0 and 6")
	}
	if _, _, err := ParseClock(in.Time); err != nil {
		return err
	}
	if err := checkDuration(in.DurationHours); err != nil {
		return err
	}
	if in.StartDate.IsZero() {
		return schedule.Invalid("start_date", "is required")
	}
	if in.Count != nil && *in.Count <= 0 {
		return schedule.Invalid("count", "must be positive")
	}
	if in.IntervalWeeks < 0 {
		return schedule.Invalid("interval_weeks", "must be positive")
	}
	if in.HourlyRate != nil && in.HourlyRate.IsNegative() {
		return schedule.Invalid("hourly_rate", "must not be negative")
	}
	if in.NoShowRule != nil && !in.NoShowRule.Valid() {
		return schedule.Invalid("no_show_fee_rule", "must be NONE, HALF or FULL")
	}
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, schedule.Invalid("time", fmt.Sprintf("%q is not HH:MM", s))
	}
	return t.Hour(), t.Minute(), nil
}

// MaxDurationHours bounds a single lesson.
var MaxDurationHours = decimal.NewFromInt(24)

func checkDuration(hours decimal.Decimal) error {
	if !hours.IsPositive() {
		return schedule.Invalid("duration_hours", "must be greater than zero")
	}
	if hours.GreaterThan(MaxDurationHours) {
		return schedule.Invalid("duration_hours", "must not exceed 24")
	}
	return nil
}

// HoursToDuration converts decimal hours to a duration, rounded to the
// millisecond. Callers validate hours with checkDuration first.
func HoursToDuration(hours decimal.Decimal) time.Duration {
	ms := hours.Mul(decimal.NewFromInt(3600 * 1000)).Round(0).IntPart()
	return time.Duration(ms) * time.Millisecond
}

// resolveRate picks the hourly rate: explicit input, then the student's
// default, then the owner's default.
func resolveRate(explicit *decimal.Decimal, student schedule.Student, settings schedule.Settings) decimal.Decimal {
	if explicit != nil {
		return *explicit
	}
	if !student.HourlyRateDefault.IsZero() {
		return student.HourlyRateDefault
	}
	return settings.DefaultHourlyRate
}

func resolveNoShowRule(explicit *schedule.NoShowRule, settings schedule.Settings) schedule.NoShowRule {
	if explicit != nil {
		return *explicit
	}
	if settings.DefaultNoShowRule.Valid() {
		return settings.DefaultNoShowRule
	}
	return schedule.NoShowNone
}

// BuildSeries expands in into a recurrence row and its PLANNED, UNPAID lessons.
// Nothing is persisted.
func BuildSeries(owner schedule.OwnerID, in WeeklyInput, student schedule.Student, settings schedule.Settings, now time.Time) (schedule.Recurrence, []schedule.Lesson, error) {
	if err := in.Validate(); err != nil {
		return schedule.Recurrence{}, nil, err
	}
	hour, minute, _ := ParseClock(in.Time)
	loc := settings.Location()

	rule := Rule{
		Weekdays:      []time.Weekday{in.Weekday},
		IntervalWeeks: in.IntervalWeeks,
		StartDate:     in.StartDate,
		Hour:          hour,
		Minute:        minute,
		Duration:      HoursToDuration(in.DurationHours),
		EndDate:       in.EndDate,
		Location:      loc,
	}
	if in.Count != nil {
		rule.Count = *in.Count
	}

	slots, err := Expand(rule)
	if err != nil {
		return schedule.Recurrence{}, nil, err
	}

	interval := in.IntervalWeeks
	if interval < 1 {
		interval = 1
	}
	endDate := schedule.DateOf(slots[len(slots)-1].Start)
	if in.EndDate != nil {
		endDate = *in.EndDate
	}
	repeatCount := rule.TargetCount()
	if repeatCount == 0 {
		repeatCount = len(slots)
	}

	rec := schedule.Recurrence{
		ID:            schedule.RecurrenceID(schedule.NewID()),
		OwnerID:       owner,
		StudentID:     student.ID,
		Frequency:     schedule.FrequencyForInterval(interval),
		IntervalWeeks: interval,
		Weekdays:      []time.Weekday{in.Weekday},
		StartAt:       slots[0].Start.UTC(),
		EndDate:       &endDate,
		RepeatCount:   &repeatCount,
		Timezone:      loc.String(),
		CreatedAt:     now.UTC(),
	}

	rate := resolveRate(in.HourlyRate, student, settings)
	noShow := resolveNoShowRule(in.NoShowRule, settings)
	recID := rec.ID

	lessons := make([]schedule.Lesson, len(slots))
	for i, slot := range slots {
		l := schedule.Lesson{
			ID:            schedule.LessonID(schedule.NewID()),
			OwnerID:       owner,
			StudentID:     student.ID,
			RecurrenceID:  &recID,
			StartAt:       slot.Start.UTC(),
			EndAt:         slot.End.UTC(),
			DurationHours: in.DurationHours,
			Status:        schedule.StatusPlanned,
			NoShowRule:    noShow,
			HourlyRate:    rate,
			PaymentStatus: schedule.PaymentUnpaid,
			AmountPaid:    decimal.Zero,
			Note:          in.Note,
			CreatedAt:     now.UTC(),
		}
		finance.Apply(&l)
		lessons[i] = l
	}

	return rec, lessons, nil
}
