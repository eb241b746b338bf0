/*
Package scheduling implements lesson series and the edits that act on them.

PURPOSE:
  Turns weekly recurrence rules into concrete lessons, applies edits across a
  scope of occurrences, and stops series while keeping every lesson's billing
  snapshot consistent (see finance).

FILES:
  expand.go:  Rule -> ordered occurrence slots
  series.go:  Weekly series creation (recurrence row + PLANNED lessons)
  scope.go:   THIS / THIS_AND_FUTURE / ALL edits
  stop.go:    NEXT / DATE series stops
  lessons.go: Standalone lesson operations
  students.go: Students, balances and per-student series summaries
  reports.go: Monthly report over a date range
  settings.go: Owner settings validation
  service.go: Service wiring, transactions and logging

TRANSACTIONS:
  Each logical operation (create series, scoped edit, stop) runs in a single
  TxStore.WithTx call. A failure part-way rolls back every row it touched.

KNOWN GAP:
  No optimistic concurrency tokens. Two concurrent scoped edits over the same
  series are serialized only by the store's transaction isolation.
*/
package scheduling

import (
	"time"

	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// RULE EXPANSION
// =============================================================================

const (
	// MaxOccurrences bounds every expansion, even when the caller sets no bound.
	MaxOccurrences = 520

	// DefaultCount applies when neither an end date nor a count is given.
	DefaultCount = 12
)

// Rule describes a weekly (or every-N-weeks) lesson cadence.
type Rule struct {
	Weekdays      []time.Weekday
	IntervalWeeks int
	StartDate     schedule.Date
	Hour          int
	Minute        int
	Duration      time.Duration
	EndDate       *schedule.Date // inclusive
	Count         int            // 0 = unset
	Location      *time.Location
}

// Slot is one generated occurrence.
type Slot struct {
	Start time.Time
	End   time.Time
}

// TargetCount returns the number of occurrences the rule asks for, or 0 when
// only the end date (and the safety cap) bound it.
func (r Rule) TargetCount() int {
	if r.Count > 0 {
		return r.Count
	}
	if r.EndDate == nil {
		return DefaultCount
	}
	return 0
}

func (r Rule) validate() error {
	if len(r.Weekdays) == 0 {
		return schedule.Invalid("weekdays", "at least one weekday is required")
	}
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return schedule.Invalid("weekday", "must be between 0 and 6")
		}
	}
	if r.Duration <= 0 {
		return schedule.Invalid("duration_hours", "must be greater than zero")
	}
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return schedule.Invalid("time", "must be HH:MM")
	}
	if r.StartDate.IsZero() {
		return schedule.Invalid("start_date", "is required")
	}
	if r.Count < 0 {
		return schedule.Invalid("count", "must be positive")
	}
	if r.IntervalWeeks < 0 {
		return schedule.Invalid("interval_weeks", "must be positive")
	}
	return nil
}

// Expand produces the ordered occurrences of r.
//
// The first occurrence is the first day on or after StartDate whose weekday is
// in the set. From there days are walked one at a time; weeks are counted in
// 7-day blocks starting at the first occurrence, and only every IntervalWeeks-th
// block emits. Wall-clock time is kept across DST changes.
func Expand(r Rule) ([]Slot, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	interval := r.IntervalWeeks
	if interval < 1 {
		interval = 1
	}
	inSet := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		inSet[wd] = true
	}

	first := r.StartDate
	for !inSet[first.Weekday()] {
		first = first.AddDays(1)
	}

	var endLimit time.Time // exclusive
	if r.EndDate != nil {
		endLimit = r.EndDate.AddDays(1).In(loc)
	}
	target := r.TargetCount()

	var slots []Slot
	for offset := 0; len(slots) < MaxOccurrences; offset++ {
		if block := offset / 7; block%interval != 0 {
			offset = (block+1)*7 - 1
			continue
		}
		day := first.AddDays(offset)
		if !inSet[day.Weekday()] {
			continue
		}

		start := day.At(r.Hour, r.Minute, loc)
		if !endLimit.IsZero() && !start.Before(endLimit) {
			break
		}
		slots = append(slots, Slot{Start: start, End: start.Add(r.Duration)})
		if target > 0 && len(slots) >= target {
			break
		}
	}

	if len(slots) == 0 {
		return nil, schedule.Invalid("end_date", "no lessons fall within the selected range")
	}
	return slots, nil
}
