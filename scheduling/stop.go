package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// SERIES STOP
// =============================================================================

// StopMode selects where a series is cut.
type StopMode string

const (
	// StopNext cuts at the next upcoming (non-cancelled) lesson.
	StopNext StopMode = "NEXT"
	// StopDate cuts at local midnight of an explicit date.
	StopDate StopMode = "DATE"
)

func (m StopMode) Valid() bool { return m == StopNext || m == StopDate }

type StopInput struct {
	RecurrenceID schedule.RecurrenceID
	Mode         StopMode
	StopDate     *schedule.Date // required iff Mode == StopDate
}

func (in StopInput) Validate() error {
	if in.RecurrenceID == "" {
		return schedule.Invalid("recurrence_id", "is required")
	}
	if !in.Mode.Valid() {
		return schedule.Invalid("stop_mode", "must be NEXT or DATE")
	}
	if in.Mode == StopDate && (in.StopDate == nil || in.StopDate.IsZero()) {
		return schedule.Invalid("stop_date", "is required when stopping by date")
	}
	return nil
}

// StopPlan is the computed effect of a stop.
type StopPlan struct {
	EffectiveAt time.Time
	EndDate     schedule.Date
	Cancel      []schedule.Lesson // already cancelled and zeroed
}

// StopResult reports what a stop did.
type StopResult struct {
	CancelledCount  int
	StopEffectiveAt time.Time
	EndDate         schedule.Date
	Message         string
}

// PlanStop computes the cutoff, the new end date and the lessons to cancel.
// lessons must be the full series; loc is the owner's timezone.
func PlanStop(rec schedule.Recurrence, lessons []schedule.Lesson, in StopInput, now time.Time, loc *time.Location) (StopPlan, error) {
	if err := in.Validate(); err != nil {
		return StopPlan{}, err
	}

	ordered := append([]schedule.Lesson(nil), lessons...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartAt.Before(ordered[j].StartAt) })

	var plan StopPlan
	switch in.Mode {
	case StopDate:
		plan.EffectiveAt = in.StopDate.In(loc)
		plan.EndDate = *in.StopDate
	default:
		plan.EffectiveAt = now
		for _, l := range ordered {
			if l.Status != schedule.StatusCancelled && !l.StartAt.Before(now) {
				plan.EffectiveAt = l.StartAt
				break
			}
		}
		plan.EndDate = schedule.DateOf(plan.EffectiveAt.In(loc)).AddDays(-1)
	}

	// A later stop can only shorten a series that was already stopped.
	if rec.StoppedAt != nil && rec.EndDate != nil {
		plan.EndDate = schedule.MinDate(plan.EndDate, *rec.EndDate)
	}

	for _, l := range ordered {
		if l.Status == schedule.StatusCancelled || l.StartAt.Before(plan.EffectiveAt) {
			continue
		}
		finance.Cancel(&l)
		plan.Cancel = append(plan.Cancel, l)
	}

	return plan, nil
}

func stopMessage(cancelled int) string {
	return fmt.Sprintf("Series stopped. %d lesson(s) cancelled.", cancelled)
}
