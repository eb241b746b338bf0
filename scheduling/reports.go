package scheduling

import (
	"context"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// ReportRange bounds a report by local calendar days, both inclusive.
// Nil bounds default to the current month in the owner's timezone.
type ReportRange struct {
	From *schedule.Date
	To   *schedule.Date
}

// MonthlyReport aggregates hours, collections and receivables over a range.
func (s *Service) MonthlyReport(ctx context.Context, owner schedule.OwnerID, r ReportRange) (*finance.MonthlyReport, error) {
	settings, err := s.loadSettings(ctx, s.store, owner)
	if err != nil {
		return nil, err
	}
	loc := settings.Location()

	today := schedule.DateOf(s.now().In(loc))
	from := schedule.NewDate(today.Year, today.Month, 1)
	to := from.In(loc).AddDate(0, 1, -1)
	toDate := schedule.DateOf(to)
	if r.From != nil {
		from = *r.From
	}
	if r.To != nil {
		toDate = *r.To
	}
	if toDate.Before(from) {
		return nil, schedule.Invalid("to", "must not be before from")
	}

	filter := schedule.LessonFilter{
		From: from.In(loc),
		To:   toDate.AddDays(1).In(loc).Add(-1),
	}
	lessons, err := s.store.ListLessons(ctx, owner, filter)
	if err != nil {
		return nil, schedule.Persistence("list lessons", err)
	}
	students, err := s.store.ListStudents(ctx, owner)
	if err != nil {
		return nil, schedule.Persistence("list students", err)
	}
	names := make(map[schedule.StudentID]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName
	}

	report := finance.Monthly(lessons, names)
	return &report, nil
}
