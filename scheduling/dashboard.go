package scheduling

import (
	"context"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

// Dashboard summarizes the week containing weekOf (today when nil) using the
// owner's week start, overdue window and timezone.
func (s *Service) Dashboard(ctx context.Context, owner schedule.OwnerID, weekOf *schedule.Date) (*finance.DashboardSummary, error) {
	settings, err := s.loadSettings(ctx, s.store, owner)
	if err != nil {
		return nil, err
	}
	lessons, err := s.store.ListLessons(ctx, owner, schedule.LessonFilter{})
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

	params := finance.DashboardParams{
		WeekStart:   settings.WeekStart,
		OverdueDays: settings.OverdueDays,
		Now:         s.now(),
		Location:    settings.Location(),
	}
	if weekOf != nil {
		params.WeekOf = *weekOf
	}
	sum := finance.Dashboard(lessons, names, params)
	return &sum, nil
}
