package finance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// DASHBOARD SUMMARY
// =============================================================================

// DashboardLesson is a lesson of the reported week with its student's name.
type DashboardLesson struct {
	Lesson      schedule.Lesson
	StudentName string
}

type DashboardSummary struct {
	WeekStart schedule.Date
	WeekEnd   schedule.Date // inclusive

	WeeklyPaid          decimal.Decimal
	MonthlyPaid         decimal.Decimal
	MonthlyPotential    decimal.Decimal
	ExpectedReceivables decimal.Decimal

	// Overdue covers lessons whose local day is more than OverdueDays before today.
	OverdueReceivables decimal.Decimal
	OverdueCount       int

	WeekLessons []DashboardLesson
}

// WeekOf returns the first and last day of the week containing day, where
// weeks begin on weekStart.
func WeekOf(day schedule.Date, weekStart time.Weekday) (schedule.Date, schedule.Date) {
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	first := day.AddDays(-offset)
	return first, first.AddDays(6)
}

// DashboardParams locates the summary in time.
type DashboardParams struct {
	WeekOf      schedule.Date // any day of the week to report; zero means today
	WeekStart   time.Weekday
	OverdueDays int
	Now         time.Time
	Location    *time.Location
}

// Dashboard summarizes payments and receivables over lessons. Cancelled
// lessons are ignored. The month is the calendar month of Now in Location.
func Dashboard(lessons []schedule.Lesson, names map[schedule.StudentID]string, p DashboardParams) DashboardSummary {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	today := schedule.DateOf(p.Now.In(loc))
	anchor := p.WeekOf
	if anchor.IsZero() {
		anchor = today
	}
	weekFirst, weekLast := WeekOf(anchor, p.WeekStart)
	weekFrom, weekTo := weekFirst.In(loc), weekLast.AddDays(1).In(loc)

	monthFirst := schedule.NewDate(today.Year, today.Month, 1)
	monthFrom := monthFirst.In(loc)
	monthTo := monthFrom.AddDate(0, 1, 0)

	overdueBefore := today.AddDays(-p.OverdueDays)

	sum := DashboardSummary{
		WeekStart:   weekFirst,
		WeekEnd:     weekLast,
		WeekLessons: []DashboardLesson{},
	}
	weekly, monthly, potential := decimal.Zero, decimal.Zero, decimal.Zero
	expected, overdue := decimal.Zero, decimal.Zero

	for _, l := range lessons {
		if l.Status == schedule.StatusCancelled {
			continue
		}
		remaining := decimal.Max(l.FeeTotal.Sub(l.AmountPaid), decimal.Zero)
		expected = expected.Add(remaining)

		if within(l.StartAt, weekFrom, weekTo) {
			weekly = weekly.Add(l.AmountPaid)
			name := names[l.StudentID]
			if name == "" {
				name = "Unknown"
			}
			sum.WeekLessons = append(sum.WeekLessons, DashboardLesson{Lesson: l, StudentName: name})
		}
		if within(l.StartAt, monthFrom, monthTo) {
			monthly = monthly.Add(l.AmountPaid)
			potential = potential.Add(l.FeeTotal)
		}
		if remaining.IsPositive() && schedule.DateOf(l.StartAt.In(loc)).Before(overdueBefore) {
			overdue = overdue.Add(remaining)
			sum.OverdueCount++
		}
	}

	sort.SliceStable(sum.WeekLessons, func(i, j int) bool {
		return sum.WeekLessons[i].Lesson.StartAt.Before(sum.WeekLessons[j].Lesson.StartAt)
	})
	sum.WeeklyPaid = Round2(weekly)
	sum.MonthlyPaid = Round2(monthly)
	sum.MonthlyPotential = Round2(potential)
	sum.ExpectedReceivables = Round2(expected)
	sum.OverdueReceivables = Round2(overdue)
	return sum
}

// within reports from <= t < to.
func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
