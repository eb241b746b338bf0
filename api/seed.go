/*
seed.go - Demo data loader

PURPOSE:
  Populates an owner's workspace with realistic sample data so the dashboard
  has something to show: three students, one weekly series each and a run
  of past standalone lessons with mixed statuses and payments.

HOW THE SEED WORKS:
 1. Create students through the scheduling service
 2. Create one weekly series per student, starting today, 8 occurrences
 3. Create 11 past lessons, one per day over the last 11 days:
    every 5th is a no-show with the HALF rule, every 7th is cancelled,
    the rest are done; every 4th is paid, every 3rd partially paid (40%)

NOTE:
  The seed only adds rows. Running it twice creates a second set of students.

USAGE VIA API:

	POST /api/settings/demo-seed
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/scheduling"
)

// =============================================================================
// SEED DEFINITIONS
// =============================================================================

var demoStudents = []scheduling.StudentInput{
	{FullName: "Mert Yıldız", Subject: "Matematik", Phone: "0555 123 45 67", HourlyRateDefault: decimal.NewFromInt(650)},
	{FullName: "Defne Acar", Subject: "Fizik", Phone: "0555 222 33 44", HourlyRateDefault: decimal.NewFromInt(700)},
	{FullName: "Can Efe", Subject: "Kimya", Phone: "0555 999 88 77", HourlyRateDefault: decimal.NewFromInt(600)},
}

const (
	demoSeriesCount  = 8
	demoPastLessons  = 11
	demoPastDaysBack = 11
)

// SeedDemo handles POST /api/settings/demo-seed.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	owner := OwnerFrom(r.Context())
	res, err := SeedDemo(r.Context(), h.svc, owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("demo data loaded",
		zap.String("owner", string(owner)),
		zap.Int("students", res.Students),
		zap.Int("lessons", res.Lessons),
	)
	writeJSON(w, http.StatusCreated, res)
}

// SeedDemo creates the demo data set for owner.
func SeedDemo(ctx context.Context, svc *scheduling.Service, owner schedule.OwnerID) (SeedResponse, error) {
	settings, err := svc.GetSettings(ctx, owner)
	if err != nil {
		return SeedResponse{}, err
	}
	loc := settings.Location()
	now := svc.Now().In(loc)
	today := schedule.DateOf(now)

	var res SeedResponse
	students := make([]schedule.Student, 0, len(demoStudents))
	for _, in := range demoStudents {
		st, err := svc.CreateStudent(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("seed student %q: %w", in.FullName, err)
		}
		students = append(students, *st)
		res.Students++
	}

	for i, st := range students {
		count := demoSeriesCount
		series, err := svc.CreateWeekly(ctx, owner, scheduling.WeeklyInput{
			StudentID:     st.ID,
			Weekday:       today.AddDays(i + 1).Weekday(),
			Time:          fmt.Sprintf("%02d:00", 16+i),
			DurationHours: decimal.NewFromFloat(1.5),
			StartDate:     today,
			Count:         &count,
			Note:          "Demo series",
		})
		if err != nil {
			return res, fmt.Errorf("seed series for %q: %w", st.FullName, err)
		}
		res.Series++
		res.Lessons += len(series.Lessons)
	}

	for idx := 0; idx < demoPastLessons; idx++ {
		if _, err := svc.CreateLesson(ctx, owner, pastLesson(idx, students[idx%len(students)], today, loc)); err != nil {
			return res, fmt.Errorf("seed lesson %d: %w", idx, err)
		}
		res.Lessons++
	}

	res.Message = "Demo data loaded."
	return res, nil
}

func pastLesson(idx int, st schedule.Student, today schedule.Date, loc *time.Location) scheduling.LessonInput {
	day := today.AddDays(idx - demoPastDaysBack)
	start := day.At(10+idx%6, 0, loc)
	duration := decimal.NewFromFloat(1.5)
	if idx%3 == 0 {
		duration = decimal.NewFromInt(2)
	}

	status, rule, note := schedule.StatusDone, schedule.NoShowNone, "Demo lesson"
	switch {
	case idx%5 == 0:
		status, rule, note = schedule.StatusNoShow, schedule.NoShowHalf, "Did not attend"
	case idx%7 == 0:
		status = schedule.StatusCancelled
	}

	payment, paid := schedule.PaymentUnpaid, decimal.Zero
	switch {
	case idx%4 == 0:
		payment = schedule.PaymentPaid
	case idx%3 == 0:
		fee := finance.ComputeFee(status, rule, st.HourlyRateDefault, duration)
		payment, paid = schedule.PaymentPartial, finance.Round2(fee.Mul(decimal.RequireFromString("0.4")))
	}

	return scheduling.LessonInput{
		StudentID:     st.ID,
		StartAt:       start,
		EndAt:         start.Add(scheduling.HoursToDuration(duration)),
		DurationHours: duration,
		Status:        status,
		NoShowRule:    &rule,
		PaymentStatus: payment,
		AmountPaid:    paid,
		Note:          note,
	}
}
