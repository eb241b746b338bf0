package finance

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tutordesk/lesson-engine/schedule"
)

// =============================================================================
// STUDENT BALANCE
// =============================================================================

type StudentBalance struct {
	TotalFee  decimal.Decimal
	TotalPaid decimal.Decimal
	Remaining decimal.Decimal
}

// Balance sums fees and payments over lessons.
func Balance(lessons []schedule.Lesson) StudentBalance {
	fee, paid := decimal.Zero, decimal.Zero
	for _, l := range lessons {
		fee = fee.Add(l.FeeTotal)
		paid = paid.Add(l.AmountPaid)
	}
	return StudentBalance{
		TotalFee:  Round2(fee),
		TotalPaid: Round2(paid),
		Remaining: Round2(fee.Sub(paid)),
	}
}

// BalancesByStudent groups Balance per student.
func BalancesByStudent(lessons []schedule.Lesson) map[schedule.StudentID]StudentBalance {
	grouped := make(map[schedule.StudentID][]schedule.Lesson)
	for _, l := range lessons {
		grouped[l.StudentID] = append(grouped[l.StudentID], l)
	}
	result := make(map[schedule.StudentID]StudentBalance, len(grouped))
	for id, ls := range grouped {
		result[id] = Balance(ls)
	}
	return result
}

// =============================================================================
// MONTHLY REPORT
// =============================================================================

// TopStudentsLimit caps MonthlyReport.TopStudents.
const TopStudentsLimit = 5

type StudentStat struct {
	StudentID   schedule.StudentID
	StudentName string
	LessonCount int
	TotalHours  decimal.Decimal
}

type MonthlyReport struct {
	TotalLessonHours decimal.Decimal
	Collected        decimal.Decimal
	Receivable       decimal.Decimal
	TopStudents      []StudentStat
}

// Monthly aggregates a range of lessons. Cancelled lessons carry no fee and
// are left out of hour totals.
func Monthly(lessons []schedule.Lesson, names map[schedule.StudentID]string) MonthlyReport {
	hours, collected, receivable := decimal.Zero, decimal.Zero, decimal.Zero
	stats := make(map[schedule.StudentID]*StudentStat)

	for _, l := range lessons {
		collected = collected.Add(l.AmountPaid)
		receivable = receivable.Add(l.FeeTotal.Sub(l.AmountPaid))
		if l.Status == schedule.StatusCancelled {
			continue
		}
		hours = hours.Add(l.DurationHours)

		st, ok := stats[l.StudentID]
		if !ok {
			name := names[l.StudentID]
			if name == "" {
				name = "Unknown"
			}
			st = &StudentStat{StudentID: l.StudentID, StudentName: name, TotalHours: decimal.Zero}
			stats[l.StudentID] = st
		}
		st.LessonCount++
		st.TotalHours = st.TotalHours.Add(l.DurationHours)
	}

	top := make([]StudentStat, 0, len(stats))
	for _, st := range stats {
		top = append(top, *st)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalHours.Equal(top[j].TotalHours) {
			return top[i].StudentName < top[j].StudentName
		}
		return top[i].TotalHours.GreaterThan(top[j].TotalHours)
	})
	if len(top) > TopStudentsLimit {
		top = top[:TopStudentsLimit]
	}

	return MonthlyReport{
		TotalLessonHours: hours.Round(1),
		Collected:        Round2(collected),
		Receivable:       Round2(receivable),
		TopStudents:      top,
	}
}
