package finance_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutordesk/lesson-engine/finance"
	"github.com/tutordesk/lesson-engine/schedule"
)

func billed(student string, status schedule.LessonStatus, hours, fee, paid string) schedule.Lesson {
	return schedule.Lesson{
		StudentID:     schedule.StudentID(student),
		Status:        status,
		DurationHours: d(hours),
		FeeTotal:      d(fee),
		AmountPaid:    d(paid),
	}
}

func TestBalance(t *testing.T) {
	b := finance.Balance([]schedule.Lesson{
		billed("s1", schedule.StatusDone, "1", "500", "500"),
		billed("s1", schedule.StatusDone, "1.5", "750", "100.10"),
		billed("s1", schedule.StatusCancelled, "1", "0", "0"),
	})

	assert.Equal(t, "1250.00", b.TotalFee.StringFixed(2))
	assert.Equal(t, "600.10", b.TotalPaid.StringFixed(2))
	assert.Equal(t, "649.90", b.Remaining.StringFixed(2))
}

func TestBalancesByStudent(t *testing.T) {
	got := finance.BalancesByStudent([]schedule.Lesson{
		billed("s1", schedule.StatusDone, "1", "500", "0"),
		billed("s2", schedule.StatusDone, "1", "300", "300"),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "500.00", got["s1"].Remaining.StringFixed(2))
	assert.True(t, got["s2"].Remaining.IsZero())
}

func TestMonthly(t *testing.T) {
	lessons := []schedule.Lesson{
		billed("s1", schedule.StatusDone, "2", "1000", "1000"),
		billed("s1", schedule.StatusPlanned, "1", "500", "0"),
		billed("s2", schedule.StatusNoShow, "1", "250", "100"),
		billed("s2", schedule.StatusCancelled, "5", "0", "0"),
	}
	names := map[schedule.StudentID]string{"s1": "Ayşe", "s2": "Mehmet"}

	r := finance.Monthly(lessons, names)

	assert.Equal(t, "4.0", r.TotalLessonHours.StringFixed(1))
	assert.Equal(t, "1100.00", r.Collected.StringFixed(2))
	assert.Equal(t, "650.00", r.Receivable.StringFixed(2))
	require.Len(t, r.TopStudents, 2)
	assert.Equal(t, "Ayşe", r.TopStudents[0].StudentName)
	assert.Equal(t, 2, r.TopStudents[0].LessonCount)
	assert.Equal(t, 1, r.TopStudents[1].LessonCount)
}

func TestMonthly_TopStudentsCapped(t *testing.T) {
	var lessons []schedule.Lesson
	for i := 0; i < 8; i++ {
		lessons = append(lessons, billed(fmt.Sprintf("s%d", i), schedule.StatusDone, fmt.Sprintf("%d", i+1), "0", "0"))
	}

	r := finance.Monthly(lessons, nil)

	require.Len(t, r.TopStudents, finance.TopStudentsLimit)
	assert.Equal(t, schedule.StudentID("s7"), r.TopStudents[0].StudentID)
	assert.Equal(t, "Unknown", r.TopStudents[0].StudentName)
}
