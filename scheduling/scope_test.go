package scheduling_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutordesk/lesson-engine/schedule"
	"github.com/tutordesk/lesson-engine/scheduling"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func seriesLesson(id string, rec schedule.RecurrenceID, start time.Time) schedule.Lesson {
	return schedule.Lesson{
		ID:            schedule.LessonID(id),
		OwnerID:       "owner",
		StudentID:     "student",
		RecurrenceID:  &rec,
		StartAt:       start,
		EndAt:         start.Add(time.Hour),
		DurationHours: decimal.NewFromInt(1),
		Status:        schedule.StatusPlanned,
		NoShowRule:    schedule.NoShowNone,
		HourlyRate:    decimal.NewFromInt(500),
		FeeTotal:      decimal.NewFromInt(500),
		PaymentStatus: schedule.PaymentUnpaid,
		AmountPaid:    decimal.Zero,
	}
}

func TestEffectiveScope_StandaloneForcedToThis(t *testing.T) {
	l := schedule.Lesson{ID: "solo"}

	assert.Equal(t, scheduling.ScopeThis, scheduling.EffectiveScope(l, scheduling.ScopeAll))
	assert.Equal(t, scheduling.ScopeThis, scheduling.EffectiveScope(l, scheduling.ScopeThisAndFuture))
}

func TestSanitize(t *testing.T) {
	start := time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC)
	note := "moved"
	paid := schedule.PaymentPaid
	p := scheduling.Patch{StartAt: &start, Note: &note, PaymentStatus: &paid, HourlyRate: dec("600")}

	t.Run("THIS keeps every field", func(t *testing.T) {
		got, warnings := scheduling.Sanitize(scheduling.ScopeThis, p)

		assert.Equal(t, p, got)
		assert.Empty(t, warnings)
	})

	t.Run("wider scope drops occurrence fields with one warning", func(t *testing.T) {
		got, warnings := scheduling.Sanitize(scheduling.ScopeAll, p)

		assert.Nil(t, got.StartAt)
		assert.Nil(t, got.Note)
		assert.Nil(t, got.PaymentStatus)
		require.NotNil(t, got.HourlyRate)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "start_datetime")
		assert.Contains(t, warnings[0], "payment_status")
		assert.Contains(t, warnings[0], "note")
	})

	t.Run("no warning when nothing was dropped", func(t *testing.T) {
		_, warnings := scheduling.Sanitize(scheduling.ScopeAll, scheduling.Patch{HourlyRate: dec("600")})

		assert.Empty(t, warnings)
	})
}

func TestTargets(t *testing.T) {
	base := time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC)
	series := []schedule.Lesson{
		seriesLesson("a", "r1", base),
		seriesLesson("b", "r1", base.AddDate(0, 0, 7)),
		seriesLesson("c", "r1", base.AddDate(0, 0, 14)),
	}

	ids := func(ls []schedule.Lesson) []schedule.LessonID {
		var out []schedule.LessonID
		for _, l := range ls {
			out = append(out, l.ID)
		}
		return out
	}

	assert.Equal(t, []schedule.LessonID{"b"}, ids(scheduling.Targets(series[1], series, scheduling.ScopeThis)))
	assert.Equal(t, []schedule.LessonID{"b", "c"}, ids(scheduling.Targets(series[1], series, scheduling.ScopeThisAndFuture)))
	assert.Equal(t, []schedule.LessonID{"a", "b", "c"}, ids(scheduling.Targets(series[1], series, scheduling.ScopeAll)))
}

func TestMerge_PaymentOnlyFromPatchForThis(t *testing.T) {
	l := seriesLesson("a", "r1", time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC))
	l.Status = schedule.StatusDone
	l.PaymentStatus = schedule.PaymentPartial
	l.AmountPaid = decimal.NewFromInt(200)

	paid := schedule.PaymentPaid
	p := scheduling.Patch{HourlyRate: dec("800"), PaymentStatus: &paid}

	t.Run("THIS", func(t *testing.T) {
		got := scheduling.Merge(l, p, scheduling.ScopeThis)

		assert.Equal(t, "800.00", got.FeeTotal.StringFixed(2))
		assert.Equal(t, schedule.PaymentPaid, got.PaymentStatus)
		assert.Equal(t, "800.00", got.AmountPaid.StringFixed(2))
	})

	t.Run("ALL keeps the lesson's own payment", func(t *testing.T) {
		got := scheduling.Merge(l, p, scheduling.ScopeAll)

		assert.Equal(t, "800.00", got.FeeTotal.StringFixed(2))
		assert.Equal(t, schedule.PaymentPartial, got.PaymentStatus)
		assert.Equal(t, "200.00", got.AmountPaid.StringFixed(2))
	})
}

func TestMerge_NoShowHalfClampsPartialPayment(t *testing.T) {
	// GIVEN: rate 500, 2 hours
	l := seriesLesson("a", "r1", time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC))
	l.DurationHours = decimal.NewFromInt(2)

	noShow := schedule.StatusNoShow
	half := schedule.NoShowHalf
	partial := schedule.PaymentPartial

	// WHEN: marked NO_SHOW with HALF rule and an oversized partial payment
	got := scheduling.Merge(l, scheduling.Patch{
		Status:        &noShow,
		NoShowRule:    &half,
		PaymentStatus: &partial,
		AmountPaid:    dec("1250"),
	}, scheduling.ScopeThis)

	// THEN
	assert.Equal(t, "500.00", got.FeeTotal.StringFixed(2))
	assert.Equal(t, "500.00", got.AmountPaid.StringFixed(2))
}

func TestPlanScopedEdit_Validation(t *testing.T) {
	l := seriesLesson("a", "r1", time.Date(2026, 2, 2, 15, 0, 0, 0, time.UTC))
	earlier := l.StartAt.Add(-time.Hour)

	tests := []struct {
		name  string
		scope scheduling.Scope
		patch scheduling.Patch
		field string
	}{
		{"empty patch", scheduling.ScopeThis, scheduling.Patch{}, "patch"},
		{"unknown scope", "SOME", scheduling.Patch{HourlyRate: dec("1")}, "scope"},
		{"zero duration", scheduling.ScopeThis, scheduling.Patch{DurationHours: dec("0")}, "duration_hours"},
		{"negative rate", scheduling.ScopeThis, scheduling.Patch{HourlyRate: dec("-1")}, "hourly_rate"},
		{"negative amount", scheduling.ScopeThis, scheduling.Patch{AmountPaid: dec("-1")}, "amount_paid"},
		{"end before start", scheduling.ScopeThis, scheduling.Patch{EndAt: &earlier}, "end_datetime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := scheduling.PlanScopedEdit(l, []schedule.Lesson{l}, tt.scope, tt.patch)

			var verr *schedule.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
