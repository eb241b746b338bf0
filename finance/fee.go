/*
Package finance computes lesson fees, payment normalization and billing aggregates.

PURPOSE:
  Keeps the billing invariants of a lesson intact. Every time status, no-show
  rule, hourly rate, duration, payment status or amount paid changes, callers
  run ComputeFee followed by NormalizePayment (or Apply, which does both).

FEE RULES:
  CANCELLED          -> 0
  PLANNED, DONE      -> round2(rate * hours)
  NO_SHOW + FULL     -> round2(rate * hours)
  NO_SHOW + HALF     -> round2(round2(rate * hours) / 2)
  NO_SHOW + NONE     -> 0

PAYMENT RULES:
  PAID    -> amount paid = fee
  UNPAID  -> amount paid = 0
  PARTIAL -> amount paid clamped into [0, fee], rounded to 2 decimals

All functions are pure; no I/O.
*/
package finance

import (
	"github.com/shopspring/decimal"
	"github.com/tutordesk/lesson-engine/schedule"
)

var two = decimal.NewFromInt(2)

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// BaseFee is the undiscounted price of a lesson.
func BaseFee(hourlyRate, durationHours decimal.Decimal) decimal.Decimal {
	return Round2(hourlyRate.Mul(durationHours))
}

// ComputeFee returns the billed fee for a lesson.
func ComputeFee(status schedule.LessonStatus, rule schedule.NoShowRule, hourlyRate, durationHours decimal.Decimal) decimal.Decimal {
	base := BaseFee(hourlyRate, durationHours)

	switch status {
	case schedule.StatusCancelled:
		return decimal.Zero
	case schedule.StatusDone, schedule.StatusPlanned:
		return base
	}

	switch rule {
	case schedule.NoShowFull:
		return base
	case schedule.NoShowHalf:
		return Round2(base.Div(two))
	default:
		return decimal.Zero
	}
}

// Payment is a normalized payment state.
type Payment struct {
	Status     schedule.PaymentStatus
	AmountPaid decimal.Decimal
}

// NormalizePayment makes amountPaid consistent with status and bounded by feeTotal.
func NormalizePayment(status schedule.PaymentStatus, feeTotal, amountPaid decimal.Decimal) Payment {
	switch status {
	case schedule.PaymentPaid:
		return Payment{Status: schedule.PaymentPaid, AmountPaid: feeTotal}
	case schedule.PaymentUnpaid:
		return Payment{Status: schedule.PaymentUnpaid, AmountPaid: decimal.Zero}
	}

	safe := decimal.Min(decimal.Max(amountPaid, decimal.Zero), feeTotal)
	return Payment{Status: schedule.PaymentPartial, AmountPaid: Round2(safe)}
}

// Apply recomputes FeeTotal and normalizes the payment fields of l in place.
func Apply(l *schedule.Lesson) {
	l.FeeTotal = ComputeFee(l.Status, l.NoShowRule, l.HourlyRate, l.DurationHours)
	p := NormalizePayment(l.PaymentStatus, l.FeeTotal, l.AmountPaid)
	l.PaymentStatus = p.Status
	l.AmountPaid = p.AmountPaid
}

// Cancel turns l into a cancelled, unbilled lesson.
func Cancel(l *schedule.Lesson) {
	l.Status = schedule.StatusCancelled
	l.PaymentStatus = schedule.PaymentUnpaid
	Apply(l)
}
