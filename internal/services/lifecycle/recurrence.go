package lifecycle

import (
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"

	"github.com/shopspring/decimal"
)

// NextDueDate advances due by one period of rt. Unknown types count as monthly.
func NextDueDate(due time.Time, rt models.RecurringType) time.Time {
	switch rt {
	case models.RecurringWeekly:
		return due.AddDate(0, 0, 7)
	case models.RecurringBiweekly:
		return due.AddDate(0, 0, 14)
	case models.RecurringQuarterly:
		return AddMonths(due, 3)
	case models.RecurringSemiannual:
		return AddMonths(due, 6)
	case models.RecurringYearly:
		return AddMonths(due, 12)
	default:
		return AddMonths(due, 1)
	}
}

// AddMonths moves t forward n calendar months, clamping the day to the end of
// the target month (Jan 31 + 1 month is Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// Generate builds the next pending occurrence of a paid recurring record.
// The returned record has no id; the store assigns one on create.
func Generate(parent models.Payment, taxRate decimal.Decimal) (models.Payment, error) {
	if !parent.IsPaid() {
		return models.Payment{}, &apperrors.InvalidStateError{ID: parent.ID, Status: string(parent.Status), Action: "generate recurrence"}
	}
	if !parent.Recurring {
		return models.Payment{}, apperrors.Validation("recurring", "payment is not recurring")
	}

	amount := parent.Amount
	switch {
	case parent.OriginalAmount != nil:
		amount = *parent.OriginalAmount
	case parent.PaidAmount != nil:
		amount = *parent.PaidAmount
	}

	src := parent.Clone()
	next := models.Payment{
		UserID:              src.UserID,
		Title:               src.Title,
		Amount:              amount,
		DueDate:             NextDueDate(src.DueDate, src.RecurringType),
		Description:         src.Description,
		Category:            src.Category,
		Priority:            src.Priority,
		Provider:            src.Provider,
		Tags:                src.Tags,
		PaymentMethod:       src.PaymentMethod,
		ReminderDays:        src.ReminderDays,
		IsDebt:              src.IsDebt,
		OriginalAmount:      src.OriginalAmount,
		InterestRate:        src.InterestRate,
		MinimumPayment:      src.MinimumPayment,
		IncludesTax:         src.IncludesTax,
		Status:              models.StatusPending,
		Recurring:           true,
		RecurringType:       src.RecurringType,
		PaymentHistory:      []models.HistoryEntry{},
		ParentPaymentID:     src.ID,
		IsRecurringInstance: true,
	}
	rate := taxRate
	if src.IncludesTax && !src.TaxRate.IsZero() {
		rate = src.TaxRate
	}
	next.ApplyTax(rate)
	return next, nil
}
