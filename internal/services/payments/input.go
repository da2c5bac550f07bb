package payments

import (
	"strings"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"
	"finance_tracker/internal/utils"

	"github.com/shopspring/decimal"
)

type CreateInput struct {
	Title          string
	Amount         decimal.Decimal
	DueDate        time.Time
	Description    string
	Category       string
	Priority       string
	Provider       string
	Tags           []string
	PaymentMethod  string
	ReminderDays   int
	IsDebt         bool
	OriginalAmount *decimal.Decimal
	InterestRate   *decimal.Decimal
	MinimumPayment *decimal.Decimal
	IncludesTax    bool
	Recurring      bool
	RecurringType  string
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.Validation("title", "is required")
	}
	if !in.Amount.IsPositive() {
		return apperrors.Validation("amount", "must be greater than zero")
	}
	if in.DueDate.IsZero() {
		return apperrors.Validation("due_date", "is required")
	}
	if in.ReminderDays < 0 {
		return apperrors.Validation("reminder_days", "must not be negative")
	}
	return validateDebt(in.Amount, in.OriginalAmount, in.InterestRate, in.MinimumPayment)
}

func validateDebt(amount decimal.Decimal, original, rate, minimum *decimal.Decimal) error {
	if original != nil && original.LessThan(amount) {
		return apperrors.Validation("original_amount", "must not be less than amount")
	}
	if rate != nil && rate.IsNegative() {
		return apperrors.Validation("interest_rate", "must not be negative")
	}
	if minimum != nil && !minimum.IsPositive() {
		return apperrors.Validation("minimum_payment", "must be greater than zero")
	}
	return nil
}

func (in CreateInput) build(userID string, taxRate decimal.Decimal) models.Payment {
	rec := models.Payment{
		UserID:         userID,
		Title:          strings.TrimSpace(in.Title),
		Amount:         in.Amount,
		DueDate:        in.DueDate,
		Description:    strings.TrimSpace(in.Description),
		Category:       models.ParseCategory(strings.ToLower(strings.TrimSpace(in.Category))),
		Priority:       models.ParsePriority(strings.ToLower(strings.TrimSpace(in.Priority))),
		Provider:       strings.TrimSpace(in.Provider),
		Tags:           utils.NormalizeTags(in.Tags),
		PaymentMethod:  models.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(in.PaymentMethod))),
		ReminderDays:   in.ReminderDays,
		IsDebt:         in.IsDebt,
		IncludesTax:    in.IncludesTax,
		Status:         models.StatusPending,
		Recurring:      in.Recurring,
		PaymentHistory: []models.HistoryEntry{},
		TotalPaid:      decimal.Zero,
	}
	if rec.ReminderDays == 0 {
		rec.ReminderDays = models.DefaultReminderDays
	}
	if in.IsDebt {
		rec.OriginalAmount = in.OriginalAmount
		rec.InterestRate = in.InterestRate
		rec.MinimumPayment = in.MinimumPayment
	}
	if in.Recurring {
		rec.RecurringType = models.ParseRecurringType(strings.ToLower(strings.TrimSpace(in.RecurringType)))
		if rec.RecurringType == "" {
			rec.RecurringType = models.RecurringMonthly
		}
	}
	rec.ApplyTax(taxRate)
	return rec
}

// EditInput changes record metadata. Nil fields are left as they are;
// status, history and settlement bookkeeping are never touched.
type EditInput struct {
	Title          *string
	Amount         *decimal.Decimal
	DueDate        *time.Time
	Description    *string
	Category       *string
	Priority       *string
	Provider       *string
	Tags           []string
	PaymentMethod  *string
	ReminderDays   *int
	IsDebt         *bool
	OriginalAmount *decimal.Decimal
	InterestRate   *decimal.Decimal
	MinimumPayment *decimal.Decimal
	IncludesTax    *bool
	Recurring      *bool
	RecurringType  *string
}

func (e EditInput) apply(rec models.Payment, taxRate decimal.Decimal) (models.Payment, error) {
	out := rec.Clone()

	if e.Title != nil {
		if strings.TrimSpace(*e.Title) == "" {
			return rec, apperrors.Validation("title", "is required")
		}
		out.Title = strings.TrimSpace(*e.Title)
	}
	if e.Amount != nil {
		if e.Amount.IsNegative() || (!out.IsPaid() && !e.Amount.IsPositive()) {
			return rec, apperrors.Validation("amount", "must be greater than zero")
		}
		out.Amount = *e.Amount
	}
	if e.DueDate != nil {
		if e.DueDate.IsZero() {
			return rec, apperrors.Validation("due_date", "is required")
		}
		out.DueDate = *e.DueDate
	}
	if e.Description != nil {
		out.Description = strings.TrimSpace(*e.Description)
	}
	if e.Category != nil {
		out.Category = models.ParseCategory(strings.ToLower(strings.TrimSpace(*e.Category)))
	}
	if e.Priority != nil {
		out.Priority = models.ParsePriority(strings.ToLower(strings.TrimSpace(*e.Priority)))
	}
	if e.Provider != nil {
		out.Provider = strings.TrimSpace(*e.Provider)
	}
	if e.Tags != nil {
		out.Tags = utils.NormalizeTags(e.Tags)
	}
	if e.PaymentMethod != nil {
		out.PaymentMethod = models.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(*e.PaymentMethod)))
	}
	if e.ReminderDays != nil {
		if *e.ReminderDays < 0 {
			return rec, apperrors.Validation("reminder_days", "must not be negative")
		}
		out.ReminderDays = *e.ReminderDays
	}
	if e.IsDebt != nil {
		out.IsDebt = *e.IsDebt
	}
	if e.OriginalAmount != nil {
		out.OriginalAmount = e.OriginalAmount
	}
	if e.InterestRate != nil {
		out.InterestRate = e.InterestRate
	}
	if e.MinimumPayment != nil {
		out.MinimumPayment = e.MinimumPayment
	}
	if !out.IsDebt {
		out.OriginalAmount, out.InterestRate, out.MinimumPayment = nil, nil, nil
	}
	if err := validateDebt(out.Amount, out.OriginalAmount, out.InterestRate, out.MinimumPayment); err != nil {
		return rec, err
	}
	if e.IncludesTax != nil {
		out.IncludesTax = *e.IncludesTax
	}
	if e.Recurring != nil {
		out.Recurring = *e.Recurring
	}
	if e.RecurringType != nil {
		out.RecurringType = models.ParseRecurringType(strings.ToLower(strings.TrimSpace(*e.RecurringType)))
	}
	switch {
	case !out.Recurring:
		out.RecurringType = ""
	case out.RecurringType == "":
		out.RecurringType = models.RecurringMonthly
	}

	rate := taxRate
	if out.IncludesTax && !out.TaxRate.IsZero() {
		rate = out.TaxRate
	}
	out.ApplyTax(rate)
	return out, nil
}
