package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is the outcome of one settlement action. Updated replaces the input
// record; Spawned and Installments are new records without ids.
type Result struct {
	Updated      models.Payment
	Spawned      *models.Payment
	Installments []models.Payment
}

// Engine applies settlement actions to payment snapshots. It never mutates its
// input and keeps no state between calls.
type Engine struct {
	NewID   func() string
	Now     func() time.Time
	TaxRate decimal.Decimal
}

func NewEngine(taxRate decimal.Decimal) *Engine {
	return &Engine{
		NewID:   uuid.NewString,
		Now:     time.Now,
		TaxRate: taxRate,
	}
}

func (e *Engine) SettleFull(rec models.Payment, s models.Settlement) (Result, error) {
	if rec.IsPaid() {
		return Result{}, &apperrors.InvalidStateError{ID: rec.ID, Status: string(rec.Status), Action: "settle"}
	}
	if s.Date.IsZero() {
		return Result{}, apperrors.Validation("date", "settlement date is required")
	}

	out := rec.Clone()
	paid := rec.Amount
	markPaid(&out, paid, s)

	return e.withRecurrence(out)
}

func (e *Engine) SettlePartial(rec models.Payment, amountPaid decimal.Decimal, s models.Settlement) (Result, error) {
	if rec.IsPaid() {
		return Result{}, &apperrors.InvalidStateError{ID: rec.ID, Status: string(rec.Status), Action: "settle"}
	}
	if !amountPaid.IsPositive() {
		return Result{}, apperrors.Validation("amount", "must be greater than zero")
	}
	if s.Date.IsZero() {
		return Result{}, apperrors.Validation("date", "settlement date is required")
	}

	remaining := rec.Amount.Sub(amountPaid)
	if rec.MinimumPayment != nil && rec.MinimumPayment.IsPositive() &&
		amountPaid.LessThan(*rec.MinimumPayment) && remaining.IsPositive() {
		return Result{}, apperrors.Validation("amount",
			fmt.Sprintf("below minimum payment %s", rec.MinimumPayment.StringFixed(2)))
	}

	out := rec.Clone()
	out.PaymentHistory = append(out.PaymentHistory, models.HistoryEntry{
		ID:        e.NewID(),
		Amount:    amountPaid,
		Date:      s.Date,
		Method:    methodOr(s.Method, rec.PaymentMethod),
		Note:      s.Note,
		CreatedAt: e.Now(),
	})
	date := s.Date
	last := amountPaid
	out.LastPaymentDate = &date
	out.LastPaymentAmount = &last
	out.TotalPaid = rec.TotalPaid.Add(amountPaid)

	if !remaining.IsPositive() {
		markPaid(&out, rec.Amount, s)
		out.Amount = decimal.Zero
		return e.withRecurrence(out)
	}

	out.Amount = remaining
	return Result{Updated: out}, nil
}

// ScheduleInstallments pays the first installment now and schedules count-1
// monthly records for the rest. Installment totals are not reconciled with
// the balance.
func (e *Engine) ScheduleInstallments(rec models.Payment, installment decimal.Decimal, count int, start time.Time, s models.Settlement) (Result, error) {
	if count < 1 {
		return Result{}, apperrors.Validation("count", "must be at least 1")
	}
	if start.IsZero() {
		return Result{}, apperrors.Validation("start_date", "start date is required")
	}
	s.Date = start

	res, err := e.SettlePartial(rec, installment, s)
	if err != nil || count == 1 || res.Updated.IsPaid() {
		return res, err
	}

	res.Installments = make([]models.Payment, 0, count-1)
	for i := 1; i < count; i++ {
		child := models.Payment{
			UserID:            rec.UserID,
			Title:             fmt.Sprintf("%s - Cuota %d/%d", rec.Title, i+1, count),
			Amount:            installment,
			DueDate:           AddMonths(start, i),
			Description:       fmt.Sprintf("Cuota programada %d de %d para: %s", i+1, count, rec.Title),
			Category:          rec.Category,
			Priority:          rec.Priority,
			PaymentMethod:     rec.PaymentMethod,
			Provider:          rec.Provider,
			ReminderDays:      rec.ReminderDays,
			IsDebt:            rec.IsDebt,
			Status:            models.StatusPending,
			OriginalPaymentID: rec.ID,
			PaymentHistory:    []models.HistoryEntry{},
		}
		child.ApplyTax(e.TaxRate)
		res.Installments = append(res.Installments, child)
	}
	return res, nil
}

func (e *Engine) withRecurrence(out models.Payment) (Result, error) {
	res := Result{Updated: out}
	if !out.Recurring {
		return res, nil
	}
	next, err := Generate(out, e.TaxRate)
	if err != nil {
		return Result{}, err
	}
	res.Spawned = &next
	return res, nil
}

func markPaid(p *models.Payment, paidAmount decimal.Decimal, s models.Settlement) {
	date := s.Date
	amt := paidAmount
	p.Status = models.StatusPaid
	p.PaidDate = &date
	p.PaidAmount = &amt
	p.PaymentMethod = methodOr(s.Method, p.PaymentMethod)
	p.PaymentNote = s.Note
}

// methodOr normalizes the settlement method, falling back to the record's.
func methodOr(method, fallback string) string {
	if method = strings.TrimSpace(method); method == "" {
		method = fallback
	}
	return models.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(method)))
}
