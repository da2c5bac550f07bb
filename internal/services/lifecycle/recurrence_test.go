package lifecycle

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"

	"github.com/shopspring/decimal"
)

func TestNextDueDate(t *testing.T) {
	base := day(2024, 1, 31)
	cases := []struct {
		rt   models.RecurringType
		want time.Time
	}{
		{models.RecurringWeekly, day(2024, 2, 7)},
		{models.RecurringBiweekly, day(2024, 2, 14)},
		{models.RecurringMonthly, day(2024, 2, 29)},
		{models.RecurringQuarterly, day(2024, 4, 30)},
		{models.RecurringSemiannual, day(2024, 7, 31)},
		{models.RecurringYearly, day(2025, 1, 31)},
		{"", day(2024, 2, 29)},
		{"fortnightly", day(2024, 2, 29)},
	}
	for _, tc := range cases {
		if got := NextDueDate(base, tc.rt); !got.Equal(tc.want) {
			t.Fatalf("%q: got %s want %s", tc.rt, got, tc.want)
		}
	}
}

func TestAddMonths_yearRollover(t *testing.T) {
	if got := AddMonths(day(2024, 11, 30), 3); !got.Equal(day(2025, 2, 28)) {
		t.Fatalf("got %s", got)
	}
}

func paidRecurring() models.Payment {
	p := pending("300")
	p.Recurring = true
	p.RecurringType = models.RecurringQuarterly
	p.Status = models.StatusPaid
	paid := dec("300")
	p.PaidAmount = &paid
	p.Tags = []string{"casa"}
	p.PaymentHistory = []models.HistoryEntry{{ID: "x", Amount: dec("300")}}
	p.TotalPaid = dec("300")
	return p
}

func TestGenerate_resetsAmountFromOriginal(t *testing.T) {
	p := paidRecurring()
	orig := dec("350")
	p.OriginalAmount = &orig
	p.Amount = decimal.Zero

	next, err := Generate(p, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !next.Amount.Equal(orig) {
		t.Fatalf("amount: got %s", next.Amount)
	}
	if len(next.PaymentHistory) != 0 || !next.TotalPaid.IsZero() || next.PaidAmount != nil {
		t.Fatalf("bookkeeping must start empty: %+v", next)
	}
	if !next.DueDate.Equal(day(2024, 4, 10)) {
		t.Fatalf("due: got %s", next.DueDate)
	}
	next.Tags[0] = "changed"
	if p.Tags[0] != "casa" {
		t.Fatalf("generated record shares tags with parent")
	}
}

func TestGenerate_isPure(t *testing.T) {
	p := paidRecurring()
	a, err := Generate(p, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, _ := Generate(p, decimal.Zero)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input produced different output")
	}
}

func TestGenerate_requiresPaidRecurring(t *testing.T) {
	p := paidRecurring()
	p.Status = models.StatusPending
	if _, err := Generate(p, decimal.Zero); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	p = paidRecurring()
	p.Recurring = false
	if _, err := Generate(p, decimal.Zero); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerate_recomputesTax(t *testing.T) {
	p := paidRecurring()
	p.IncludesTax = true
	next, err := Generate(p, dec("0.18"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !next.TaxAmount.Equal(dec("54")) || !next.TotalAmount.Equal(dec("354")) {
		t.Fatalf("tax=%s total=%s", next.TaxAmount, next.TotalAmount)
	}
}
