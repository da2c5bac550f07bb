package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type RecurringType string

const (
	RecurringWeekly     RecurringType = "weekly"
	RecurringBiweekly   RecurringType = "biweekly"
	RecurringMonthly    RecurringType = "monthly"
	RecurringQuarterly  RecurringType = "quarterly"
	RecurringSemiannual RecurringType = "semiannual"
	RecurringYearly     RecurringType = "yearly"
)

const (
	DefaultCategory      = "otros"
	DefaultPaymentMethod = "efectivo"
	DefaultReminderDays  = 3
)

var Categories = map[string]bool{
	"servicios":     true,
	"prestamos":     true,
	"tarjetas":      true,
	"alquiler":      true,
	"seguros":       true,
	"suscripciones": true,
	"transporte":    true,
	"educacion":     true,
	"salud":         true,
	"impuestos":     true,
	"otros":         true,
}

var PaymentMethods = map[string]bool{
	"efectivo":             true,
	"transferencia":        true,
	"tarjeta_debito":       true,
	"tarjeta_credito":      true,
	"billetera_digital":    true,
	"cheque":               true,
	"descuento_automatico": true,
}

// spanishFrequencies maps the legacy "frecuencia" values onto RecurringType.
var spanishFrequencies = map[string]RecurringType{
	"semanal":    RecurringWeekly,
	"quincenal":  RecurringBiweekly,
	"mensual":    RecurringMonthly,
	"trimestral": RecurringQuarterly,
	"semestral":  RecurringSemiannual,
	"anual":      RecurringYearly,
}

// HistoryEntry is one settlement event. Entries are append-only.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Method    string          `json:"method"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
}

type Payment struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Priority    Priority        `json:"priority"`
	Provider    string          `json:"provider,omitempty"`
	Tags        []string        `json:"tags,omitempty"`

	PaymentMethod string `json:"payment_method"`
	ReminderDays  int    `json:"reminder_days"`

	IsDebt         bool             `json:"is_debt"`
	OriginalAmount *decimal.Decimal `json:"original_amount,omitempty"`
	InterestRate   *decimal.Decimal `json:"interest_rate,omitempty"`
	MinimumPayment *decimal.Decimal `json:"minimum_payment,omitempty"`

	IncludesTax bool            `json:"includes_tax"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	Status        Status        `json:"status"`
	Recurring     bool          `json:"recurring"`
	RecurringType RecurringType `json:"recurring_type,omitempty"`

	PaymentHistory    []HistoryEntry   `json:"payment_history"`
	LastPaymentDate   *time.Time       `json:"last_payment_date,omitempty"`
	LastPaymentAmount *decimal.Decimal `json:"last_payment_amount,omitempty"`
	TotalPaid         decimal.Decimal  `json:"total_paid"`
	PaidDate          *time.Time       `json:"paid_date,omitempty"`
	PaidAmount        *decimal.Decimal `json:"paid_amount,omitempty"`
	PaymentNote       string           `json:"payment_note,omitempty"`

	ParentPaymentID     string `json:"parent_payment_id,omitempty"`
	OriginalPaymentID   string `json:"original_payment_id,omitempty"`
	IsRecurringInstance bool   `json:"is_recurring_instance,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settlement describes how a balance was paid.
type Settlement struct {
	Date   time.Time
	Method string
	Note   string
}

func (p Payment) IsPaid() bool { return p.Status == StatusPaid }

// Clone returns a copy that shares no slices or pointers with p.
func (p Payment) Clone() Payment {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.PaymentHistory != nil {
		out.PaymentHistory = append([]HistoryEntry(nil), p.PaymentHistory...)
	}
	out.OriginalAmount = cloneDec(p.OriginalAmount)
	out.InterestRate = cloneDec(p.InterestRate)
	out.MinimumPayment = cloneDec(p.MinimumPayment)
	out.LastPaymentAmount = cloneDec(p.LastPaymentAmount)
	out.PaidAmount = cloneDec(p.PaidAmount)
	out.LastPaymentDate = cloneTime(p.LastPaymentDate)
	out.PaidDate = cloneTime(p.PaidDate)
	return out
}

// ApplyTax recomputes the flat surcharge fields from Amount.
func (p *Payment) ApplyTax(rate decimal.Decimal) {
	if !p.IncludesTax {
		p.TaxRate = decimal.Zero
		p.TaxAmount = decimal.Zero
		p.TotalAmount = p.Amount
		return
	}
	p.TaxRate = rate
	p.TaxAmount = p.Amount.Mul(rate).Round(2)
	p.TotalAmount = p.Amount.Add(p.TaxAmount)
}

func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	}
	return PriorityMedium
}

func ParseCategory(s string) string {
	if Categories[s] {
		return s
	}
	return DefaultCategory
}

func ParsePaymentMethod(s string) string {
	if PaymentMethods[s] {
		return s
	}
	return DefaultPaymentMethod
}

// ParseRecurringType accepts both the English enum and the legacy Spanish
// frequency names. Unknown values come back empty.
func ParseRecurringType(s string) RecurringType {
	switch RecurringType(s) {
	case RecurringWeekly, RecurringBiweekly, RecurringMonthly,
		RecurringQuarterly, RecurringSemiannual, RecurringYearly:
		return RecurringType(s)
	}
	if rt, ok := spanishFrequencies[s]; ok {
		return rt
	}
	return ""
}

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
