package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"

	"github.com/shopspring/decimal"
)

type DerivedStatus string

const (
	StatusPaid    DerivedStatus = "paid"
	StatusOverdue DerivedStatus = "overdue"
	StatusDueSoon DerivedStatus = "dueSoon"
	StatusPending DerivedStatus = "pending"
)

const (
	FilterAll      = "all"
	FilterPending  = "pending"
	FilterPaid     = "paid"
	FilterOverdue  = "overdue"
	FilterDebts    = "debts"
	FilterUpcoming = "upcoming"
)

const (
	SortDueDate  = "dueDate"
	SortAmount   = "amount"
	SortPriority = "priority"
	SortTitle    = "title"
	SortCategory = "category"
)

// Filter selects records for a view. Category and Search narrow the named
// predicate further; empty values match everything.
type Filter struct {
	Name       string
	WindowDays int
	Category   string
	Search     string
}

type Stats struct {
	Total         int             `json:"total"`
	PendingCount  int             `json:"pending_count"`
	PaidCount     int             `json:"paid_count"`
	OverdueCount  int             `json:"overdue_count"`
	MonthlyTotal  decimal.Decimal `json:"monthly_total"`
	DebtsCount    int             `json:"debts_count"`
	DebtsAmount   decimal.Decimal `json:"debts_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}

// Calculator derives display values from a record snapshot. It performs no
// I/O and never modifies its input.
type Calculator struct {
	DefaultReminderDays int
	UpcomingWindowDays  int
}

func NewCalculator(reminderDays, upcomingWindow int) Calculator {
	if reminderDays <= 0 {
		reminderDays = models.DefaultReminderDays
	}
	if upcomingWindow <= 0 {
		upcomingWindow = 7
	}
	return Calculator{DefaultReminderDays: reminderDays, UpcomingWindowDays: upcomingWindow}
}

// DaysUntil is the number of started days between now and the due date,
// negative once the due date has passed.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

func (c Calculator) StatusOf(p models.Payment, now time.Time) DerivedStatus {
	if p.IsPaid() {
		return StatusPaid
	}
	if p.DueDate.Before(now) {
		return StatusOverdue
	}
	threshold := p.ReminderDays
	if threshold <= 0 {
		threshold = c.DefaultReminderDays
	}
	if d := DaysUntil(p.DueDate, now); d >= 0 && d <= threshold {
		return StatusDueSoon
	}
	return StatusPending
}

func (c Calculator) predicate(f Filter, now time.Time) (func(models.Payment) bool, error) {
	switch f.Name {
	case "", FilterAll:
		return func(models.Payment) bool { return true }, nil
	case FilterPending:
		return func(p models.Payment) bool { return !p.IsPaid() }, nil
	case FilterPaid:
		return func(p models.Payment) bool { return p.IsPaid() }, nil
	case FilterOverdue:
		return func(p models.Payment) bool { return c.StatusOf(p, now) == StatusOverdue }, nil
	case FilterDebts:
		return func(p models.Payment) bool { return p.IsDebt }, nil
	case FilterUpcoming:
		window := f.WindowDays
		if window <= 0 {
			window = c.UpcomingWindowDays
		}
		until := now.Add(time.Duration(window) * 24 * time.Hour)
		return func(p models.Payment) bool {
			return !p.IsPaid() && !p.DueDate.Before(now) && !p.DueDate.After(until)
		}, nil
	}
	return nil, apperrors.Validation("filter", "unknown filter "+f.Name)
}

func (c Calculator) Filter(records []models.Payment, f Filter, now time.Time) ([]models.Payment, error) {
	keep, err := c.predicate(f, now)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]models.Payment, 0, len(records))
	for _, p := range records {
		if !keep(p) {
			continue
		}
		if f.Category != "" && f.Category != "all" && p.Category != f.Category {
			continue
		}
		if term != "" && !matches(p, term) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matches(p models.Payment, term string) bool {
	if strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.Provider), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

var priorityRank = map[models.Priority]int{
	models.PriorityHigh:   3,
	models.PriorityMedium: 2,
	models.PriorityLow:    1,
}

func rank(p models.Priority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[models.PriorityMedium]
}

// Sort orders records in place by key. Equal keys keep their input order.
func (c Calculator) Sort(records []models.Payment, key string) error {
	var less func(a, b models.Payment) bool
	switch key {
	case "", SortDueDate:
		less = func(a, b models.Payment) bool { return a.DueDate.Before(b.DueDate) }
	case SortAmount:
		less = func(a, b models.Payment) bool { return a.Amount.GreaterThan(b.Amount) }
	case SortPriority:
		less = func(a, b models.Payment) bool { return rank(a.Priority) > rank(b.Priority) }
	case SortTitle:
		less = func(a, b models.Payment) bool { return a.Title < b.Title }
	case SortCategory:
		less = func(a, b models.Payment) bool { return a.Category < b.Category }
	default:
		return apperrors.Validation("sort", "unknown sort key "+key)
	}
	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
	return nil
}

// View filters and sorts a copy of records.
func (c Calculator) View(records []models.Payment, f Filter, key string, now time.Time) ([]models.Payment, error) {
	out, err := c.Filter(records, f, now)
	if err != nil {
		return nil, err
	}
	if err := c.Sort(out, key); err != nil {
		return nil, err
	}
	return out, nil
}

func (c Calculator) Aggregate(records []models.Payment, now time.Time) Stats {
	st := Stats{
		Total:         len(records),
		MonthlyTotal:  decimal.Zero,
		DebtsAmount:   decimal.Zero,
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	ny, nm, _ := now.Date()

	for _, p := range records {
		st.TotalAmount = st.TotalAmount.Add(p.Amount)

		dy, dm, _ := p.DueDate.In(now.Location()).Date()
		if dy == ny && dm == nm {
			st.MonthlyTotal = st.MonthlyTotal.Add(p.Amount)
		}
		if p.IsDebt {
			st.DebtsCount++
			st.DebtsAmount = st.DebtsAmount.Add(p.Amount)
		}
		if p.IsPaid() {
			st.PaidCount++
			st.PaidAmount = st.PaidAmount.Add(paidValue(p))
			continue
		}
		st.PendingCount++
		st.PendingAmount = st.PendingAmount.Add(p.Amount)
		if p.DueDate.Before(now) {
			st.OverdueCount++
			st.OverdueAmount = st.OverdueAmount.Add(p.Amount)
		}
	}
	return st
}

// paidValue is what a paid record counts for, whichever way it was settled.
func paidValue(p models.Payment) decimal.Decimal {
	switch {
	case p.PaidAmount != nil:
		return *p.PaidAmount
	case p.OriginalAmount != nil:
		return *p.OriginalAmount
	}
	return p.Amount
}
