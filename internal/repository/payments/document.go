package payments

import (
	"math"
	"strconv"
	"strings"
	"time"

	"finance_tracker/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fieldsDoc renders the mutable fields of rec. Identity and created_at are
// written by Create only.
func fieldsDoc(rec models.Payment) bson.D {
	history := make(bson.A, 0, len(rec.PaymentHistory))
	for _, h := range rec.PaymentHistory {
		history = append(history, bson.D{
			{Key: "id", Value: h.ID},
			{Key: "amount", Value: d128(h.Amount)},
			{Key: "date", Value: h.Date},
			{Key: "method", Value: h.Method},
			{Key: "note", Value: h.Note},
			{Key: "created_at", Value: h.CreatedAt},
		})
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	return bson.D{
		{Key: "title", Value: rec.Title},
		{Key: "amount", Value: d128(rec.Amount)},
		{Key: "due_date", Value: rec.DueDate},
		{Key: "description", Value: rec.Description},
		{Key: "category", Value: rec.Category},
		{Key: "priority", Value: string(rec.Priority)},
		{Key: "provider", Value: rec.Provider},
		{Key: "tags", Value: tags},
		{Key: "payment_method", Value: rec.PaymentMethod},
		{Key: "reminder_days", Value: rec.ReminderDays},
		{Key: "is_debt", Value: rec.IsDebt},
		{Key: "original_amount", Value: d128Ptr(rec.OriginalAmount)},
		{Key: "interest_rate", Value: d128Ptr(rec.InterestRate)},
		{Key: "minimum_payment", Value: d128Ptr(rec.MinimumPayment)},
		{Key: "includes_tax", Value: rec.IncludesTax},
		{Key: "tax_rate", Value: d128(rec.TaxRate)},
		{Key: "tax_amount", Value: d128(rec.TaxAmount)},
		{Key: "total_amount", Value: d128(rec.TotalAmount)},
		{Key: "status", Value: string(rec.Status)},
		{Key: "recurring", Value: rec.Recurring},
		{Key: "recurring_type", Value: string(rec.RecurringType)},
		{Key: "payment_history", Value: history},
		{Key: "last_payment_date", Value: rec.LastPaymentDate},
		{Key: "last_payment_amount", Value: d128Ptr(rec.LastPaymentAmount)},
		{Key: "total_paid", Value: d128(rec.TotalPaid)},
		{Key: "paid_date", Value: rec.PaidDate},
		{Key: "paid_amount", Value: d128Ptr(rec.PaidAmount)},
		{Key: "payment_note", Value: rec.PaymentNote},
		{Key: "parent_payment_id", Value: rec.ParentPaymentID},
		{Key: "original_payment_id", Value: rec.OriginalPaymentID},
		{Key: "is_recurring_instance", Value: rec.IsRecurringInstance},
	}
}

func d128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func d128Ptr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d128(*d)
}

// fromDoc maps a stored document onto a Payment. Older documents use
// camelCase keys, Spanish recurrence fields, boxed timestamps and amounts
// stored as doubles or strings; all of them are normalized here.
func fromDoc(m map[string]any) models.Payment {
	p := models.Payment{
		ID:     idString(m["_id"]),
		UserID: str(pick(m, "user_id", "userId")),

		Title:       str(m["title"]),
		Amount:      decOr(pick(m, "amount"), decimal.Zero),
		DueDate:     timeOr(pick(m, "due_date", "dueDate")),
		Description: str(m["description"]),
		Category:    models.ParseCategory(str(m["category"])),
		Priority:    models.ParsePriority(str(m["priority"])),
		Provider:    str(m["provider"]),
		Tags:        strSlice(m["tags"]),

		PaymentMethod: models.ParsePaymentMethod(str(pick(m, "payment_method", "paymentMethod"))),
		ReminderDays:  intOf(pick(m, "reminder_days", "reminderDays")),

		IsDebt:         boolOf(pick(m, "is_debt", "isDebt")),
		OriginalAmount: decPtr(pick(m, "original_amount", "originalAmount")),
		InterestRate:   decPtr(pick(m, "interest_rate", "interestRate")),
		MinimumPayment: decPtr(pick(m, "minimum_payment", "minimumPayment")),

		IncludesTax: boolOf(pick(m, "includes_tax", "includesTax", "incluye_igv")),
		TaxRate:     decOr(pick(m, "tax_rate", "taxRate"), decimal.Zero),
		TaxAmount:   decOr(pick(m, "tax_amount", "taxAmount"), decimal.Zero),

		Status:        parseStatus(str(m["status"])),
		Recurring:     boolOf(pick(m, "recurring", "es_recurrente")),
		RecurringType: models.ParseRecurringType(str(pick(m, "recurring_type", "recurringType", "frecuencia"))),

		PaymentHistory:    historyOf(pick(m, "payment_history", "paymentHistory")),
		LastPaymentDate:   timePtr(pick(m, "last_payment_date", "lastPaymentDate")),
		LastPaymentAmount: decPtr(pick(m, "last_payment_amount", "lastPaymentAmount")),
		TotalPaid:         decOr(pick(m, "total_paid", "totalPaid"), decimal.Zero),
		PaidDate:          timePtr(pick(m, "paid_date", "paidDate")),
		PaidAmount:        decPtr(pick(m, "paid_amount", "paidAmount")),
		PaymentNote:       str(pick(m, "payment_note", "paymentNote")),

		ParentPaymentID:     str(pick(m, "parent_payment_id", "parentPaymentId")),
		OriginalPaymentID:   str(pick(m, "original_payment_id", "originalPaymentId")),
		IsRecurringInstance: boolOf(pick(m, "is_recurring_instance", "isRecurringInstance")),

		CreatedAt: timeOr(pick(m, "created_at", "createdAt")),
		UpdatedAt: timeOr(pick(m, "updated_at", "updatedAt")),
	}
	p.TotalAmount = decOr(pick(m, "total_amount", "totalAmount"), p.Amount.Add(p.TaxAmount))
	if p.Recurring && p.RecurringType == "" {
		p.RecurringType = models.RecurringMonthly
	}
	return p
}

func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func parseStatus(s string) models.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "pagado":
		return models.StatusPaid
	}
	return models.StatusPending
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	}
	return str(v)
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case primitive.ObjectID:
		return s.Hex()
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func boolOf(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "si", "sí", "yes":
			return true
		}
	case int32:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	}
	return false
}

func intOf(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}

func strSlice(v any) []string {
	switch a := v.(type) {
	case primitive.A:
		return strSlice([]any(a))
	case []any:
		out := make([]string, 0, len(a))
		for _, x := range a {
			if s := str(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), a...)
	case string:
		out := make([]string, 0)
		for _, s := range strings.Split(a, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toDecimal accepts every numeric shape amounts have been stored in.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case primitive.Decimal128:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case decimal.Decimal:
		return n, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

func decOr(v any, def decimal.Decimal) decimal.Decimal {
	if d, ok := toDecimal(v); ok {
		return d
	}
	return def
}

func decPtr(v any) *decimal.Decimal {
	if d, ok := toDecimal(v); ok {
		return &d
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime unwraps the date shapes found in stored documents: native BSON
// datetimes, BSON timestamps, boxed {seconds, nanoseconds} objects and
// ISO-like strings.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case primitive.DateTime:
		return t.Time().UTC(), true
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC(), true
	case bson.M:
		return boxedTime(t)
	case map[string]any:
		return boxedTime(t)
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return boxedTime(m)
	case string:
		s := strings.TrimSpace(t)
		for _, l := range dateLayouts {
			if parsed, err := time.Parse(l, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func boxedTime(m map[string]any) (time.Time, bool) {
	secs, ok := toDecimal(pick(m, "seconds", "_seconds"))
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := toDecimal(pick(m, "nanoseconds", "_nanoseconds"))
	return time.Unix(secs.IntPart(), nanos.IntPart()).UTC(), true
}

func timeOr(v any) time.Time {
	t, _ := toTime(v)
	return t
}

func timePtr(v any) *time.Time {
	if t, ok := toTime(v); ok {
		return &t
	}
	return nil
}

func historyOf(v any) []models.HistoryEntry {
	var items []any
	switch a := v.(type) {
	case primitive.A:
		items = a
	case []any:
		items = a
	}

	out := make([]models.HistoryEntry, 0, len(items))
	for _, it := range items {
		var m map[string]any
		switch e := it.(type) {
		case bson.M:
			m = e
		case map[string]any:
			m = e
		case primitive.D:
			m = make(map[string]any, len(e))
			for _, kv := range e {
				m[kv.Key] = kv.Value
			}
		default:
			continue
		}
		out = append(out, models.HistoryEntry{
			ID:        str(m["id"]),
			Amount:    decOr(m["amount"], decimal.Zero),
			Date:      timeOr(m["date"]),
			Method:    str(m["method"]),
			Note:      str(m["note"]),
			CreatedAt: timeOr(pick(m, "created_at", "createdAt")),
		})
	}
	return out
}
